package gate

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestRecoverSignerRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)

	digest := crypto.Keccak256([]byte("mintgate recover round trip"))
	signature, err := SignDigest(digest, key)
	require.NoError(t, err)
	require.Len(t, signature, SignatureLength)
	require.Contains(t, []byte{27, 28}, signature[64])

	recovered, err := RecoverSigner(digest, signature)
	require.NoError(t, err)
	require.Equal(t, expected, recovered)
}

func TestRecoverSignerAcceptsUnshiftedIndicator(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("unshifted v"))
	signature, err := SignDigest(digest, key)
	require.NoError(t, err)

	signature[64] -= 27
	recovered, err := RecoverSigner(digest, signature)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestRecoverSignerRejectsBadLength(t *testing.T) {
	digest := crypto.Keccak256([]byte("short"))
	_, err := RecoverSigner(digest, make([]byte, 64))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRecoverSignerRejectsBadIndicator(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("bad v"))
	signature, err := SignDigest(digest, key)
	require.NoError(t, err)

	signature[64] = 29
	_, err = RecoverSigner(digest, signature)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRecoverSignerRejectsHighS(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("high s"))
	signature, err := SignDigest(digest, key)
	require.NoError(t, err)

	// Flip to the other valid (r, N-s, v^1) encoding of the same
	// signature. It recovers the same key, but must be rejected.
	order := crypto.S256().Params().N
	s := new(big.Int).SetBytes(signature[32:64])
	s.Sub(order, s)
	s.FillBytes(signature[32:64])
	if signature[64] == 27 {
		signature[64] = 28
	} else {
		signature[64] = 27
	}

	_, err = RecoverSigner(digest, signature)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRecoverSignerDifferentDigestDifferentSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	digest := crypto.Keccak256([]byte("original"))
	signature, err := SignDigest(digest, key)
	require.NoError(t, err)

	recovered, err := RecoverSigner(crypto.Keccak256([]byte("replayed elsewhere")), signature)
	if err == nil {
		require.NotEqual(t, signer, recovered)
	}
}
