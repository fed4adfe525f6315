package gate

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of an r || s || v signature.
const SignatureLength = 65

// RecoverSigner recovers the signer address from a digest and a 65-byte
// signature. It rejects, with ErrInvalidSignature:
//   - signatures that are not exactly 65 bytes;
//   - recovery indicators outside {0, 1, 27, 28};
//   - s values above the secp256k1 half order (high-s signatures are
//     rejected rather than normalized, so every authorization has exactly
//     one valid encoding);
//   - recoveries that yield the zero address.
//
// Semantic checks on who signed are the caller's responsibility.
func RecoverSigner(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)

	// Normalize signature so that 27 -> 0, 28 -> 1.
	// For more context: https://github.com/ethereum/go-ethereum/issues/2053
	switch sig[64] {
	case 0, 1:
	case 27, 28:
		sig[64] -= 27
	default:
		return common.Address{}, fmt.Errorf("%w: recovery indicator %d out of range", ErrInvalidSignature, sig[64])
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return common.Address{}, fmt.Errorf("%w: non-canonical signature values", ErrInvalidSignature)
	}

	pubkey, recoverErr := crypto.SigToPub(digest, sig)
	if recoverErr != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, recoverErr)
	}

	signer := crypto.PubkeyToAddress(*pubkey)
	if signer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: recovered zero address", ErrInvalidSignature)
	}

	return signer, nil
}
