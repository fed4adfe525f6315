package gate

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignDigest signs a digest with a private key and returns the 65-byte
// r || s || v signature with v in {27, 28}, the canonical form expected
// by RecoverSigner and by on-chain verifiers.
func SignDigest(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	// This refers to a bug in an early Ethereum client implementation where
	// the v parameter byte was shifted by 27:
	// https://github.com/ethereum/go-ethereum/issues/2053
	// We only shift if the 65th byte is 0 or 1.
	if signature[64] < 2 {
		signature[64] += 27
	}
	return signature, nil
}

// SignMintAuthorization produces a relayable signature over a mint
// authorization bound to the given domain.
func SignMintAuthorization(domain AuthorizationDomain, auth MintAuthorization, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := MintAuthorizationDigest(domain, auth)
	if err != nil {
		return nil, err
	}
	return SignDigest(digest, key)
}

// SignCancelAuthorization produces a signature over a cancellation bound
// to the given domain.
func SignCancelAuthorization(domain AuthorizationDomain, cancel CancelAuthorization, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := CancelAuthorizationDigest(domain, cancel)
	if err != nil {
		return nil, err
	}
	return SignDigest(digest, key)
}
