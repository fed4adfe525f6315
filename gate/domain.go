package gate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain declares exactly the three domain fields this deployment
// binds signatures to. There is no version field: adding one would change
// the domain separator and invalidate every distributed signature.
var EIP712Domain []apitypes.Type = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// MintAuthorizationPayload is the typed-data shape of a mint authorization.
// Field names and order are part of the wire protocol; off-chain signers
// must reproduce them bit-exact.
var MintAuthorizationPayload []apitypes.Type = []apitypes.Type{
	{Name: "target", Type: "address"},
	{Name: "recipient", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "validAfter", Type: "uint256"},
	{Name: "validBefore", Type: "uint256"},
	{Name: "nonce", Type: "bytes32"},
}

// CancelAuthorizationPayload is the typed-data shape of a cancellation.
var CancelAuthorizationPayload []apitypes.Type = []apitypes.Type{
	{Name: "authorizer", Type: "address"},
	{Name: "nonce", Type: "bytes32"},
}

// AuthorizationDomain is the per-deployment signing identity. It binds
// every signature to one deployment on one chain; a signature produced
// for a different name, chain, or contract recovers to a different
// (effectively random) address and fails authorization.
type AuthorizationDomain struct {
	Name              string
	ChainID           *big.Int
	VerifyingContract common.Address
}

func (d AuthorizationDomain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// MintAuthorization is an ephemeral pre-signed permission to mint one
// token. It is constructed per call and never persisted; only its nonce
// leaves a permanent trace, in the nonce ledger.
type MintAuthorization struct {
	Target      common.Address
	Recipient   common.Address
	TokenID     *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       common.Hash
}

// CancelAuthorization is an ephemeral request to burn an unused nonce.
type CancelAuthorization struct {
	Authorizer common.Address
	Nonce      common.Hash
}

// MintAuthorizationDigest produces the signing digest for a mint
// authorization: keccak256(0x1901 || domainSeparator || structHash).
func MintAuthorizationDigest(domain AuthorizationDomain, auth MintAuthorization) ([]byte, error) {
	data := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":      EIP712Domain,
			"MintAuthorization": MintAuthorizationPayload,
		},
		PrimaryType: "MintAuthorization",
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"target":      auth.Target.Hex(),
			"recipient":   auth.Recipient.Hex(),
			"tokenId":     auth.TokenID.String(),
			"validAfter":  auth.ValidAfter.String(),
			"validBefore": auth.ValidBefore.String(),
			"nonce":       auth.Nonce.Hex(),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(data)
	return digest, err
}

// CancelAuthorizationDigest produces the signing digest for a cancellation.
func CancelAuthorizationDigest(domain AuthorizationDomain, cancel CancelAuthorization) ([]byte, error) {
	data := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":        EIP712Domain,
			"CancelAuthorization": CancelAuthorizationPayload,
		},
		PrimaryType: "CancelAuthorization",
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"authorizer": cancel.Authorizer.Hex(),
			"nonce":      cancel.Nonce.Hex(),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(data)
	return digest, err
}
