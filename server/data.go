package server

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/etherforge/mintgate/gate"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type PingResponse struct {
	Status string `json:"status"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

type StatusResponse struct {
	DomainName        string   `json:"domainName"`
	ChainID           *big.Int `json:"chainID"`
	VerifyingContract string   `json:"verifyingContract"`
	Operator          string   `json:"operator"`
	TotalMinted       uint64   `json:"totalMinted"`
	Hardcap           uint64   `json:"totalMintHardcap"`
	AuthorizedMinting bool     `json:"authorizedMinting"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MintRequest struct {
	Target    string `json:"target" validate:"required,eth_addr"`
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	TokenID   string `json:"tokenId" validate:"required"`
}

type AuthorizationFields struct {
	MintRequest
	ValidAfter  string `json:"validAfter" validate:"required"`
	ValidBefore string `json:"validBefore" validate:"required"`
	Nonce       string `json:"nonce" validate:"required,len=66,startswith=0x"`
}

type AuthorizedMintRequest struct {
	AuthorizationFields
	Signature string `json:"signature" validate:"required"`
}

type CancelAuthorizationRequest struct {
	Authorizer string `json:"authorizer" validate:"required,eth_addr"`
	Nonce      string `json:"nonce" validate:"required,len=66,startswith=0x"`
	Signature  string `json:"signature" validate:"required"`
}

type CancelHashRequest struct {
	Authorizer string `json:"authorizer" validate:"required,eth_addr"`
	Nonce      string `json:"nonce" validate:"required,len=66,startswith=0x"`
}

type SelfCancelRequest struct {
	Nonce string `json:"nonce" validate:"required,len=66,startswith=0x"`
}

type HardcapRequest struct {
	Hardcap *uint64 `json:"hardcap" validate:"required"`
}

type DigestResponse struct {
	Digest string `json:"digest"`
}

type SignResponse struct {
	Request   *AuthorizationFields `json:"request"`
	Digest    string               `json:"digest"`
	Signer    string               `json:"signer"`
	Signature string               `json:"signature"`
}

type MintResponse struct {
	Minted      bool   `json:"minted"`
	TotalMinted uint64 `json:"totalMinted"`
}

type CancelResponse struct {
	Cancelled  bool   `json:"cancelled"`
	Authorizer string `json:"authorizer"`
	Nonce      string `json:"nonce"`
}

type HardcapResponse struct {
	Hardcap uint64 `json:"totalMintHardcap"`
}

type NonceStateResponse struct {
	Authorizer string `json:"authorizer"`
	Nonce      string `json:"nonce"`
	Consumed   bool   `json:"consumed"`
}

// ParseMint converts a validated MintRequest into engine parameters.
func (r *MintRequest) ParseMint() (target, recipient common.Address, tokenID *big.Int, err error) {
	if validateErr := validate.Struct(r); validateErr != nil {
		return common.Address{}, common.Address{}, nil, validateErr
	}
	tokenID, parseOK := new(big.Int).SetString(r.TokenID, 0)
	if !parseOK {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("error parsing tokenId: %s", r.TokenID)
	}
	return common.HexToAddress(r.Target), common.HexToAddress(r.Recipient), tokenID, nil
}

// ParseAuthorization converts validated authorization fields into a
// gate.MintAuthorization.
func (r *AuthorizationFields) ParseAuthorization() (gate.MintAuthorization, error) {
	if validateErr := validate.Struct(r); validateErr != nil {
		return gate.MintAuthorization{}, validateErr
	}

	tokenID, parseOK := new(big.Int).SetString(r.TokenID, 0)
	if !parseOK {
		return gate.MintAuthorization{}, fmt.Errorf("error parsing tokenId: %s", r.TokenID)
	}
	validAfter, parseOK := new(big.Int).SetString(r.ValidAfter, 0)
	if !parseOK {
		return gate.MintAuthorization{}, fmt.Errorf("error parsing validAfter: %s", r.ValidAfter)
	}
	validBefore, parseOK := new(big.Int).SetString(r.ValidBefore, 0)
	if !parseOK {
		return gate.MintAuthorization{}, fmt.Errorf("error parsing validBefore: %s", r.ValidBefore)
	}

	return gate.MintAuthorization{
		Target:      common.HexToAddress(r.Target),
		Recipient:   common.HexToAddress(r.Recipient),
		TokenID:     tokenID,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       common.HexToHash(r.Nonce),
	}, nil
}

// ParseSignature decodes a hex signature, with or without 0x prefix.
func ParseSignature(raw string) ([]byte, error) {
	signature, decodeErr := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if decodeErr != nil {
		return nil, fmt.Errorf("error decoding signature: %w", decodeErr)
	}
	return signature, nil
}
