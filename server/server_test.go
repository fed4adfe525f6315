package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/etherforge/mintgate/gate"
)

type serverHarness struct {
	server        *Server
	router        http.Handler
	cfg           *Config
	authorizerKey *ecdsa.PrivateKey
	authorizer    common.Address
}

func newServerHarness(t *testing.T, hardcap uint64, admins bool) *serverHarness {
	t.Helper()

	operatorKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	operator := crypto.PubkeyToAddress(operatorKey.PublicKey)

	authorizerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	authorizer := crypto.PubkeyToAddress(authorizerKey.PublicKey)

	cfg := &Config{
		Host:              "127.0.0.1",
		Port:              0,
		DomainName:        "mintgate-test",
		VerifyingContract: common.HexToAddress("0x0000000000000000000000000000000000000F01"),
		ChainID:           big.NewInt(1337),
		Hardcap:           hardcap,
		AuthorizedMinting: true,
		MinterAddresses:   []common.Address{operator, authorizer},
	}
	if admins {
		cfg.HardcapAdmins = []common.Address{operator}
	}

	srv, err := New(context.Background(), cfg, operatorKey, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return &serverHarness{
		server:        srv,
		router:        srv.Router(),
		cfg:           cfg,
		authorizerKey: authorizerKey,
		authorizer:    authorizer,
	}
}

func (h *serverHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		require.NoError(t, marshalErr)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, request)
	return recorder
}

func (h *serverHarness) domain() gate.AuthorizationDomain {
	return gate.AuthorizationDomain{
		Name:              h.cfg.DomainName,
		ChainID:           h.cfg.ChainID,
		VerifyingContract: h.cfg.VerifyingContract,
	}
}

// signedMintRequest builds an authorized mint request valid around the
// current wall clock.
func (h *serverHarness) signedMintRequest(t *testing.T, nonce common.Hash) AuthorizedMintRequest {
	t.Helper()

	now := time.Now().Unix()
	auth := gate.MintAuthorization{
		Target:      common.HexToAddress("0x0000000000000000000000000000000000000E02"),
		Recipient:   common.HexToAddress("0x0000000000000000000000000000000000000E03"),
		TokenID:     big.NewInt(7),
		ValidAfter:  big.NewInt(now - 3600),
		ValidBefore: big.NewInt(now + 3600),
		Nonce:       nonce,
	}
	signature, err := gate.SignMintAuthorization(h.domain(), auth, h.authorizerKey)
	require.NoError(t, err)

	return AuthorizedMintRequest{
		AuthorizationFields: AuthorizationFields{
			MintRequest: MintRequest{
				Target:    auth.Target.Hex(),
				Recipient: auth.Recipient.Hex(),
				TokenID:   auth.TokenID.String(),
			},
			ValidAfter:  auth.ValidAfter.String(),
			ValidBefore: auth.ValidBefore.String(),
			Nonce:       nonce.Hex(),
		},
		Signature: "0x" + common.Bytes2Hex(signature),
	}
}

func TestPingEndpoint(t *testing.T) {
	h := newServerHarness(t, 10, true)
	recorder := h.do(t, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response PingResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, "ok", response.Status)
}

func TestMintWithAuthorizationEndpoint(t *testing.T) {
	h := newServerHarness(t, 10, true)
	request := h.signedMintRequest(t, common.HexToHash("0x01"))

	recorder := h.do(t, http.MethodPost, "/mint_with_authorization", request)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var response MintResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.True(t, response.Minted)
	require.Equal(t, uint64(1), response.TotalMinted)

	// Identical replay burns on the consumed nonce.
	recorder = h.do(t, http.MethodPost, "/mint_with_authorization", request)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, uint64(1), h.server.Engine().TotalMinted())
}

func TestMintWithAuthorizationRejectsMalformedAddress(t *testing.T) {
	h := newServerHarness(t, 10, true)
	request := h.signedMintRequest(t, common.HexToHash("0x02"))
	request.Recipient = "not-an-address"

	recorder := h.do(t, http.MethodPost, "/mint_with_authorization", request)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDirectMintAndStatus(t *testing.T) {
	h := newServerHarness(t, 10, true)

	recorder := h.do(t, http.MethodPost, "/mint", MintRequest{
		Target:    "0x0000000000000000000000000000000000000E02",
		Recipient: "0x0000000000000000000000000000000000000E03",
		TokenID:   "1",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = h.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	require.Equal(t, "mintgate-test", status.DomainName)
	require.Equal(t, uint64(1), status.TotalMinted)
	require.Equal(t, uint64(10), status.Hardcap)
	require.Equal(t, h.server.Operator().Hex(), status.Operator)
}

func TestHardcapEndpoint(t *testing.T) {
	h := newServerHarness(t, 10, true)

	newCap := uint64(3)
	recorder := h.do(t, http.MethodPost, "/hardcap", HardcapRequest{Hardcap: &newCap})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(t, uint64(3), h.server.Engine().Hardcap())
}

func TestHardcapEndpointRequiresAdminRole(t *testing.T) {
	h := newServerHarness(t, 10, false)

	newCap := uint64(3)
	recorder := h.do(t, http.MethodPost, "/hardcap", HardcapRequest{Hardcap: &newCap})
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Equal(t, uint64(10), h.server.Engine().Hardcap())
}

func TestNonceStateEndpoint(t *testing.T) {
	h := newServerHarness(t, 10, true)
	nonce := common.HexToHash("0x03")
	operator := h.server.Operator()

	path := fmt.Sprintf("/nonce/%s/%s", operator.Hex(), nonce.Hex())
	recorder := h.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var state NonceStateResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &state))
	require.False(t, state.Consumed)

	recorder = h.do(t, http.MethodPost, "/cancel", SelfCancelRequest{Nonce: nonce.Hex()})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = h.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &state))
	require.True(t, state.Consumed)

	// Cancelling again double-burns.
	recorder = h.do(t, http.MethodPost, "/cancel", SelfCancelRequest{Nonce: nonce.Hex()})
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestSignAndCancelHashEndpoints(t *testing.T) {
	h := newServerHarness(t, 10, true)
	request := h.signedMintRequest(t, common.HexToHash("0x04"))

	recorder := h.do(t, http.MethodPost, "/create_message_hash", request.AuthorizationFields)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var digest DigestResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &digest))
	require.Len(t, digest.Digest, 2+2*common.HashLength)

	recorder = h.do(t, http.MethodPost, "/sign", request.AuthorizationFields)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var signed SignResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &signed))
	require.Equal(t, digest.Digest, signed.Digest)
	require.Equal(t, h.server.Operator().Hex(), signed.Signer)

	// The operator's signature over that digest must recover to the
	// operator.
	signature, err := ParseSignature(signed.Signature)
	require.NoError(t, err)
	rawDigest := common.FromHex(digest.Digest)
	recovered, err := gate.RecoverSigner(rawDigest, signature)
	require.NoError(t, err)
	require.Equal(t, h.server.Operator(), recovered)

	recorder = h.do(t, http.MethodPost, "/cancel_message_hash", CancelHashRequest{
		Authorizer: h.authorizer.Hex(),
		Nonce:      common.HexToHash("0x04").Hex(),
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestCancelAuthorizationEndpoint(t *testing.T) {
	h := newServerHarness(t, 10, true)
	nonce := common.HexToHash("0x05")

	signature, err := gate.SignCancelAuthorization(h.domain(), gate.CancelAuthorization{
		Authorizer: h.authorizer,
		Nonce:      nonce,
	}, h.authorizerKey)
	require.NoError(t, err)

	recorder := h.do(t, http.MethodPost, "/cancel_authorization", CancelAuthorizationRequest{
		Authorizer: h.authorizer.Hex(),
		Nonce:      nonce.Hex(),
		Signature:  "0x" + common.Bytes2Hex(signature),
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	// The cancelled nonce can no longer authorize a mint.
	request := h.signedMintRequest(t, nonce)
	recorder = h.do(t, http.MethodPost, "/mint_with_authorization", request)
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestCancelAuthorizationEndpointRejectsMismatchedSigner(t *testing.T) {
	h := newServerHarness(t, 10, true)
	nonce := common.HexToHash("0x06")
	stated := common.HexToAddress("0x0000000000000000000000000000000000000E04")

	// Signed by the authorizer key, but stating a different authorizer.
	signature, err := gate.SignCancelAuthorization(h.domain(), gate.CancelAuthorization{
		Authorizer: stated,
		Nonce:      nonce,
	}, h.authorizerKey)
	require.NoError(t, err)

	recorder := h.do(t, http.MethodPost, "/cancel_authorization", CancelAuthorizationRequest{
		Authorizer: stated.Hex(),
		Nonce:      nonce.Hex(),
		Signature:  "0x" + common.Bytes2Hex(signature),
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	state, err := h.server.Engine().AuthorizationState(context.Background(), stated, nonce)
	require.NoError(t, err)
	require.False(t, state)
}
