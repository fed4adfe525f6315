package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/etherforge/mintgate/gate"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusForError maps the engine's error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, gate.ErrAccessDenied),
		errors.Is(err, gate.ErrAuthorizationMismatch),
		errors.Is(err, gate.ErrFeatureDisabled):
		return http.StatusForbidden
	case errors.Is(err, gate.ErrInvalidInput),
		errors.Is(err, gate.ErrInvalidSignature),
		errors.Is(err, gate.ErrSignatureWindowInvalid):
		return http.StatusBadRequest
	case errors.Is(err, gate.ErrNonceAlreadyUsed),
		errors.Is(err, gate.ErrHardcapReached):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{Status: "ok"})
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	domain, err := s.engine.Domain(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("status: failed to resolve domain")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		DomainName:        domain.Name,
		ChainID:           domain.ChainID,
		VerifyingContract: domain.VerifyingContract.Hex(),
		Operator:          s.operator.Hex(),
		TotalMinted:       s.engine.TotalMinted(),
		Hardcap:           s.engine.Hardcap(),
		AuthorizedMinting: s.cfg.AuthorizedMinting,
	})
}

func (s *Server) AddressHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AddressResponse{Address: s.operator.Hex()})
}

func (s *Server) NonceStateHandler(w http.ResponseWriter, r *http.Request) {
	authorizerRaw := chi.URLParam(r, "authorizer")
	nonceRaw := chi.URLParam(r, "nonce")
	if !common.IsHexAddress(authorizerRaw) {
		writeError(w, http.StatusBadRequest, "authorizer must be a valid Ethereum address")
		return
	}
	if len(nonceRaw) != 2+2*common.HashLength {
		writeError(w, http.StatusBadRequest, "nonce must be a 0x-prefixed 32-byte hex value")
		return
	}

	authorizer := common.HexToAddress(authorizerRaw)
	nonce := common.HexToHash(nonceRaw)

	consumed, err := s.engine.AuthorizationState(r.Context(), authorizer, nonce)
	if err != nil {
		s.log.Error().Err(err).Msg("nonce state query failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, NonceStateResponse{
		Authorizer: authorizer.Hex(),
		Nonce:      nonce.Hex(),
		Consumed:   consumed,
	})
}

func (s *Server) CreateMessageHashHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters AuthorizationFields
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}

	auth, parseErr := requestParameters.ParseAuthorization()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error())
		return
	}

	digest, digestErr := s.engine.MintAuthorizationDigest(r.Context(), auth)
	if digestErr != nil {
		s.log.Error().Err(digestErr).Msg("failed to create message hash")
		writeError(w, statusForError(digestErr), "failed to create message hash")
		return
	}

	writeJSON(w, http.StatusOK, DigestResponse{Digest: "0x" + hex.EncodeToString(digest)})
}

func (s *Server) CancelMessageHashHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters CancelHashRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}
	if validateErr := validate.Struct(&requestParameters); validateErr != nil {
		writeError(w, http.StatusBadRequest, validateErr.Error())
		return
	}

	digest, digestErr := s.engine.CancelAuthorizationDigest(r.Context(), common.HexToAddress(requestParameters.Authorizer), common.HexToHash(requestParameters.Nonce))
	if digestErr != nil {
		s.log.Error().Err(digestErr).Msg("failed to create cancellation hash")
		writeError(w, statusForError(digestErr), "failed to create cancellation hash")
		return
	}

	writeJSON(w, http.StatusOK, DigestResponse{Digest: "0x" + hex.EncodeToString(digest)})
}

// SignHandler signs a mint authorization with the operator key, for
// deployments where the gateway itself is the authorizer.
func (s *Server) SignHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters AuthorizationFields
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}

	auth, parseErr := requestParameters.ParseAuthorization()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error())
		return
	}

	digest, digestErr := s.engine.MintAuthorizationDigest(r.Context(), auth)
	if digestErr != nil {
		s.log.Error().Err(digestErr).Msg("failed to create message hash")
		writeError(w, statusForError(digestErr), "failed to create message hash")
		return
	}

	signature, signErr := gate.SignDigest(digest, s.key)
	if signErr != nil {
		s.log.Error().Err(signErr).Msg("failed to create signature")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SignResponse{
		Request:   &requestParameters,
		Digest:    "0x" + hex.EncodeToString(digest),
		Signer:    s.operator.Hex(),
		Signature: "0x" + hex.EncodeToString(signature),
	})
}

func (s *Server) MintHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters MintRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}

	target, recipient, tokenID, parseErr := requestParameters.ParseMint()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error())
		return
	}

	if err := s.engine.Mint(r.Context(), s.operator, target, recipient, tokenID); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MintResponse{Minted: true, TotalMinted: s.engine.TotalMinted()})
}

func (s *Server) MintWithAuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters AuthorizedMintRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}

	auth, parseErr := requestParameters.ParseAuthorization()
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error())
		return
	}
	signature, signatureErr := ParseSignature(requestParameters.Signature)
	if signatureErr != nil {
		writeError(w, http.StatusBadRequest, signatureErr.Error())
		return
	}

	if err := s.engine.MintWithAuthorization(r.Context(), auth, signature); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MintResponse{Minted: true, TotalMinted: s.engine.TotalMinted()})
}

func (s *Server) CancelAuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters CancelAuthorizationRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}
	if validateErr := validate.Struct(&requestParameters); validateErr != nil {
		writeError(w, http.StatusBadRequest, validateErr.Error())
		return
	}
	signature, signatureErr := ParseSignature(requestParameters.Signature)
	if signatureErr != nil {
		writeError(w, http.StatusBadRequest, signatureErr.Error())
		return
	}

	authorizer := common.HexToAddress(requestParameters.Authorizer)
	nonce := common.HexToHash(requestParameters.Nonce)

	if err := s.engine.CancelAuthorization(r.Context(), authorizer, nonce, signature); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		Cancelled:  true,
		Authorizer: authorizer.Hex(),
		Nonce:      nonce.Hex(),
	})
}

func (s *Server) SelfCancelHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters SelfCancelRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}
	if validateErr := validate.Struct(&requestParameters); validateErr != nil {
		writeError(w, http.StatusBadRequest, validateErr.Error())
		return
	}

	nonce := common.HexToHash(requestParameters.Nonce)
	if err := s.engine.Cancel(r.Context(), s.operator, nonce); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		Cancelled:  true,
		Authorizer: s.operator.Hex(),
		Nonce:      nonce.Hex(),
	})
}

func (s *Server) HardcapHandler(w http.ResponseWriter, r *http.Request) {
	var requestParameters HardcapRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&requestParameters); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "Error decoding request")
		return
	}
	if validateErr := validate.Struct(&requestParameters); validateErr != nil {
		writeError(w, http.StatusBadRequest, validateErr.Error())
		return
	}

	if err := s.engine.UpdateTotalMintHardcap(s.operator, *requestParameters.Hardcap); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, HardcapResponse{Hardcap: s.engine.Hardcap()})
}
