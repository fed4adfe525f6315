// Package server exposes the minting gateway over HTTP.
//
// The server holds one operator signing key. HTTP carries no ambient
// caller identity, so operations that a contract would attribute to
// msg.sender (direct mint, self-cancel, hardcap updates) execute as the
// configured operator address; third parties act exclusively through
// signed authorizations relayed to the authorized endpoints.
package server

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/etherforge/mintgate/chain"
	"github.com/etherforge/mintgate/gate"
	"github.com/etherforge/mintgate/noncedb"
)

type Server struct {
	cfg      *Config
	engine   *gate.Engine
	key      *ecdsa.PrivateKey
	operator common.Address
	log      zerolog.Logger
	closers  []io.Closer
}

// New assembles a gateway server from configuration. Without an RPC
// endpoint the mint capability runs dry: mints are logged and reported
// successful, which is only useful for development deployments.
func New(ctx context.Context, cfg *Config, key *ecdsa.PrivateKey, log zerolog.Logger) (*Server, error) {
	operator := crypto.PubkeyToAddress(key.PublicKey)

	roles := gate.StaticRoles{}
	for _, addr := range cfg.MinterAddresses {
		roles.Grant(addr, gate.RoleMinter)
	}
	for _, addr := range cfg.HardcapAdmins {
		roles.Grant(addr, gate.RoleHardcapAdmin)
	}

	flags := gate.StaticFlags{gate.FlagAuthorizedMinting: cfg.AuthorizedMinting}

	var nonces gate.NonceStore
	var closers []io.Closer
	if cfg.NonceDBPath != "" {
		store, openErr := noncedb.Open(cfg.NonceDBPath)
		if openErr != nil {
			return nil, openErr
		}
		nonces = store
		closers = append(closers, store)
	} else {
		nonces = gate.NewMemoryNonceStore()
	}

	var minter gate.Minter
	var chainID gate.ChainIDFunc
	if cfg.RPCURL != "" {
		liveMinter, minterErr := chain.NewMinter(ctx, cfg.RPCURL, key)
		if minterErr != nil {
			return nil, minterErr
		}
		minter = liveMinter
		chainID = chain.LiveChainID(liveMinter.Client())
	} else {
		minter = dryRunMinter(log)
		chainID = gate.StaticChainID(cfg.ChainID)
	}

	engine, engineErr := gate.NewEngine(gate.Config{
		DomainName:        cfg.DomainName,
		VerifyingContract: cfg.VerifyingContract,
		ChainID:           chainID,
		Roles:             roles,
		Flags:             flags,
		Minter:            minter,
		Nonces:            nonces,
		Hardcap:           cfg.Hardcap,
		Events:            gate.LoggerSink{Log: log},
		Log:               log,
	})
	if engineErr != nil {
		return nil, engineErr
	}

	return &Server{
		cfg:      cfg,
		engine:   engine,
		key:      key,
		operator: operator,
		log:      log,
		closers:  closers,
	}, nil
}

func dryRunMinter(log zerolog.Logger) gate.Minter {
	return gate.MinterFunc(func(_ context.Context, target, recipient common.Address, tokenID *big.Int) error {
		log.Warn().
			Str("target", target.Hex()).
			Str("recipient", recipient.Hex()).
			Str("tokenId", tokenID.String()).
			Msg("no RPC endpoint configured, mint executed dry")
		return nil
	})
}

// Engine exposes the underlying engine, e.g. for tests.
func (s *Server) Engine() *gate.Engine {
	return s.engine
}

// Operator returns the configured operator address.
func (s *Server) Operator() common.Address {
	return s.operator
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(recoverPanics(s.log))
	r.Use(accessLog(s.log))
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Get("/ping", s.PingHandler)
	r.Get("/status", s.StatusHandler)
	r.Get("/address", s.AddressHandler)
	r.Get("/nonce/{authorizer}/{nonce}", s.NonceStateHandler)

	r.Post("/create_message_hash", s.CreateMessageHashHandler)
	r.Post("/cancel_message_hash", s.CancelMessageHashHandler)
	r.Post("/sign", s.SignHandler)
	r.Post("/mint", s.MintHandler)
	r.Post("/mint_with_authorization", s.MintWithAuthorizationHandler)
	r.Post("/cancel_authorization", s.CancelAuthorizationHandler)
	r.Post("/cancel", s.SelfCancelHandler)
	r.Post("/hardcap", s.HardcapHandler)

	return r
}

// Run serves the gateway until the listener fails.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  40 * time.Second,
		WriteTimeout: 40 * time.Second,
	}

	s.log.Info().
		Str("addr", httpServer.Addr).
		Str("operator", s.operator.Hex()).
		Str("domain", s.cfg.DomainName).
		Msg("starting mintgate server")

	if err := httpServer.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server listener: %w", err)
	}
	return nil
}

// Close releases server resources (the nonce database, if any).
func (s *Server) Close() error {
	var firstErr error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
