package gate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// ChainIDFunc reports the current chain identifier. It is consulted on
// every digest computation rather than cached, since the identifier can
// change under forked or test environments.
type ChainIDFunc func(ctx context.Context) (*big.Int, error)

// StaticChainID returns a ChainIDFunc for a fixed chain identifier.
func StaticChainID(chainID *big.Int) ChainIDFunc {
	id := new(big.Int).Set(chainID)
	return func(context.Context) (*big.Int, error) {
		return new(big.Int).Set(id), nil
	}
}

// NowFunc supplies the current time for authorization window checks.
type NowFunc func() time.Time

// Config assembles an Engine.
type Config struct {
	DomainName        string
	VerifyingContract common.Address
	ChainID           ChainIDFunc

	Roles  RoleStore
	Flags  FeatureFlags
	Minter Minter
	Nonces NonceStore

	Hardcap uint64

	// Events defaults to a LoggerSink over Log.
	Events EventSink
	// Now defaults to time.Now.
	Now NowFunc

	Log zerolog.Logger
}

// Engine composes the digest builder, signature recoverer, nonce ledger
// and mint gate into the public authorization surface.
type Engine struct {
	domainName        string
	verifyingContract common.Address
	chainID           ChainIDFunc
	now               NowFunc

	roles  RoleStore
	flags  FeatureFlags
	ledger *NonceLedger
	gate   *Gate
	events EventSink
	log    zerolog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.DomainName == "" {
		return nil, errors.New("engine config: domain name must be set")
	}
	if cfg.VerifyingContract == (common.Address{}) {
		return nil, errors.New("engine config: verifying contract must be a non-zero address")
	}
	if cfg.ChainID == nil {
		return nil, errors.New("engine config: chain ID source must be set")
	}
	if cfg.Roles == nil || cfg.Flags == nil || cfg.Minter == nil || cfg.Nonces == nil {
		return nil, errors.New("engine config: roles, flags, minter and nonce store must all be set")
	}

	events := cfg.Events
	if events == nil {
		events = LoggerSink{Log: cfg.Log}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		domainName:        cfg.DomainName,
		verifyingContract: cfg.VerifyingContract,
		chainID:           cfg.ChainID,
		now:               now,
		roles:             cfg.Roles,
		flags:             cfg.Flags,
		ledger:            NewNonceLedger(cfg.Nonces, events),
		gate:              NewGate(cfg.Roles, cfg.Minter, events, cfg.Hardcap),
		events:            events,
		log:               cfg.Log,
	}, nil
}

// Domain derives the current authorization domain. The chain identifier
// is re-read on every call.
func (e *Engine) Domain(ctx context.Context) (AuthorizationDomain, error) {
	chainID, err := e.chainID(ctx)
	if err != nil {
		return AuthorizationDomain{}, fmt.Errorf("resolving chain ID: %w", err)
	}
	return AuthorizationDomain{
		Name:              e.domainName,
		ChainID:           chainID,
		VerifyingContract: e.verifyingContract,
	}, nil
}

// Mint executes a direct mint with the caller as executor.
func (e *Engine) Mint(ctx context.Context, caller, target, recipient common.Address, tokenID *big.Int) error {
	return e.gate.ExecuteMint(ctx, caller, target, recipient, tokenID)
}

// MintWithAuthorization executes a relayed mint on behalf of the
// authorization signer. The nonce is consumed before the mint gate runs,
// so a mint that then fails (hardcap, role, inputs) still burns the
// nonce. This asymmetry is deliberate: it prevents a racing relayer from
// retrying a signature that was observed to fail once.
func (e *Engine) MintWithAuthorization(ctx context.Context, auth MintAuthorization, signature []byte) error {
	if !e.flags.Enabled(FlagAuthorizedMinting) {
		return ErrFeatureDisabled
	}
	if auth.TokenID == nil || auth.ValidAfter == nil || auth.ValidBefore == nil {
		return fmt.Errorf("%w: tokenId, validAfter and validBefore must be set", ErrInvalidInput)
	}

	// Both bounds are exclusive: a zero-width window never opens.
	now := big.NewInt(e.now().Unix())
	if now.Cmp(auth.ValidAfter) <= 0 {
		return fmt.Errorf("%w: not valid until after %s", ErrSignatureWindowInvalid, auth.ValidAfter)
	}
	if now.Cmp(auth.ValidBefore) >= 0 {
		return fmt.Errorf("%w: expired at %s", ErrSignatureWindowInvalid, auth.ValidBefore)
	}

	domain, err := e.Domain(ctx)
	if err != nil {
		return err
	}
	digest, err := MintAuthorizationDigest(domain, auth)
	if err != nil {
		return fmt.Errorf("building authorization digest: %w", err)
	}
	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return err
	}

	if err := e.ledger.UseOrCancel(ctx, signer, auth.Nonce, false); err != nil {
		return err
	}

	e.log.Debug().
		Str("signer", signer.Hex()).
		Str("nonce", auth.Nonce.Hex()).
		Msg("authorization accepted, executing mint")

	return e.gate.ExecuteMint(ctx, signer, auth.Target, auth.Recipient, auth.TokenID)
}

// CancelAuthorization burns an unused nonce on behalf of its authorizer,
// authenticated by signature. The recovered signer must equal the stated
// authorizer exactly; a valid signature from anyone else cannot cancel
// another party's nonce.
func (e *Engine) CancelAuthorization(ctx context.Context, authorizer common.Address, nonce common.Hash, signature []byte) error {
	domain, err := e.Domain(ctx)
	if err != nil {
		return err
	}
	digest, err := CancelAuthorizationDigest(domain, CancelAuthorization{Authorizer: authorizer, Nonce: nonce})
	if err != nil {
		return fmt.Errorf("building cancellation digest: %w", err)
	}
	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if signer != authorizer {
		return fmt.Errorf("%w: recovered %s, stated %s", ErrAuthorizationMismatch, signer.Hex(), authorizer.Hex())
	}
	return e.ledger.UseOrCancel(ctx, authorizer, nonce, true)
}

// Cancel burns one of the caller's own nonces. No signature is needed:
// the caller is already authenticated by the execution context.
func (e *Engine) Cancel(ctx context.Context, caller common.Address, nonce common.Hash) error {
	return e.ledger.UseOrCancel(ctx, caller, nonce, true)
}

// UpdateTotalMintHardcap overwrites the hardcap. There is deliberately no
// floor check against totalMinted; an administrator can set the hardcap
// below the minted count, which halts further minting.
func (e *Engine) UpdateTotalMintHardcap(actor common.Address, hardcap uint64) error {
	if !e.roles.HasRole(actor, RoleHardcapAdmin) {
		return fmt.Errorf("%w: %s lacks the %s role", ErrAccessDenied, actor.Hex(), RoleHardcapAdmin)
	}
	old := e.gate.SetHardcap(hardcap)
	e.events.HardcapUpdated(actor, old, hardcap)
	return nil
}

// AuthorizationState reports whether (authorizer, nonce) has been
// consumed. Pure read, no side effects.
func (e *Engine) AuthorizationState(ctx context.Context, authorizer common.Address, nonce common.Hash) (bool, error) {
	return e.ledger.State(ctx, authorizer, nonce)
}

// MintAuthorizationDigest builds the digest for a mint authorization
// under the engine's current domain, for off-chain signing clients.
func (e *Engine) MintAuthorizationDigest(ctx context.Context, auth MintAuthorization) ([]byte, error) {
	if auth.TokenID == nil || auth.ValidAfter == nil || auth.ValidBefore == nil {
		return nil, fmt.Errorf("%w: tokenId, validAfter and validBefore must be set", ErrInvalidInput)
	}
	domain, err := e.Domain(ctx)
	if err != nil {
		return nil, err
	}
	return MintAuthorizationDigest(domain, auth)
}

// CancelAuthorizationDigest builds the digest for a cancellation under
// the engine's current domain.
func (e *Engine) CancelAuthorizationDigest(ctx context.Context, authorizer common.Address, nonce common.Hash) ([]byte, error) {
	domain, err := e.Domain(ctx)
	if err != nil {
		return nil, err
	}
	return CancelAuthorizationDigest(domain, CancelAuthorization{Authorizer: authorizer, Nonce: nonce})
}

// TotalMinted returns the cumulative successful mint count.
func (e *Engine) TotalMinted() uint64 { return e.gate.TotalMinted() }

// Hardcap returns the current total mint hardcap.
func (e *Engine) Hardcap() uint64 { return e.gate.Hardcap() }
