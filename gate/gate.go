package gate

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Gate enforces mint preconditions and owns the cumulative mint counter.
type Gate struct {
	roles  RoleStore
	minter Minter
	events EventSink

	mu          sync.Mutex
	totalMinted uint64
	hardcap     uint64
}

func NewGate(roles RoleStore, minter Minter, events EventSink, hardcap uint64) *Gate {
	return &Gate{roles: roles, minter: minter, events: events, hardcap: hardcap}
}

// ExecuteMint checks preconditions in a fixed order, increments the mint
// counter and invokes the external mint capability. The first failing
// precondition is reported and the rest are skipped, so error precedence
// is deterministic: role, target, recipient, token ID, hardcap.
//
// Trust boundary: executor is an already-authenticated identity, not the
// transport-level caller. The direct path passes the caller itself; the
// authorized path passes the recovered signer. Callers are solely
// responsible for establishing that identity before calling — passing an
// unauthenticated address here is a privilege escalation.
func (g *Gate) ExecuteMint(ctx context.Context, executor, target, recipient common.Address, tokenID *big.Int) error {
	if !g.roles.HasRole(executor, RoleMinter) {
		return fmt.Errorf("%w: %s lacks the %s role", ErrAccessDenied, executor.Hex(), RoleMinter)
	}
	if target == (common.Address{}) {
		return fmt.Errorf("%w: target is the zero address", ErrInvalidInput)
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: recipient is the zero address", ErrInvalidInput)
	}
	if tokenID == nil || tokenID.Sign() <= 0 {
		return fmt.Errorf("%w: tokenId must be greater than zero", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.totalMinted >= g.hardcap {
		return fmt.Errorf("%w: %d of %d minted", ErrHardcapReached, g.totalMinted, g.hardcap)
	}

	// The increment and the external call form one atomic unit under the
	// gate mutex: a failed mint rolls the counter back, so no partial
	// state is ever observable.
	g.totalMinted++
	if err := g.minter.Mint(ctx, target, recipient, tokenID); err != nil {
		g.totalMinted--
		return fmt.Errorf("mint capability failed: %w", err)
	}

	g.events.Minted(target, recipient, tokenID)
	return nil
}

// TotalMinted returns the cumulative successful mint count.
func (g *Gate) TotalMinted() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalMinted
}

// Hardcap returns the current total mint hardcap.
func (g *Gate) Hardcap() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hardcap
}

// SetHardcap overwrites the hardcap unconditionally and returns the
// previous value. Setting it below totalMinted halts further minting
// without altering the counter.
func (g *Gate) SetHardcap(hardcap uint64) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.hardcap
	g.hardcap = hardcap
	return old
}
