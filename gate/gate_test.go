package gate

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type mintCall struct {
	target    common.Address
	recipient common.Address
	tokenID   *big.Int
}

// recordingMinter captures calls and optionally fails them.
type recordingMinter struct {
	mu    sync.Mutex
	calls []mintCall
	fail  error
}

func (m *recordingMinter) Mint(_ context.Context, target, recipient common.Address, tokenID *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.calls = append(m.calls, mintCall{target: target, recipient: recipient, tokenID: new(big.Int).Set(tokenID)})
	return nil
}

func (m *recordingMinter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var (
	executorAddr  = common.HexToAddress("0x0000000000000000000000000000000000000E01")
	targetAddr    = common.HexToAddress("0x0000000000000000000000000000000000000E02")
	recipientAddr = common.HexToAddress("0x0000000000000000000000000000000000000E03")
	strangerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000E04")
)

func newTestGate(hardcap uint64) (*Gate, *recordingMinter, *MemorySink) {
	minter := &recordingMinter{}
	sink := &MemorySink{}
	roles := StaticRoles{}.Grant(executorAddr, RoleMinter)
	return NewGate(roles, minter, sink, hardcap), minter, sink
}

func TestExecuteMintSuccess(t *testing.T) {
	g, minter, sink := newTestGate(10)
	ctx := context.Background()

	require.NoError(t, g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(1)))
	require.Equal(t, uint64(1), g.TotalMinted())
	require.Equal(t, 1, minter.callCount())
	require.Equal(t, targetAddr, minter.calls[0].target)
	require.Equal(t, recipientAddr, minter.calls[0].recipient)

	events := sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, "Minted", events[0].Kind)
	require.Equal(t, big.NewInt(1), events[0].TokenID)
}

func TestExecuteMintErrorPrecedence(t *testing.T) {
	g, _, _ := newTestGate(0)
	ctx := context.Background()

	// Role is checked before input validation: a stranger with garbage
	// inputs sees AccessDenied, not InvalidInput.
	err := g.ExecuteMint(ctx, strangerAddr, common.Address{}, common.Address{}, nil)
	require.ErrorIs(t, err, ErrAccessDenied)

	err = g.ExecuteMint(ctx, executorAddr, common.Address{}, common.Address{}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	err = g.ExecuteMint(ctx, executorAddr, targetAddr, common.Address{}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	err = g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidInput)

	err = g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	// Inputs valid, hardcap 0: only now does the hardcap error surface.
	err = g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(1))
	require.ErrorIs(t, err, ErrHardcapReached)
}

func TestExecuteMintHardcap(t *testing.T) {
	g, minter, _ := newTestGate(2)
	ctx := context.Background()

	require.NoError(t, g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(1)))
	require.NoError(t, g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(2)))

	err := g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(3))
	require.ErrorIs(t, err, ErrHardcapReached)
	require.Equal(t, uint64(2), g.TotalMinted())
	require.Equal(t, 2, minter.callCount())
}

func TestExecuteMintRollsBackCounterOnMinterFailure(t *testing.T) {
	g, minter, sink := newTestGate(10)
	minter.fail = errors.New("chain unavailable")
	ctx := context.Background()

	err := g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(1))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrHardcapReached)
	require.Equal(t, uint64(0), g.TotalMinted())
	require.Empty(t, sink.Events())

	// The failure consumed no capacity.
	minter.fail = nil
	require.NoError(t, g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(1)))
	require.Equal(t, uint64(1), g.TotalMinted())
}

func TestSetHardcapBelowMintedHaltsMinting(t *testing.T) {
	g, _, _ := newTestGate(5)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(int64(i))))
	}

	old := g.SetHardcap(1)
	require.Equal(t, uint64(5), old)
	require.Equal(t, uint64(1), g.Hardcap())
	require.Equal(t, uint64(3), g.TotalMinted(), "lowering the hardcap must not alter the counter")

	err := g.ExecuteMint(ctx, executorAddr, targetAddr, recipientAddr, big.NewInt(4))
	require.ErrorIs(t, err, ErrHardcapReached)
	require.Equal(t, uint64(3), g.TotalMinted())
}
