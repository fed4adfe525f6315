package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceStore holds consumed-nonce records. Entries grow monotonically;
// once a pair is consumed there is no way to un-consume it.
type NonceStore interface {
	// Consume marks (authorizer, nonce) consumed. If the pair was already
	// consumed it reports already=true and writes nothing.
	Consume(ctx context.Context, authorizer common.Address, nonce common.Hash, cancelled bool) (already bool, err error)

	// Used reports whether (authorizer, nonce) has been consumed.
	Used(ctx context.Context, authorizer common.Address, nonce common.Hash) (bool, error)
}

type nonceKey struct {
	authorizer common.Address
	nonce      common.Hash
}

// MemoryNonceStore is the in-process NonceStore. Safe for concurrent use.
type MemoryNonceStore struct {
	mu   sync.RWMutex
	used map[nonceKey]bool
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{used: make(map[nonceKey]bool)}
}

func (s *MemoryNonceStore) Consume(_ context.Context, authorizer common.Address, nonce common.Hash, cancelled bool) (bool, error) {
	key := nonceKey{authorizer: authorizer, nonce: nonce}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[key] {
		return true, nil
	}
	s.used[key] = true
	return false, nil
}

func (s *MemoryNonceStore) Used(_ context.Context, authorizer common.Address, nonce common.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used[nonceKey{authorizer: authorizer, nonce: nonce}], nil
}

// NonceLedger enforces single use of (authorizer, nonce) pairs and emits
// the corresponding events. It is the only component that writes
// consumed-nonce records.
type NonceLedger struct {
	store  NonceStore
	events EventSink
}

func NewNonceLedger(store NonceStore, events EventSink) *NonceLedger {
	return &NonceLedger{store: store, events: events}
}

// UseOrCancel consumes (authorizer, nonce) as a single indivisible state
// transition. It fails with ErrNonceAlreadyUsed on replay or double
// cancellation; there is no partial-success path. The cancellation flag
// only selects which event is emitted.
func (l *NonceLedger) UseOrCancel(ctx context.Context, authorizer common.Address, nonce common.Hash, cancellation bool) error {
	already, err := l.store.Consume(ctx, authorizer, nonce, cancellation)
	if err != nil {
		return fmt.Errorf("consuming nonce: %w", err)
	}
	if already {
		return fmt.Errorf("%w: authorizer %s nonce %s", ErrNonceAlreadyUsed, authorizer.Hex(), nonce.Hex())
	}
	if cancellation {
		l.events.NonceCancelled(authorizer, nonce)
	} else {
		l.events.NonceUsed(authorizer, nonce)
	}
	return nil
}

// State is a pure read of the consumed flag for (authorizer, nonce).
// Clients can pre-check a nonce before requesting an off-chain signature,
// though that cannot fully prevent races with concurrent submissions.
func (l *NonceLedger) State(ctx context.Context, authorizer common.Address, nonce common.Hash) (bool, error) {
	return l.store.Used(ctx, authorizer, nonce)
}
