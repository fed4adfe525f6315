package gate

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// EventSink receives the observable events this core produces for
// external indexers.
type EventSink interface {
	Minted(target, recipient common.Address, tokenID *big.Int)
	NonceUsed(authorizer common.Address, nonce common.Hash)
	NonceCancelled(authorizer common.Address, nonce common.Hash)
	HardcapUpdated(actor common.Address, oldCap, newCap uint64)
}

// LoggerSink mirrors events into a zerolog logger.
type LoggerSink struct {
	Log zerolog.Logger
}

func (s LoggerSink) Minted(target, recipient common.Address, tokenID *big.Int) {
	s.Log.Info().
		Str("event", "Minted").
		Str("target", target.Hex()).
		Str("recipient", recipient.Hex()).
		Str("tokenId", tokenID.String()).
		Msg("token minted")
}

func (s LoggerSink) NonceUsed(authorizer common.Address, nonce common.Hash) {
	s.Log.Info().
		Str("event", "NonceUsed").
		Str("authorizer", authorizer.Hex()).
		Str("nonce", nonce.Hex()).
		Msg("authorization nonce used")
}

func (s LoggerSink) NonceCancelled(authorizer common.Address, nonce common.Hash) {
	s.Log.Info().
		Str("event", "NonceCancelled").
		Str("authorizer", authorizer.Hex()).
		Str("nonce", nonce.Hex()).
		Msg("authorization nonce cancelled")
}

func (s LoggerSink) HardcapUpdated(actor common.Address, oldCap, newCap uint64) {
	s.Log.Info().
		Str("event", "HardcapUpdated").
		Str("actor", actor.Hex()).
		Uint64("old", oldCap).
		Uint64("new", newCap).
		Msg("total mint hardcap updated")
}

// Event is a recorded event, used by MemorySink.
type Event struct {
	Kind       string
	Target     common.Address
	Recipient  common.Address
	TokenID    *big.Int
	Authorizer common.Address
	Nonce      common.Hash
	Actor      common.Address
	OldCap     uint64
	NewCap     uint64
}

// MemorySink records events in order. Safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *MemorySink) Minted(target, recipient common.Address, tokenID *big.Int) {
	s.record(Event{Kind: "Minted", Target: target, Recipient: recipient, TokenID: new(big.Int).Set(tokenID)})
}

func (s *MemorySink) NonceUsed(authorizer common.Address, nonce common.Hash) {
	s.record(Event{Kind: "NonceUsed", Authorizer: authorizer, Nonce: nonce})
}

func (s *MemorySink) NonceCancelled(authorizer common.Address, nonce common.Hash) {
	s.record(Event{Kind: "NonceCancelled", Authorizer: authorizer, Nonce: nonce})
}

func (s *MemorySink) HardcapUpdated(actor common.Address, oldCap, newCap uint64) {
	s.record(Event{Kind: "HardcapUpdated", Actor: actor, OldCap: oldCap, NewCap: newCap})
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
