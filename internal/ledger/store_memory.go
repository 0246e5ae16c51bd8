package ledger

import (
	"context"
	"slices"
	"sync"

	"payguard/pkg/platform/sentinel"
)

// InMemoryStore is an arena of entries indexed by sequence-1.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Tail(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	e := cloneEntry(s.entries[len(s.entries)-1])
	return &e, nil
}

func (s *InMemoryStore) Insert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tailHash := GenesisHash
	if n := len(s.entries); n > 0 {
		tailHash = s.entries[n-1].EntryHash
	}
	if e.PrevHash != tailHash || e.Sequence != uint64(len(s.entries))+1 {
		return sentinel.ErrConflict
	}
	s.entries = append(s.entries, cloneEntry(e))
	return nil
}

func (s *InMemoryStore) Page(_ context.Context, after, upTo uint64, f Filter, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	upTo = min(upTo, uint64(len(s.entries)))
	var out []Entry
	for seq := after + 1; seq <= upTo && len(out) < limit; seq++ {
		e := s.entries[seq-1]
		if f.matches(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func cloneEntry(e Entry) Entry {
	e.TriggeredRules = slices.Clone(e.TriggeredRules)
	return e
}
