package consent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payguard/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	tokens   map[string]Token
	byIntent map[string]string
	sessions map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tokens:   make(map[string]Token),
		byIntent: make(map[string]string),
		sessions: make(map[string][]string),
	}
}

func (s *InMemoryStore) Save(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenID]; !exists {
		s.sessions[token.SessionID] = append(s.sessions[token.SessionID], token.TokenID)
	}
	s.tokens[token.TokenID] = token
	s.byIntent[token.IntentID] = token.TokenID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tokenID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &tok, nil
}

func (s *InMemoryStore) FindByIntent(_ context.Context, intentID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIntent[intentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	tok := s.tokens[id]
	return &tok, nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID string) ([]Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sessions[sessionID]
	out := make([]Token, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tokens[id])
	}
	return out, nil
}

type spentEntry struct {
	mark      Mark
	expiresAt time.Time
}

// InMemorySpentStore is a process-local spent set. Entries past their TTL are
// dropped lazily on access.
type InMemorySpentStore struct {
	mu      sync.Mutex
	entries map[string]spentEntry
	now     func() time.Time
}

func NewInMemorySpentStore() *InMemorySpentStore {
	return &InMemorySpentStore{entries: make(map[string]spentEntry), now: time.Now}
}

func (s *InMemorySpentStore) Claim(_ context.Context, tokenID string, m Mark, ttl time.Duration) (*Mark, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live(tokenID); ok {
		return &existing.mark, sentinel.ErrAlreadyUsed
	}
	s.entries[tokenID] = spentEntry{mark: m, expiresAt: s.now().Add(ttl)}
	return &m, nil
}

func (s *InMemorySpentStore) Get(_ context.Context, tokenID string) (*Mark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(tokenID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e.mark, nil
}

func (s *InMemorySpentStore) live(tokenID string) (spentEntry, bool) {
	e, ok := s.entries[tokenID]
	if !ok {
		return spentEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, tokenID)
		return spentEntry{}, false
	}
	return e, true
}
