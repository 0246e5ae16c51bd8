package router

import (
	"context"
	"sync"
	"time"

	"payguard/pkg/platform/sentinel"
)

// InMemoryStore keeps records for a single instance.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*Record
	untrusted map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[string]*Record),
		untrusted: make(map[string]time.Time),
	}
}

func (s *InMemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.IntentID] = rec.clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, intentID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[intentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.clone(), nil
}

func (s *InMemoryStore) MarkSessionUntrusted(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.untrusted[sessionID]; !ok {
		s.untrusted[sessionID] = at
	}
	return nil
}

func (s *InMemoryStore) SessionUntrusted(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.untrusted[sessionID]
	return ok, nil
}
