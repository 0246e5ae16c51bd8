package velocity

import (
	"context"
	"slices"
	"sync"
	"time"

	"payguard/internal/domain"
)

// DefaultIdleExpiry is how long a user's history survives without a new
// payment, in both backends.
const DefaultIdleExpiry = 30 * 24 * time.Hour

// InMemoryStore implements Store with a per-user sliding window.
// Not shared across instances; use RedisStore for that.
type InMemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*userWindow
	limits Limits
	// idle drops a user after this long without a Record, as Redis key
	// expiry does for RedisStore.
	idle      time.Duration
	lastSweep time.Time
}

// userWindow is one user's history. txs is ordered by At.
type userWindow struct {
	txs      []domain.Transaction
	hours    [24]int
	geos     []string
	lastSeen time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemoryIdleExpiry sets how long an inactive user is kept.
func WithMemoryIdleExpiry(d time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if d > 0 {
			s.idle = d
		}
	}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(limits Limits, opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		users:  make(map[string]*userWindow),
		limits: limits,
		idle:   DefaultIdleExpiry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Record appends an executed payment.
func (s *InMemoryStore) Record(_ context.Context, userID string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(tx.At)
	w := s.getOrCreate(userID)
	if tx.At.After(w.lastSeen) {
		w.lastSeen = tx.At
	}
	i, _ := slices.BinarySearchFunc(w.txs, tx.At, func(e domain.Transaction, t time.Time) int {
		return e.At.Compare(t)
	})
	w.txs = slices.Insert(w.txs, i, tx)
	w.hours[tx.At.UTC().Hour()]++
	if tx.Geolocation != "" {
		w.geos = pushGeo(w.geos, tx.Geolocation, s.limits.MaxGeos)
	}
	w.cleanup(tx.At, s.limits)
	return nil
}

// History returns a copy of the user's history as of now.
func (s *InMemoryStore) History(_ context.Context, userID string, now time.Time) (domain.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.users[userID]
	if w == nil {
		return domain.History{}, nil
	}
	if s.expired(w, now) {
		delete(s.users, userID)
		return domain.History{}, nil
	}
	w.cleanup(now, s.limits)

	h := domain.History{HourHistogram: w.hours}
	for _, tx := range w.txs {
		if !tx.At.After(now) {
			h.Recent = append(h.Recent, tx)
		}
	}
	h.RecentGeos = slices.Clone(w.geos)
	return h, nil
}

// cleanup drops entries outside the window and trims to MaxEntries.
func (w *userWindow) cleanup(now time.Time, limits Limits) {
	cutoff := now.Add(-limits.Window)
	i := 0
	for ; i < len(w.txs); i++ {
		if w.txs[i].At.After(cutoff) {
			break
		}
	}
	w.txs = w.txs[i:]
	if limits.MaxEntries > 0 && len(w.txs) > limits.MaxEntries {
		w.txs = w.txs[len(w.txs)-limits.MaxEntries:]
	}
}

func (s *InMemoryStore) expired(w *userWindow, now time.Time) bool {
	return now.Sub(w.lastSeen) >= s.idle
}

// sweep drops idle users at most once per sliding window. Must be called
// while holding s.mu.
func (s *InMemoryStore) sweep(now time.Time) {
	every := s.limits.Window
	if every <= 0 || every > s.idle {
		every = s.idle
	}
	if now.Sub(s.lastSweep) < every {
		return
	}
	s.lastSweep = now
	for id, w := range s.users {
		if s.expired(w, now) {
			delete(s.users, id)
		}
	}
}

// size reports how many users are held.
func (s *InMemoryStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// getOrCreate must be called while holding s.mu.
func (s *InMemoryStore) getOrCreate(userID string) *userWindow {
	if w := s.users[userID]; w != nil {
		return w
	}
	w := &userWindow{}
	s.users[userID] = w
	return w
}

// pushGeo moves geo to the front, keeping at most limit distinct entries.
func pushGeo(geos []string, geo string, limit int) []string {
	geos = slices.DeleteFunc(geos, func(g string) bool { return g == geo })
	geos = slices.Insert(geos, 0, geo)
	if limit > 0 && len(geos) > limit {
		geos = geos[:limit]
	}
	return geos
}
