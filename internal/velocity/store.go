// Package velocity keeps each user's recent executed payments: a bounded,
// time-windowed history plus an hour-of-day histogram and recent locations.
// The router records here only after a payment executes and reads it back
// when building prior state.
package velocity

import (
	"context"
	"time"

	"payguard/internal/domain"
)

// Store is implemented by the in-memory and Redis backends.
type Store interface {
	Record(ctx context.Context, userID string, tx domain.Transaction) error
	History(ctx context.Context, userID string, now time.Time) (domain.History, error)
}

// Limits bound what a store retains per user.
type Limits struct {
	// Window is how far back Recent reaches.
	Window time.Duration
	// MaxEntries caps Recent regardless of Window.
	MaxEntries int
	// MaxGeos caps the distinct recent locations kept.
	MaxGeos int
}

// DefaultLimits keeps a day of history, enough for every layer-2 window.
func DefaultLimits() Limits {
	return Limits{
		Window:     24 * time.Hour,
		MaxEntries: 500,
		MaxGeos:    10,
	}
}
