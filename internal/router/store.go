package router

import (
	"context"
	"time"
)

// Store holds intent records and the set of untrusted sessions.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	// Find returns sentinel.ErrNotFound for an unknown intent.
	Find(ctx context.Context, intentID string) (*Record, error)
	MarkSessionUntrusted(ctx context.Context, sessionID string, at time.Time) error
	SessionUntrusted(ctx context.Context, sessionID string) (bool, error)
}
