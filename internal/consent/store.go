package consent

import (
	"context"
	"time"
)

// Store keeps issued token records. Lookups return sentinel.ErrNotFound when
// nothing matches.
type Store interface {
	Save(ctx context.Context, token Token) error
	FindByID(ctx context.Context, tokenID string) (*Token, error)
	// FindByIntent returns the most recently issued token for the intent.
	FindByIntent(ctx context.Context, intentID string) (*Token, error)
	ListBySession(ctx context.Context, sessionID string) ([]Token, error)
}

// SpentStore is the set of tokens that can no longer be used. Claim must be
// atomic: exactly one caller wins per token id.
type SpentStore interface {
	// Claim records m for tokenID. If the token was already claimed it returns
	// the existing mark together with sentinel.ErrAlreadyUsed.
	Claim(ctx context.Context, tokenID string, m Mark, ttl time.Duration) (*Mark, error)
	// Get returns the mark for tokenID or sentinel.ErrNotFound.
	Get(ctx context.Context, tokenID string) (*Mark, error)
}
