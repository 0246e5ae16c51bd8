package ledger

import "context"

// Store persists the chain. Implementations never update or delete entries.
type Store interface {
	// Tail returns the last entry, or sentinel.ErrNotFound for an empty ledger.
	Tail(ctx context.Context) (*Entry, error)
	// Insert persists e only if e.PrevHash still equals the tail hash (or the
	// genesis hash on an empty ledger). It returns sentinel.ErrConflict when
	// another writer got there first.
	Insert(ctx context.Context, e Entry) error
	// Page returns up to limit entries with after < sequence <= upTo matching
	// f, in ascending order.
	Page(ctx context.Context, after, upTo uint64, f Filter, limit int) ([]Entry, error)
}
