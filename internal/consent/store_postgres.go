package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payguard/pkg/platform/sentinel"
)

// SpentSchema creates the table used by PostgresSpentStore.
const SpentSchema = `
CREATE TABLE IF NOT EXISTS consent_spent (
	token_id   TEXT PRIMARY KEY,
	reason     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	marked_at  TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresSpentStore keeps the spent set in Postgres. The primary key makes
// the first insert the only winner.
type PostgresSpentStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

type PostgresSpentOption func(*PostgresSpentStore)

func WithSpentClock(clock func() time.Time) PostgresSpentOption {
	return func(s *PostgresSpentStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewPostgresSpentStore(pool *pgxpool.Pool, opts ...PostgresSpentOption) *PostgresSpentStore {
	s := &PostgresSpentStore{pool: pool, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate creates the spent table if it is missing.
func (s *PostgresSpentStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, SpentSchema); err != nil {
		return fmt.Errorf("migrate consent_spent: %w", err)
	}
	return nil
}

func (s *PostgresSpentStore) Claim(ctx context.Context, tokenID string, m Mark, ttl time.Duration) (*Mark, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	now := s.clock()
	// A stale row for an expired mark is replaced; a live one is kept.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO consent_spent (token_id, reason, detail, marked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			detail = EXCLUDED.detail,
			marked_at = EXCLUDED.marked_at,
			expires_at = EXCLUDED.expires_at
		WHERE consent_spent.expires_at <= $6`,
		tokenID, string(m.Reason), m.Detail, m.At, now.Add(ttl), now)
	if err != nil {
		return nil, fmt.Errorf("claim token %s: %w", tokenID, err)
	}
	if tag.RowsAffected() == 1 {
		return &m, nil
	}
	existing, err := s.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Mark{Reason: MarkSpent}, sentinel.ErrAlreadyUsed
		}
		return nil, err
	}
	return existing, sentinel.ErrAlreadyUsed
}

func (s *PostgresSpentStore) Get(ctx context.Context, tokenID string) (*Mark, error) {
	var (
		m      Mark
		reason string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT reason, detail, marked_at FROM consent_spent WHERE token_id = $1 AND expires_at > $2`,
		tokenID, s.clock()).Scan(&reason, &m.Detail, &m.At)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read spent mark %s: %w", tokenID, err)
	}
	m.Reason = MarkReason(reason)
	return &m, nil
}
