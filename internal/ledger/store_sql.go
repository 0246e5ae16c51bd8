package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"payguard/pkg/platform/sentinel"
)

// schema is shared by SQLite and Postgres. Timestamps are stored as
// RFC 3339 text so the hashed representation round-trips exactly.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	sequence        BIGINT PRIMARY KEY,
	event           TEXT NOT NULL,
	intent_id       TEXT NOT NULL,
	user_id         TEXT NOT NULL DEFAULT '',
	session_id      TEXT NOT NULL DEFAULT '',
	decision        TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	policy_version  TEXT NOT NULL DEFAULT '',
	triggered_rules TEXT NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	detail          TEXT NOT NULL DEFAULT '',
	recorded_at     TEXT NOT NULL,
	prev_hash       TEXT NOT NULL UNIQUE,
	entry_hash      TEXT NOT NULL UNIQUE
)`

const entryColumns = `sequence, event, intent_id, user_id, session_id, decision, state, policy_version,
	triggered_rules, score, detail, recorded_at, prev_hash, entry_hash`

// SQLStore keeps the chain in a relational table. The primary key on
// sequence and the unique prev_hash make a racing second writer fail.
type SQLStore struct {
	db         *sql.DB
	dialect    string
	isConflict func(error) bool
}

// Migrate creates the ledger table if it is missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger_entries (%s): %w", s.dialect, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS ledger_entries_intent_idx ON ledger_entries (intent_id)`); err != nil {
		return fmt.Errorf("index ledger_entries (%s): %w", s.dialect, err)
	}
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Tail(ctx context.Context) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries ORDER BY sequence DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}
	return e, nil
}

func (s *SQLStore) Insert(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tailHash string
	err = tx.QueryRowContext(ctx,
		`SELECT entry_hash FROM ledger_entries ORDER BY sequence DESC LIMIT 1`).Scan(&tailHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		tailHash = GenesisHash
	case err != nil:
		return fmt.Errorf("read ledger tail: %w", err)
	}
	if tailHash != e.PrevHash {
		return sentinel.ErrConflict
	}

	rules, err := json.Marshal(nonNil(e.TriggeredRules))
	if err != nil {
		return fmt.Errorf("encode triggered rules: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		int64(e.Sequence), string(e.Event), e.IntentID, e.UserID, e.SessionID, e.Decision, e.State,
		e.PolicyVersion, string(rules), e.Score, e.Detail, e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.PrevHash, e.EntryHash,
	)
	if err != nil {
		if s.isConflict(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ledger entry %d: %w", e.Sequence, err)
	}
	if err := tx.Commit(); err != nil {
		if s.isConflict(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("commit ledger entry %d: %w", e.Sequence, err)
	}
	return nil
}

func (s *SQLStore) Page(ctx context.Context, after, upTo uint64, f Filter, limit int) ([]Entry, error) {
	where := []string{"sequence > ?", "sequence <= ?"}
	args := []any{int64(after), int64(upTo)}
	if f.IntentID != "" {
		where = append(where, "intent_id = ?")
		args = append(args, f.IntentID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, f.Decision)
	}
	if f.Event != "" {
		where = append(where, "event = ?")
		args = append(args, string(f.Event))
	}
	args = append(args, limit)

	query := s.rebind(`SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY sequence ASC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("page ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("page ledger: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e        Entry
		seq      int64
		event    string
		rules    string
		recorded string
	)
	if err := row.Scan(&seq, &event, &e.IntentID, &e.UserID, &e.SessionID, &e.Decision, &e.State,
		&e.PolicyVersion, &rules, &e.Score, &e.Detail, &recorded, &e.PrevHash, &e.EntryHash); err != nil {
		return nil, err
	}
	e.Sequence = uint64(seq)
	e.Event = Event(event)
	if err := json.Unmarshal([]byte(rules), &e.TriggeredRules); err != nil {
		return nil, fmt.Errorf("decode triggered rules of %d: %w", seq, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, recorded)
	if err != nil {
		return nil, fmt.Errorf("decode timestamp of %d: %w", seq, err)
	}
	e.Timestamp = ts
	return &e, nil
}

func nonNil(rules []string) []string {
	if rules == nil {
		return []string{}
	}
	return rules
}
