// Package ledger is the append-only, hash-chained audit record. Every
// decision, terminal transition and verification failure is appended here
// before control returns to a caller; a failed append fails the operation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"payguard/internal/ledger/metrics"
	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/platform/sentinel"
)

const (
	defaultMaxAttempts = 5
	defaultPageSize    = 256
)

// Publisher streams persisted entries. Failures are logged and counted only.
type Publisher interface {
	Publish(ctx context.Context, e Entry) error
}

type Service struct {
	// mu makes this process a single writer; the store arbitrates between
	// processes.
	mu          sync.Mutex
	store       Store
	publisher   Publisher
	clock       func() time.Time
	maxAttempts int
	pageSize    int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMaxAttempts bounds Record's retry loop.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	s := &Service{
		store:       store,
		clock:       time.Now,
		maxAttempts: defaultMaxAttempts,
		pageSize:    defaultPageSize,
		tracer:      otel.Tracer("payguard/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tail returns the last sequence and its hash, or 0 and GenesisHash.
func (s *Service) Tail(ctx context.Context) (uint64, string, error) {
	tail, err := s.store.Tail(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, GenesisHash, nil
	}
	if err != nil {
		return 0, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger tail")
	}
	return tail.Sequence, tail.EntryHash, nil
}

// Append chains d after prevHash. A prevHash that is not the current tail is a
// chain integrity error; the caller must re-read the tail.
func (s *Service) Append(ctx context.Context, d Draft, prevHash string) (uint64, error) {
	e, err := s.append(ctx, d, prevHash)
	if err != nil {
		return 0, err
	}
	return e.Sequence, nil
}

// Record appends d against the current tail, retrying when another writer
// moves the tail first.
func (s *Service) Record(ctx context.Context, d Draft) (Entry, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		_, tailHash, err := s.Tail(ctx)
		if err != nil {
			return Entry{}, err
		}
		e, err := s.append(ctx, d, tailHash)
		if err == nil {
			return e, nil
		}
		if !IsChainIntegrity(err) {
			return Entry{}, err
		}
		lastErr = err
		s.metrics.IncIntegrityRetries()
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: ledger append retries exhausted",
			"intent_id", d.IntentID,
			"event", string(d.Event),
			"attempts", s.maxAttempts,
		)
	}
	return Entry{}, lastErr
}

func (s *Service) append(ctx context.Context, d Draft, prevHash string) (Entry, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger.Append", trace.WithAttributes(
		attribute.String("intent_id", d.IntentID),
		attribute.String("event", string(d.Event)),
	))
	defer span.End()

	if d.Event == "" || d.IntentID == "" {
		return Entry{}, dErrors.New(dErrors.CodeInvalidInput, "ledger entry requires event and intent id")
	}

	e, err := s.persist(ctx, d, prevHash)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if !IsChainIntegrity(err) {
			s.metrics.IncAppendFailures()
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "CRITICAL: ledger append failed",
					"intent_id", d.IntentID,
					"event", string(d.Event),
					"error", err,
				)
			}
		}
		return Entry{}, err
	}
	span.SetAttributes(attribute.Int64("sequence", int64(e.Sequence)))
	s.metrics.ObserveAppendLatency(time.Since(start))
	s.metrics.IncAppended(string(e.Event))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.metrics.IncPublishFailures()
			if s.logger != nil {
				s.logger.WarnContext(ctx, "ledger entry not published",
					"sequence", e.Sequence,
					"error", err,
				)
			}
		}
	}
	return e, nil
}

func (s *Service) persist(ctx context.Context, d Draft, prevHash string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tailSeq, tailHash, err := s.Tail(ctx)
	if err != nil {
		return Entry{}, err
	}
	if prevHash != tailHash {
		return Entry{}, chainIntegrity(tailHash, prevHash)
	}

	if d.Timestamp.IsZero() {
		d.Timestamp = s.clock()
	}
	// Postgres keeps microseconds; truncating keeps hashes reproducible.
	d.Timestamp = d.Timestamp.UTC().Truncate(time.Microsecond)
	d.TriggeredRules = nonNil(d.TriggeredRules)

	e := Entry{Sequence: tailSeq + 1, Draft: d, PrevHash: prevHash}
	e.EntryHash, err = e.ComputeHash()
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash ledger entry")
	}

	if err := s.store.Insert(ctx, e); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Entry{}, chainIntegrity("(moved by another writer)", prevHash)
		}
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist ledger entry")
	}
	return e, nil
}

func chainIntegrity(expected, got string) error {
	return dErrors.Wrap(&ChainIntegrityError{Expected: expected, Got: got},
		dErrors.CodeChainIntegrity, "ledger tail moved; recompute against the new tail")
}

// VerifyChain recomputes every hash from genesis and checks linkage. The
// report names the first broken sequence.
func (s *Service) VerifyChain(ctx context.Context) (ChainReport, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.VerifyChain")
	defer span.End()

	tailSeq, _, err := s.Tail(ctx)
	if err != nil {
		return ChainReport{}, err
	}

	report, err := Verify(s.scan(ctx, Filter{}, tailSeq))
	if err != nil {
		return ChainReport{}, err
	}
	if report.Valid && report.Checked != tailSeq {
		report.Valid = false
		report.BrokenAt = report.Checked + 1
		report.Reason = "missing entry"
	}
	span.SetAttributes(attribute.Bool("valid", report.Valid), attribute.Int64("checked", int64(report.Checked)))
	if !report.Valid && s.logger != nil {
		s.logger.ErrorContext(ctx, "ledger chain verification failed",
			"broken_at", report.BrokenAt,
			"reason", report.Reason,
		)
	}
	return report, nil
}

// Verify checks a sequence of entries starting at genesis, such as an
// offline export.
func Verify(entries iter.Seq2[Entry, error]) (ChainReport, error) {
	report := ChainReport{Valid: true}
	prev := GenesisHash
	want := uint64(1)
	for e, err := range entries {
		if err != nil {
			return ChainReport{}, err
		}
		report.Checked++
		if reason := checkEntry(e, want, prev); reason != "" {
			report.Valid = false
			report.BrokenAt = min(e.Sequence, want)
			report.Reason = reason
			return report, nil
		}
		prev = e.EntryHash
		want++
	}
	return report, nil
}

func checkEntry(e Entry, want uint64, prev string) string {
	if e.Sequence != want {
		return fmt.Sprintf("sequence gap: expected %d, found %d", want, e.Sequence)
	}
	if e.PrevHash != prev {
		return "prev hash does not link to previous entry"
	}
	hash, err := e.ComputeHash()
	if err != nil {
		return "entry cannot be hashed: " + err.Error()
	}
	if hash != e.EntryHash {
		return "entry hash mismatch"
	}
	return ""
}

// Read returns matching entries in ascending sequence order, fetched lazily
// page by page. The sequence is bounded by the tail at the time Read is
// called and can be ranged over more than once.
func (s *Service) Read(ctx context.Context, f Filter) iter.Seq2[Entry, error] {
	tailSeq, _, err := s.Tail(ctx)
	if err != nil {
		return func(yield func(Entry, error) bool) {
			yield(Entry{}, err)
		}
	}
	return s.scan(ctx, f, tailSeq)
}

func (s *Service) scan(ctx context.Context, f Filter, upTo uint64) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		after := uint64(0)
		if f.FromSequence > 0 {
			after = f.FromSequence - 1
		}
		yielded := 0
		for after < upTo {
			size := s.pageSize
			if f.Limit > 0 {
				size = min(size, f.Limit-yielded)
			}
			page, err := s.store.Page(ctx, after, upTo, f, size)
			if err != nil {
				yield(Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger"))
				return
			}
			if len(page) == 0 {
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				yielded++
				if f.Limit > 0 && yielded >= f.Limit {
					return
				}
			}
			after = page[len(page)-1].Sequence
		}
	}
}
