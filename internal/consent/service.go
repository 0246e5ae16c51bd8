// Package consent issues and verifies single-use authorization tokens that
// bind an approved intent's exact scope to the execution boundary.
//
// This package does not write to the audit ledger. router.Service.Execute is
// the only execution boundary: it is the one caller of Verify and
// VerifyPayload, and it ledgers every failure they return along with its
// FailureKind. Calling Verify directly consumes the token without an audit
// record.
package consent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"payguard/internal/consent/metrics"
	"payguard/internal/domain"
	"payguard/internal/policy"
	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/platform/sentinel"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 5 * time.Minute

// Service is the consent manager. It is the only component that mints or
// consumes tokens.
type Service struct {
	signer  *Signer
	store   Store
	spent   SpentStore
	ttl     time.Duration
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	// issueMu makes the live-token check and the save one step.
	issueMu sync.Mutex
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

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func NewService(signer *Signer, store Store, spent SpentStore, opts ...Option) (*Service, error) {
	switch {
	case signer == nil:
		return nil, errors.New("signer is required")
	case store == nil:
		return nil, errors.New("token store is required")
	case spent == nil:
		return nil, errors.New("spent store is required")
	}
	s := &Service{
		signer: signer,
		store:  store,
		spent:  spent,
		ttl:    DefaultTTL,
		clock:  time.Now,
		tracer: otel.Tracer("payguard/consent"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints a token for an approved, already-ledgered payment intent.
func (s *Service) Issue(ctx context.Context, a Approval) (*Token, error) {
	ctx, span := s.tracer.Start(ctx, "consent.Issue",
		trace.WithAttributes(attribute.String("intent_id", a.Intent.IntentID)))
	defer span.End()

	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	if err := s.checkIssuable(ctx, a); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	scope := a.Intent.Scope()
	hash, err := scope.Hash()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash intent scope")
	}

	now := s.clock().UTC().Truncate(time.Second)
	tok := Token{
		TokenID:        uuid.NewString(),
		IntentID:       a.Intent.IntentID,
		IntentHash:     hash,
		Audience:       scope.MerchantReference,
		UserID:         a.UserID,
		SessionID:      a.SessionID,
		Scope:          scope,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.ttl),
		SingleUse:      true,
		LedgerSequence: a.LedgerSequence,
		PolicyVersion:  a.PolicyVersion,
	}
	tok.Signed, err = s.signer.sign(claims{
		IntentID:   tok.IntentID,
		IntentHash: tok.IntentHash,
		SessionID:  tok.SessionID,
		SingleUse:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   tok.UserID,
			Audience:  jwt.ClaimStrings{tok.Audience},
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ID:        tok.TokenID,
		},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign consent token")
	}
	if err := s.store.Save(ctx, tok); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent token")
	}

	s.metrics.IncrementIssued()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "consent token issued",
			"intent_id", tok.IntentID,
			"token_id", tok.TokenID,
			"audience", tok.Audience,
			"basis", a.Basis,
			"ledger_sequence", a.LedgerSequence,
		)
	}
	return &tok, nil
}

func (s *Service) checkIssuable(ctx context.Context, a Approval) error {
	switch {
	case a.Decision != policy.DecisionApprove:
		return dErrors.New(dErrors.CodeScopeError, "consent requires an APPROVE decision")
	case a.LedgerSequence == 0:
		return dErrors.New(dErrors.CodeScopeError, "consent requires a ledgered approval")
	case a.Intent.Type != domain.IntentPayment:
		return dErrors.New(dErrors.CodeScopeError, "consent is only issued for payment intents")
	case len(a.Intent.Missing()) > 0:
		return dErrors.New(dErrors.CodeScopeError, "consent requires a complete intent")
	}
	live, err := s.liveToken(ctx, a.Intent.IntentID)
	if err != nil {
		return err
	}
	if live != nil {
		return dErrors.New(dErrors.CodeScopeError, "a live consent token already exists for this intent")
	}
	return nil
}

// liveToken returns the intent's latest token if it is unexpired and unmarked.
func (s *Service) liveToken(ctx context.Context, intentID string) (*Token, error) {
	tok, err := s.store.FindByIntent(ctx, intentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up consent token")
	}
	ok, err := s.IsLive(ctx, tok)
	if err != nil || !ok {
		return nil, err
	}
	return tok, nil
}

// IsLive reports whether tok is unexpired and neither spent nor revoked.
func (s *Service) IsLive(ctx context.Context, tok *Token) (bool, error) {
	if tok == nil || tok.Expired(s.clock()) {
		return false, nil
	}
	_, err := s.spent.Get(ctx, tok.TokenID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read spent set")
	}
	return false, nil
}

// Verify checks signed against the presented intent and consumes it. Callers
// other than the router's execute path must ledger failures themselves.
func (s *Service) Verify(ctx context.Context, signed string, presented domain.Intent) (*Token, error) {
	scope := presented.Scope()
	return s.verify(ctx, signed, &scope)
}

// VerifyPayload is Verify for a raw scope payload. A payload that does not
// parse strictly as a scope is a hash mismatch.
func (s *Service) VerifyPayload(ctx context.Context, signed string, raw []byte) (*Token, error) {
	scope, err := domain.ParseScope(raw)
	if err != nil {
		return s.verify(ctx, signed, nil)
	}
	return s.verify(ctx, signed, &scope)
}

func (s *Service) verify(ctx context.Context, signed string, presented *domain.Scope) (*Token, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "consent.Verify")
	defer func() {
		span.End()
		s.metrics.ObserveVerifyLatency(time.Since(start))
	}()

	tok, err := s.check(ctx, signed, presented)
	if err != nil {
		kind, ok := KindOf(err)
		if !ok {
			kind = "internal"
		}
		span.SetStatus(codes.Error, string(kind))
		s.metrics.IncrementVerify(string(kind))
		if s.logger != nil {
			s.logger.WarnContext(ctx, "consent verification failed", "kind", string(kind), "error", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("intent_id", tok.IntentID))
	s.metrics.IncrementVerify("ok")
	return tok, nil
}

func (s *Service) check(ctx context.Context, signed string, presented *domain.Scope) (*Token, error) {
	c, err := s.signer.parse(signed)
	if err != nil {
		return nil, verifyFailure(FailureInvalidToken, "", "")
	}
	tokenID, intentID := c.ID, c.IntentID

	now := s.clock()
	if !now.Before(c.ExpiresAt.Time) {
		return nil, verifyFailure(FailureExpired, tokenID, intentID)
	}

	mark, err := s.spent.Get(ctx, tokenID)
	switch {
	case err == nil:
		return nil, markFailure(mark, tokenID, intentID)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read spent set")
	}

	if presented == nil {
		return nil, verifyFailure(FailureHashMismatch, tokenID, intentID)
	}
	if len(c.Audience) != 1 || c.Audience[0] != presented.MerchantReference {
		return nil, verifyFailure(FailureAudienceMismatch, tokenID, intentID)
	}
	hash, err := presented.Hash()
	if err != nil || hash != c.IntentHash {
		return nil, verifyFailure(FailureHashMismatch, tokenID, intentID)
	}

	existing, err := s.spent.Claim(ctx, tokenID, Mark{Reason: MarkSpent, At: now}, c.ExpiresAt.Sub(now))
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, markFailure(existing, tokenID, intentID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark token spent")
	}

	tok, err := s.store.FindByID(ctx, tokenID)
	if err != nil {
		// Signature proves issuance; rebuild from claims when the record
		// lives in another instance's store.
		tok = tokenFromClaims(c, signed)
	}
	return tok, nil
}

func tokenFromClaims(c *claims, signed string) *Token {
	tok := &Token{
		TokenID:    c.ID,
		IntentID:   c.IntentID,
		IntentHash: c.IntentHash,
		UserID:     c.Subject,
		SessionID:  c.SessionID,
		SingleUse:  c.SingleUse,
		ExpiresAt:  c.ExpiresAt.Time,
		Signed:     signed,
	}
	if len(c.Audience) > 0 {
		tok.Audience = c.Audience[0]
	}
	if c.IssuedAt != nil {
		tok.IssuedAt = c.IssuedAt.Time
	}
	return tok
}

// Revoke marks a token unusable. Revoking a spent or revoked token is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenID, reason string) error {
	tok, err := s.store.FindByID(ctx, tokenID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "consent token not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up consent token")
	}
	return s.revoke(ctx, tok, reason)
}

// RevokeSession revokes every outstanding token issued to sessionID and
// returns how many were revoked.
func (s *Service) RevokeSession(ctx context.Context, sessionID, reason string) (int, error) {
	tokens, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list session tokens")
	}
	revoked := 0
	for i := range tokens {
		live, err := s.IsLive(ctx, &tokens[i])
		if err != nil {
			return revoked, err
		}
		if !live {
			continue
		}
		if err := s.revoke(ctx, &tokens[i], reason); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

func (s *Service) revoke(ctx context.Context, tok *Token, reason string) error {
	now := s.clock()
	if tok.Expired(now) {
		return nil
	}
	_, err := s.spent.Claim(ctx, tok.TokenID, Mark{Reason: MarkRevoked, At: now, Detail: reason}, tok.ExpiresAt.Sub(now))
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke consent token")
	}
	s.metrics.IncrementRevoked(reason)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "consent token revoked",
			"token_id", tok.TokenID,
			"intent_id", tok.IntentID,
			"reason", reason,
		)
	}
	return nil
}

// FindByIntent returns the latest token issued for intentID.
func (s *Service) FindByIntent(ctx context.Context, intentID string) (*Token, error) {
	tok, err := s.store.FindByIntent(ctx, intentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no consent token for intent")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up consent token")
	}
	return tok, nil
}

// Find returns a token by id.
func (s *Service) Find(ctx context.Context, tokenID string) (*Token, error) {
	tok, err := s.store.FindByID(ctx, tokenID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent token not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up consent token")
	}
	return tok, nil
}
