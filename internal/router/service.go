// Package router drives each intent through the decision state machine. It
// never decides risk itself: it dispatches on the evaluator's decision, is the
// sole caller of consent issuance, and ledgers every decision, terminal
// transition and verification failure before returning.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"payguard/internal/consent"
	"payguard/internal/domain"
	"payguard/internal/ledger"
	"payguard/internal/policy"
	policymetrics "payguard/internal/policy/metrics"
	"payguard/internal/router/adapters"
	"payguard/internal/router/metrics"
	"payguard/internal/router/ports"
	"payguard/internal/velocity"
	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/platform/sentinel"
)

// DefaultCooldown is how long a COOLDOWN decision pauses an intent.
const DefaultCooldown = 5 * time.Minute

type Service struct {
	evaluator     *policy.Evaluator
	consent       ports.Consent
	ledger        ports.Ledger
	velocity      velocity.Store
	store         Store
	adjudicator   ports.Adjudicator
	stepUp        ports.StepUpVerifier
	executor      ports.Executor
	cooldown      time.Duration
	clock         func() time.Time
	locks         *keyedMutex
	intentLocks   *keyedMutex
	logger        *slog.Logger
	metrics       *metrics.Metrics
	policyMetrics *policymetrics.Metrics
	tracer        trace.Tracer
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

// WithPolicyMetrics records evaluator outcomes. The evaluator is pure, so the
// router observes it.
func WithPolicyMetrics(m *policymetrics.Metrics) Option {
	return func(s *Service) {
		s.policyMetrics = m
	}
}

func WithStore(store Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

func WithAdjudicator(a ports.Adjudicator) Option {
	return func(s *Service) {
		s.adjudicator = a
	}
}

func WithStepUpVerifier(v ports.StepUpVerifier) Option {
	return func(s *Service) {
		s.stepUp = v
	}
}

func WithExecutor(e ports.Executor) Option {
	return func(s *Service) {
		s.executor = e
	}
}

func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
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

func New(evaluator *policy.Evaluator, consentMgr ports.Consent, auditLedger ports.Ledger, history velocity.Store, opts ...Option) (*Service, error) {
	switch {
	case evaluator == nil:
		return nil, errors.New("evaluator is required")
	case consentMgr == nil:
		return nil, errors.New("consent manager is required")
	case auditLedger == nil:
		return nil, errors.New("ledger is required")
	case history == nil:
		return nil, errors.New("velocity store is required")
	}
	s := &Service{
		evaluator:   evaluator,
		consent:     consentMgr,
		ledger:      auditLedger,
		velocity:    history,
		store:       NewInMemoryStore(),
		cooldown:    DefaultCooldown,
		clock:       time.Now,
		locks:       newKeyedMutex(),
		intentLocks: newKeyedMutex(),
		tracer:      otel.Tracer("payguard/router"),
	}
	for _, opt := range opts {
		opt(s)
	}

	portLogger := s.logger
	if portLogger == nil {
		portLogger = slog.Default()
	}
	if s.adjudicator == nil {
		s.adjudicator = adapters.NewLoggingAdjudicator(portLogger)
	}
	if s.stepUp == nil {
		s.stepUp = adapters.NewLoggingStepUp(portLogger)
	}
	if s.executor == nil {
		s.executor = adapters.NewLoggingExecutor(portLogger)
	}
	return s, nil
}

// Submit evaluates an intent and routes the decision. Submissions are
// serialized per user and per intent id; an identical resubmission whose outcome is still live
// is answered from the stored record without a new ledger entry.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "router.Submit", trace.WithAttributes(
		attribute.String("intent_id", req.Intent.IntentID),
		attribute.String("intent_type", string(req.Intent.Type)),
	))
	defer func() {
		span.End()
		s.metrics.ObserveSubmitLatency(time.Since(start))
	}()

	switch {
	case strings.TrimSpace(req.UserID) == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	case strings.TrimSpace(req.SessionID) == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "session id is required")
	case strings.TrimSpace(req.Intent.IntentID) == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "intent id is required")
	}

	unlock := s.lock(req.UserID, req.Intent.IntentID)
	defer unlock()

	out, err := s.submit(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("decision", string(out.Decision)),
		attribute.String("state", string(out.State)),
		attribute.Bool("replayed", out.Replayed),
	)
	return out, nil
}

// lock serializes work on a user and on an intent id. The user lock is always
// taken first; two users racing on one intent id must not both see it as new.
func (s *Service) lock(userID, intentID string) func() {
	unlockUser := s.locks.Lock(userID)
	unlockIntent := s.intentLocks.Lock(intentID)
	return func() {
		unlockIntent()
		unlockUser()
	}
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	hash, err := req.Intent.Scope().Hash()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash intent payload")
	}

	rec, err := s.find(ctx, req.Intent.IntentID)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.UserID != req.UserID {
		return nil, dErrors.New(dErrors.CodeConflict, "intent id belongs to another user")
	}
	if rec != nil && rec.PayloadHash == hash {
		out, replayed, err := s.replay(ctx, rec)
		if err != nil || replayed {
			return out, err
		}
	}

	prior, err := s.prior(ctx, req, rec)
	if err != nil {
		return nil, err
	}
	res := s.evaluate(ctx, req, prior)

	if rec != nil && rec.PayloadHash != hash {
		return s.reject(ctx, req, res)
	}
	return s.route(ctx, req, rec, hash, res)
}

// replay answers an identical resubmission when the stored outcome is still
// live. Lapsed consent and expired cooldowns fall through to re-evaluation.
func (s *Service) replay(ctx context.Context, rec *Record) (*Outcome, bool, error) {
	out := outcomeOf(rec)
	switch rec.State {
	case StatePaused:
		if !s.clock().Before(rec.PausedUntil) {
			return nil, false, nil
		}
	case StateConsentRequested:
		tok, live, err := s.outstanding(ctx, rec)
		if err != nil || !live {
			return nil, false, err
		}
		out.Token = tok
	case StateEscalated, StateReauthRequested, StateExecuted, StateTerminated:
	default:
		return nil, false, nil
	}
	out.Replayed = true
	s.metrics.IncReplay()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "identical resubmission answered from record",
			"intent_id", rec.IntentID,
			"state", string(rec.State),
			"ledger_sequence", rec.LedgerSequence,
		)
	}
	return out, true, nil
}

// outstanding returns the record's token and whether it can still be used.
func (s *Service) outstanding(ctx context.Context, rec *Record) (*consent.Token, bool, error) {
	if rec.TokenID == "" {
		return nil, false, nil
	}
	tok, err := s.consent.Find(ctx, rec.TokenID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	live, err := s.consent.IsLive(ctx, tok)
	if err != nil {
		return nil, false, err
	}
	return tok, live, nil
}

// prior summarizes the owned state the evaluator needs.
func (s *Service) prior(ctx context.Context, req SubmitRequest, rec *Record) (domain.PriorState, error) {
	var p domain.PriorState
	if rec != nil {
		p.PayloadHash = rec.PayloadHash
	}

	issued, err := s.consent.FindByIntent(ctx, req.Intent.IntentID)
	switch {
	case err == nil:
		scope := issued.Scope
		p.IssuedScope = &scope
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		return p, err
	}

	if ref := req.Intent.ConsentRef; ref != "" {
		tok, err := s.consent.Find(ctx, ref)
		switch {
		case err == nil:
			scope := tok.Scope
			p.ReferencedScope = &scope
			p.ReferencedIntentID = tok.IntentID
		case !dErrors.HasCode(err, dErrors.CodeNotFound):
			return p, err
		}
	}

	p.SessionUntrusted, err = s.store.SessionUntrusted(ctx, req.SessionID)
	if err != nil {
		return p, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read session state")
	}

	now := req.Snapshot.CapturedAt
	if now.IsZero() {
		now = s.clock()
	}
	p.History, err = s.velocity.History(ctx, req.UserID, now)
	if err != nil {
		return p, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read velocity history")
	}
	return p, nil
}

func (s *Service) evaluate(ctx context.Context, req SubmitRequest, prior domain.PriorState) policy.RiskResult {
	_, span := s.tracer.Start(ctx, "policy.Evaluate")
	defer span.End()

	start := time.Now()
	res := s.evaluator.Evaluate(req.Intent, req.Snapshot, prior)
	s.policyMetrics.ObserveEvaluateLatency(time.Since(start))
	s.policyMetrics.IncrementOutcome(string(res.Decision), string(req.Intent.Type))
	s.policyMetrics.IncrementRules(res.RuleIDs())
	s.policyMetrics.ObserveScore(res.Score)

	span.SetAttributes(
		attribute.String("decision", string(res.Decision)),
		attribute.Float64("score", res.Score),
		attribute.StringSlice("rules", res.RuleIDs()),
	)
	return res
}

// reject ledgers the decision on a payload that conflicts with the recorded
// intent. The stored record is left untouched.
func (s *Service) reject(ctx context.Context, req SubmitRequest, res policy.RiskResult) (*Outcome, error) {
	attempt := &Record{
		IntentID:  req.Intent.IntentID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		State:     target(res.Decision, req.Intent.Type),
		Decision:  res.Decision,
		Result:    res,
	}
	entry, err := s.ledger.Record(ctx, draftFor(ledger.EventDecision, attempt, details(res)))
	if err != nil {
		return nil, s.ledgerFailed(ctx, attempt, err)
	}
	attempt.LedgerSequence = entry.Sequence

	if err := s.applySignals(ctx, attempt); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "intent id resubmitted with a different payload",
			"intent_id", attempt.IntentID,
			"user_id", attempt.UserID,
			"decision", string(res.Decision),
			"rules", res.RuleIDs(),
		)
	}
	return outcomeOf(attempt), nil
}

// route moves a fresh or re-evaluated record through EVALUATED to the state
// the decision maps to, ledgers it, then acts on it.
func (s *Service) route(ctx context.Context, req SubmitRequest, rec *Record, hash string, res policy.RiskResult) (*Outcome, error) {
	now := s.clock()
	if rec == nil {
		rec = &Record{
			IntentID:  req.Intent.IntentID,
			UserID:    req.UserID,
			State:     StateReceived,
			CreatedAt: now,
		}
	} else if err := s.move(rec, StateReceived, now); err != nil {
		return nil, err
	}

	rec.SessionID = req.SessionID
	rec.Intent = req.Intent
	rec.PayloadHash = hash
	rec.Geolocation = req.Snapshot.Geolocation
	rec.Result = res
	rec.Decision = res.Decision
	rec.Basis = BasisEvaluator
	rec.TokenID = ""
	rec.PausedUntil = time.Time{}

	if err := s.move(rec, StateEvaluated, now); err != nil {
		return nil, err
	}
	if err := s.move(rec, target(res.Decision, req.Intent.Type), now); err != nil {
		return nil, err
	}
	if rec.State == StatePaused {
		rec.PausedUntil = req.Snapshot.CapturedAt.Add(s.cooldown)
	}

	entry, err := s.ledger.Record(ctx, draftFor(ledger.EventDecision, rec, details(res)))
	if err != nil {
		return nil, s.ledgerFailed(ctx, rec, err)
	}
	rec.LedgerSequence = entry.Sequence

	if s.logger != nil {
		s.logger.InfoContext(ctx, "intent evaluated",
			"intent_id", rec.IntentID,
			"user_id", rec.UserID,
			"decision", string(res.Decision),
			"state", string(rec.State),
			"score", res.Score,
			"rules", res.RuleIDs(),
			"ledger_sequence", rec.LedgerSequence,
		)
	}

	if err := s.applySignals(ctx, rec); err != nil {
		return nil, err
	}
	return s.dispatchAndSave(ctx, rec)
}

// dispatchAndSave acts on the record's new state and persists it. The record
// is saved even when issuance fails, since its decision is already ledgered.
func (s *Service) dispatchAndSave(ctx context.Context, rec *Record) (*Outcome, error) {
	out, dispatchErr := s.dispatch(ctx, rec)
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	if dispatchErr != nil {
		return nil, dispatchErr
	}
	return out, nil
}

func (s *Service) dispatch(ctx context.Context, rec *Record) (*Outcome, error) {
	switch rec.State {
	case StateConsentRequested:
		tok, err := s.consent.Issue(ctx, consent.Approval{
			Intent:         rec.Intent,
			UserID:         rec.UserID,
			SessionID:      rec.SessionID,
			Decision:       rec.Decision,
			Basis:          rec.Basis,
			LedgerSequence: rec.LedgerSequence,
			PolicyVersion:  rec.Result.PolicyVersion,
		})
		if err != nil {
			return nil, err
		}
		rec.TokenID = tok.TokenID
		out := outcomeOf(rec)
		out.Token = tok
		return out, nil

	case StateExecuted:
		if err := s.executor.Execute(ctx, ports.ExecutionRequest{
			IntentID:       rec.IntentID,
			UserID:         rec.UserID,
			Type:           rec.Intent.Type,
			Scope:          rec.Intent.Scope(),
			LedgerSequence: rec.LedgerSequence,
		}); err != nil {
			s.portFailed(ctx, "executor", rec, err)
		}

	case StateEscalated:
		if err := s.adjudicator.RequestAdjudication(ctx, ports.EscalationRequest{
			IntentID:       rec.IntentID,
			UserID:         rec.UserID,
			SessionID:      rec.SessionID,
			Score:          rec.Result.Score,
			Rules:          rec.Result.RuleIDs(),
			LedgerSequence: rec.LedgerSequence,
		}); err != nil {
			s.portFailed(ctx, "adjudicator", rec, err)
		}

	case StateReauthRequested:
		if err := s.stepUp.RequestStepUp(ctx, ports.StepUpRequest{
			IntentID:  rec.IntentID,
			UserID:    rec.UserID,
			SessionID: rec.SessionID,
			Rules:     rec.Result.RuleIDs(),
		}); err != nil {
			s.portFailed(ctx, "step-up verifier", rec, err)
		}
	}
	return outcomeOf(rec), nil
}

// applySignals marks the session untrusted and, on a kill signal, revokes its
// outstanding tokens and ledgers the kill.
func (s *Service) applySignals(ctx context.Context, rec *Record) error {
	res := rec.Result
	if !res.SessionUntrusted && !res.KillSession {
		return nil
	}
	if err := s.store.MarkSessionUntrusted(ctx, rec.SessionID, s.clock()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark session untrusted")
	}
	if !res.KillSession {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "session marked untrusted",
				"session_id", rec.SessionID,
				"intent_id", rec.IntentID,
				"rules", res.RuleIDs(),
			)
		}
		return nil
	}

	revoked, err := s.consent.RevokeSession(ctx, rec.SessionID, "session killed: "+strings.Join(res.RuleIDs(), ","))
	if err != nil {
		return err
	}
	kill := &Record{
		IntentID:  rec.IntentID,
		UserID:    rec.UserID,
		SessionID: rec.SessionID,
		State:     StateTerminated,
		Decision:  policy.DecisionDeny,
		Result:    res,
	}
	if _, err := s.ledger.Record(ctx, draftFor(ledger.EventSessionKilled, kill,
		"revoked "+strconv.Itoa(revoked)+" outstanding tokens")); err != nil {
		return s.ledgerFailed(ctx, kill, err)
	}
	s.metrics.IncSessionKilled()
	if s.logger != nil {
		s.logger.WarnContext(ctx, "session killed",
			"session_id", rec.SessionID,
			"intent_id", rec.IntentID,
			"tokens_revoked", revoked,
		)
	}
	return nil
}

// Get returns the stored record for intentID.
func (s *Service) Get(ctx context.Context, intentID string) (*Record, error) {
	rec, err := s.find(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "intent not found")
	}
	return rec, nil
}

func (s *Service) find(ctx context.Context, intentID string) (*Record, error) {
	rec, err := s.store.Find(ctx, intentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load intent record")
	}
	return rec, nil
}

func (s *Service) save(ctx context.Context, rec *Record) error {
	if err := s.store.Save(ctx, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save intent record")
	}
	return nil
}

func (s *Service) move(rec *Record, to State, at time.Time) error {
	from := rec.State
	if err := rec.transition(to, at); err != nil {
		return err
	}
	s.metrics.IncTransition(string(from), string(to))
	return nil
}

// ledgerFailed reports an append failure. The caller fails the operation.
func (s *Service) ledgerFailed(ctx context.Context, rec *Record, err error) error {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: decision not ledgered, failing closed",
			"intent_id", rec.IntentID,
			"decision", string(rec.Decision),
			"state", string(rec.State),
			"error", err,
		)
	}
	return err
}

func (s *Service) portFailed(ctx context.Context, port string, rec *Record, err error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, port+" hand-off failed",
			"intent_id", rec.IntentID,
			"state", string(rec.State),
			"error", err,
		)
	}
}

func draftFor(ev ledger.Event, rec *Record, detail string) ledger.Draft {
	return ledger.Draft{
		Event:          ev,
		IntentID:       rec.IntentID,
		UserID:         rec.UserID,
		SessionID:      rec.SessionID,
		Decision:       string(rec.Decision),
		State:          string(rec.State),
		PolicyVersion:  rec.Result.PolicyVersion,
		TriggeredRules: rec.Result.RuleIDs(),
		Score:          rec.Result.Score,
		Detail:         detail,
	}
}

// details joins the triggered rules' explanations for the ledger.
func details(res policy.RiskResult) string {
	parts := make([]string, 0, len(res.TriggeredRules))
	for _, t := range res.TriggeredRules {
		if t.Detail != "" {
			parts = append(parts, string(t.Rule)+": "+t.Detail)
		}
	}
	return strings.Join(parts, "; ")
}
