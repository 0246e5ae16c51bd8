package router

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"payguard/internal/consent"
	"payguard/internal/domain"
	"payguard/internal/ledger"
	"payguard/internal/policy"
	"payguard/internal/router/ports"
	dErrors "payguard/pkg/domain-errors"
)

// unattributed is the ledger intent id for a failure that names no intent,
// such as a token that does not parse.
const unattributed = "unattributed"

// Execute is the execution boundary. The presented token is verified and
// consumed against the presented intent or payload; a failure is ledgered
// with its specific kind. On success the intent becomes EXECUTED, the payment
// joins the user's velocity history and the executor is notified.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "router.Execute")
	defer span.End()

	if req.Token == "" || (req.Intent == nil && len(req.Payload) == 0) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a token and the intent or payload to execute are required")
	}

	var (
		tok *consent.Token
		err error
	)
	if req.Intent != nil {
		tok, err = s.consent.Verify(ctx, req.Token, *req.Intent)
	} else {
		tok, err = s.consent.VerifyPayload(ctx, req.Token, req.Payload)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.verifyFailed(ctx, req, err)
	}
	span.SetAttributes(attribute.String("intent_id", tok.IntentID))

	scope, err := presentedScope(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verified payload no longer parses")
	}

	unlock := s.lock(tok.UserID, tok.IntentID)
	defer unlock()

	now := s.clock()
	rec, err := s.find(ctx, tok.IntentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// issued by another instance
		rec = recordFromToken(tok, scope, now)
	}
	if err := s.move(rec, StateExecuted, now); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "CRITICAL: consumed token for an intent that cannot execute",
				"intent_id", rec.IntentID,
				"token_id", tok.TokenID,
				"state", string(rec.State),
			)
		}
		return nil, err
	}
	rec.TokenID = tok.TokenID

	entry, err := s.ledger.Record(ctx, draftFor(ledger.EventExecuted, rec, "token "+tok.TokenID))
	if err != nil {
		return nil, s.ledgerFailed(ctx, rec, err)
	}
	rec.LedgerSequence = entry.Sequence
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.velocity.Record(ctx, rec.UserID, domain.Transaction{
		IntentID:    rec.IntentID,
		Amount:      scope.Amount,
		Merchant:    scope.MerchantReference,
		Geolocation: rec.Geolocation,
		At:          now,
	}); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "velocity history not updated",
			"intent_id", rec.IntentID,
			"user_id", rec.UserID,
			"error", err,
		)
	}

	if err := s.executor.Execute(ctx, ports.ExecutionRequest{
		IntentID:       rec.IntentID,
		UserID:         rec.UserID,
		TokenID:        tok.TokenID,
		Type:           scope.Type,
		Scope:          scope,
		LedgerSequence: rec.LedgerSequence,
	}); err != nil {
		s.portFailed(ctx, "executor", rec, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "executor rejected an authorized intent")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "intent executed",
			"intent_id", rec.IntentID,
			"token_id", tok.TokenID,
			"ledger_sequence", rec.LedgerSequence,
		)
	}
	out := outcomeOf(rec)
	out.Token = tok
	return out, nil
}

// verifyFailed ledgers a consent failure and returns it unchanged.
// Infrastructure errors carry no failure kind and are returned as is.
func (s *Service) verifyFailed(ctx context.Context, req ExecuteRequest, err error) error {
	var verr *consent.VerifyError
	if !errors.As(err, &verr) {
		return err
	}

	fail := &Record{
		IntentID: verr.IntentID,
		State:    StateConsentRequested,
		Decision: policy.DecisionDeny,
	}
	if fail.IntentID == "" && req.Intent != nil {
		fail.IntentID = req.Intent.IntentID
	}
	if fail.IntentID == "" {
		fail.IntentID = unattributed
	}
	if rec, findErr := s.find(ctx, fail.IntentID); findErr == nil && rec != nil {
		fail.UserID = rec.UserID
		fail.SessionID = rec.SessionID
		fail.State = rec.State
		fail.Result.PolicyVersion = rec.Result.PolicyVersion
	}
	fail.Result.TriggeredRules = []policy.Triggered{{Rule: policy.RuleID(verr.Kind)}}

	d := draftFor(ledger.EventVerifyFailure, fail, "token "+verr.TokenID)
	if _, lerr := s.ledger.Record(ctx, d); lerr != nil {
		return s.ledgerFailed(ctx, fail, lerr)
	}
	s.metrics.IncVerifyFailure(string(verr.Kind))
	if s.logger != nil {
		s.logger.WarnContext(ctx, "execution refused",
			"intent_id", fail.IntentID,
			"token_id", verr.TokenID,
			"kind", string(verr.Kind),
		)
	}
	return err
}

func presentedScope(req ExecuteRequest) (domain.Scope, error) {
	if req.Intent != nil {
		return req.Intent.Scope(), nil
	}
	return domain.ParseScope(req.Payload)
}

func recordFromToken(tok *consent.Token, scope domain.Scope, now time.Time) *Record {
	return &Record{
		IntentID:  tok.IntentID,
		UserID:    tok.UserID,
		SessionID: tok.SessionID,
		Intent: domain.Intent{
			IntentID:          tok.IntentID,
			Type:              scope.Type,
			Amount:            decimal.NewNullDecimal(scope.Amount),
			Currency:          scope.Currency,
			MerchantReference: scope.MerchantReference,
		},
		State:          StateConsentRequested,
		Decision:       policy.DecisionApprove,
		Result:         policy.RiskResult{PolicyVersion: tok.PolicyVersion},
		LedgerSequence: tok.LedgerSequence,
		TokenID:        tok.TokenID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
