package router

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"payguard/internal/ledger"
	"payguard/internal/policy"
	dErrors "payguard/pkg/domain-errors"
)

// ResolveEscalation applies an adjudicator's verdict. Approval takes the
// APPROVE path and issues consent; rejection terminates.
func (s *Service) ResolveEscalation(ctx context.Context, intentID string, approved bool, reviewer string) (*Outcome, error) {
	detail := "rejected by " + reviewer
	if approved {
		detail = "approved by " + reviewer
	}
	return s.resolve(ctx, intentID, StateEscalated, ledger.EventEscalationResolved, BasisEscalation, approved, detail)
}

// CompleteReauth applies a step-up result. Only a verified user proceeds as
// APPROVE; a failed step-up terminates.
func (s *Service) CompleteReauth(ctx context.Context, intentID string, verified bool) (*Outcome, error) {
	detail := "step-up failed"
	if verified {
		detail = "step-up verified"
	}
	return s.resolve(ctx, intentID, StateReauthRequested, ledger.EventReauthCompleted, BasisReauth, verified, detail)
}

func (s *Service) resolve(ctx context.Context, intentID string, from State, ev ledger.Event, basis string, approved bool, detail string) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "router.Resolve", trace.WithAttributes(
		attribute.String("intent_id", intentID),
		attribute.String("event", string(ev)),
		attribute.Bool("approved", approved),
	))
	defer span.End()

	out, err := s.resolveLocked(ctx, intentID, from, ev, basis, approved, detail)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (s *Service) resolveLocked(ctx context.Context, intentID string, from State, ev ledger.Event, basis string, approved bool, detail string) (*Outcome, error) {
	rec, err := s.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	unlock := s.lock(rec.UserID, rec.IntentID)
	defer unlock()

	// reload under the lock
	rec, err = s.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if rec.State != from {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			"intent is "+string(rec.State)+", expected "+string(from))
	}

	decision, to := policy.DecisionDeny, StateTerminated
	if approved {
		decision, to = policy.DecisionApprove, target(policy.DecisionApprove, rec.Intent.Type)
	}
	if err := s.move(rec, to, s.clock()); err != nil {
		return nil, err
	}
	rec.Decision = decision
	rec.Basis = basis

	entry, err := s.ledger.Record(ctx, draftFor(ev, rec, detail))
	if err != nil {
		return nil, s.ledgerFailed(ctx, rec, err)
	}
	rec.LedgerSequence = entry.Sequence

	if s.logger != nil {
		s.logger.InfoContext(ctx, "pending intent resolved",
			"intent_id", rec.IntentID,
			"event", string(ev),
			"decision", string(decision),
			"state", string(rec.State),
			"ledger_sequence", rec.LedgerSequence,
		)
	}
	return s.dispatchAndSave(ctx, rec)
}
