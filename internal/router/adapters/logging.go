// Package adapters holds default implementations of the router's outbound
// ports. They log the hand-off and return; a deployment replaces them with
// real collaborators.
package adapters

import (
	"context"
	"log/slog"

	"payguard/internal/router/ports"
)

type LoggingAdjudicator struct {
	logger *slog.Logger
}

func NewLoggingAdjudicator(logger *slog.Logger) *LoggingAdjudicator {
	return &LoggingAdjudicator{logger: logger}
}

func (a *LoggingAdjudicator) RequestAdjudication(ctx context.Context, req ports.EscalationRequest) error {
	a.logger.InfoContext(ctx, "escalation awaiting adjudication",
		"intent_id", req.IntentID,
		"user_id", req.UserID,
		"score", req.Score,
		"rules", req.Rules,
		"ledger_sequence", req.LedgerSequence,
	)
	return nil
}

type LoggingStepUp struct {
	logger *slog.Logger
}

func NewLoggingStepUp(logger *slog.Logger) *LoggingStepUp {
	return &LoggingStepUp{logger: logger}
}

func (v *LoggingStepUp) RequestStepUp(ctx context.Context, req ports.StepUpRequest) error {
	v.logger.InfoContext(ctx, "step-up verification requested",
		"intent_id", req.IntentID,
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"rules", req.Rules,
	)
	return nil
}

// LoggingExecutor stands in for the payment simulator.
type LoggingExecutor struct {
	logger *slog.Logger
}

func NewLoggingExecutor(logger *slog.Logger) *LoggingExecutor {
	return &LoggingExecutor{logger: logger}
}

func (e *LoggingExecutor) Execute(ctx context.Context, req ports.ExecutionRequest) error {
	e.logger.InfoContext(ctx, "intent forwarded for execution",
		"intent_id", req.IntentID,
		"type", string(req.Type),
		"token_id", req.TokenID,
		"merchant", req.Scope.MerchantReference,
		"amount", req.Scope.Amount.String(),
		"currency", req.Scope.Currency,
	)
	return nil
}
