// Package ports declares what the router needs from the consent manager, the
// ledger and the external collaborators it hands work to.
package ports

import (
	"context"

	"payguard/internal/consent"
	"payguard/internal/domain"
	"payguard/internal/ledger"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

// Consent is the subset of the consent manager the router drives. The router
// is the only caller of Issue.
type Consent interface {
	Issue(ctx context.Context, a consent.Approval) (*consent.Token, error)
	Verify(ctx context.Context, signed string, presented domain.Intent) (*consent.Token, error)
	VerifyPayload(ctx context.Context, signed string, raw []byte) (*consent.Token, error)
	IsLive(ctx context.Context, tok *consent.Token) (bool, error)
	Find(ctx context.Context, tokenID string) (*consent.Token, error)
	FindByIntent(ctx context.Context, intentID string) (*consent.Token, error)
	RevokeSession(ctx context.Context, sessionID, reason string) (int, error)
}

// Ledger appends against the current tail.
type Ledger interface {
	Record(ctx context.Context, d ledger.Draft) (ledger.Entry, error)
}

// EscalationRequest asks for human or secondary review.
type EscalationRequest struct {
	IntentID       string
	UserID         string
	SessionID      string
	Score          float64
	Rules          []string
	LedgerSequence uint64
}

// StepUpRequest asks the auth collaborator to re-verify the user.
type StepUpRequest struct {
	IntentID  string
	UserID    string
	SessionID string
	Rules     []string
}

// ExecutionRequest forwards an authorized intent to the execution boundary.
// TokenID is empty for intents that move no money.
type ExecutionRequest struct {
	IntentID       string
	UserID         string
	TokenID        string
	Type           domain.IntentType
	Scope          domain.Scope
	LedgerSequence uint64
}

// Adjudicator receives escalations. Its verdict comes back through
// ResolveEscalation.
type Adjudicator interface {
	RequestAdjudication(ctx context.Context, req EscalationRequest) error
}

// StepUpVerifier starts step-up authentication. Its result comes back through
// CompleteReauth.
type StepUpVerifier interface {
	RequestStepUp(ctx context.Context, req StepUpRequest) error
}

// Executor moves money, or serves a read-only intent.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) error
}
