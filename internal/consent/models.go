package consent

import (
	"errors"
	"fmt"
	"time"

	"payguard/internal/domain"
	"payguard/internal/policy"
	dErrors "payguard/pkg/domain-errors"
)

// Token is a single-use authorization bound to exactly one intent scope.
type Token struct {
	TokenID    string       `json:"token_id"`
	IntentID   string       `json:"intent_id"`
	IntentHash string       `json:"intent_hash"`
	Audience   string       `json:"audience"`
	UserID     string       `json:"user_id"`
	SessionID  string       `json:"session_id"`
	Scope      domain.Scope `json:"scope"`
	IssuedAt   time.Time    `json:"issued_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	SingleUse  bool         `json:"single_use"`
	// LedgerSequence is the ledger entry that approved issuance.
	LedgerSequence uint64 `json:"ledger_sequence"`
	PolicyVersion  string `json:"policy_version"`
	// Signed is the compact JWS handed to the execution boundary.
	Signed string `json:"signed"`
}

// Expired reports whether the token has lapsed at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Approval is what the router presents to obtain a token.
type Approval struct {
	Intent    domain.Intent
	UserID    string
	SessionID string
	Decision  policy.Decision
	// Basis records why the intent is approved: evaluator, escalation or reauth.
	Basis          string
	LedgerSequence uint64
	PolicyVersion  string
}

// MarkReason says why a token can no longer be used.
type MarkReason string

const (
	MarkSpent   MarkReason = "spent"
	MarkRevoked MarkReason = "revoked"
)

// Mark is an entry in the spent set.
type Mark struct {
	Reason MarkReason `json:"reason"`
	At     time.Time  `json:"at"`
	Detail string     `json:"detail,omitempty"`
}

// FailureKind is the specific reason a verification failed.
type FailureKind string

const (
	FailureInvalidToken     FailureKind = "INVALID_TOKEN"
	FailureExpired          FailureKind = "EXPIRED"
	FailureAlreadySpent     FailureKind = "ALREADY_SPENT"
	FailureRevoked          FailureKind = "REVOKED"
	FailureAudienceMismatch FailureKind = "AUDIENCE_MISMATCH"
	FailureHashMismatch     FailureKind = "HASH_MISMATCH"
)

// VerifyError carries the failure kind and whatever token identity could be
// recovered before the failure.
type VerifyError struct {
	Kind     FailureKind
	TokenID  string
	IntentID string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("consent verification failed: %s", e.Kind)
}

// KindOf extracts the failure kind from a Verify error.
func KindOf(err error) (FailureKind, bool) {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}

func verifyFailure(kind FailureKind, tokenID, intentID string) error {
	return dErrors.Wrap(&VerifyError{Kind: kind, TokenID: tokenID, IntentID: intentID},
		dErrors.CodeScopeError, "consent token rejected: "+string(kind))
}

func markFailure(m *Mark, tokenID, intentID string) error {
	if m.Reason == MarkRevoked {
		return verifyFailure(FailureRevoked, tokenID, intentID)
	}
	return verifyFailure(FailureAlreadySpent, tokenID, intentID)
}
