package httptransport

import (
	"encoding/json"
	"strings"

	"payguard/internal/domain"
	dErrors "payguard/pkg/domain-errors"
)

// SubmitIntentRequest is the body of POST /v1/intents. Field-level
// completeness is judged by the evaluator so that an incomplete intent is
// denied and ledgered, not rejected at the edge.
type SubmitIntentRequest struct {
	Intent  domain.Intent          `json:"intent"`
	Context domain.ContextSnapshot `json:"context"`
}

func (r *SubmitIntentRequest) Validate() error {
	r.Intent.IntentID = strings.TrimSpace(r.Intent.IntentID)
	if r.Intent.IntentID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "intent.intent_id is required")
	}
	return nil
}

// ResolveEscalationRequest is an adjudicator's verdict.
type ResolveEscalationRequest struct {
	Approved *bool  `json:"approved"`
	Reviewer string `json:"reviewer"`
}

func (r *ResolveEscalationRequest) Validate() error {
	r.Reviewer = strings.TrimSpace(r.Reviewer)
	switch {
	case r.Approved == nil:
		return dErrors.New(dErrors.CodeInvalidInput, "approved is required")
	case r.Reviewer == "":
		return dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}
	return nil
}

// CompleteReauthRequest is a step-up verifier's result.
type CompleteReauthRequest struct {
	Verified *bool `json:"verified"`
}

func (r *CompleteReauthRequest) Validate() error {
	if r.Verified == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "verified is required")
	}
	return nil
}

// ExecuteRequest presents a consent token with either the structured intent
// or the raw scope payload it was issued for.
type ExecuteRequest struct {
	Token   string          `json:"token"`
	Intent  *domain.Intent  `json:"intent,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (r *ExecuteRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	switch {
	case r.Token == "":
		return dErrors.New(dErrors.CodeInvalidInput, "token is required")
	case r.Intent == nil && len(r.Payload) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "intent or payload is required")
	case r.Intent != nil && len(r.Payload) > 0:
		return dErrors.New(dErrors.CodeInvalidInput, "send intent or payload, not both")
	}
	return nil
}
