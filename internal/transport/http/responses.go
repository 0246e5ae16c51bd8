package httptransport

import (
	"time"

	"payguard/internal/consent"
	"payguard/internal/ledger"
	"payguard/internal/router"
)

// OutcomeResponse is returned by submit, resolve and execute.
type OutcomeResponse struct {
	IntentID       string         `json:"intent_id"`
	State          string         `json:"state"`
	Decision       string         `json:"decision"`
	Score          float64        `json:"score"`
	TriggeredRules []string       `json:"triggered_rules"`
	PolicyVersion  string         `json:"policy_version,omitempty"`
	LedgerSequence uint64         `json:"ledger_sequence"`
	ConsentToken   *TokenResponse `json:"consent_token,omitempty"`
	RetryAfter     *time.Time     `json:"retry_after,omitempty"`
	Replayed       bool           `json:"replayed,omitempty"`
}

type TokenResponse struct {
	TokenID    string    `json:"token_id"`
	Token      string    `json:"token"`
	Audience   string    `json:"audience"`
	IntentHash string    `json:"intent_hash"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func FromOutcome(o *router.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		IntentID:       o.IntentID,
		State:          string(o.State),
		Decision:       string(o.Decision),
		Score:          o.Score,
		TriggeredRules: o.TriggeredRules,
		PolicyVersion:  o.PolicyVersion,
		LedgerSequence: o.LedgerSequence,
		Replayed:       o.Replayed,
	}
	if resp.TriggeredRules == nil {
		resp.TriggeredRules = []string{}
	}
	if !o.RetryAfter.IsZero() {
		t := o.RetryAfter
		resp.RetryAfter = &t
	}
	if o.Token != nil {
		resp.ConsentToken = fromToken(o.Token)
	}
	return resp
}

func fromToken(t *consent.Token) *TokenResponse {
	return &TokenResponse{
		TokenID:    t.TokenID,
		Token:      t.Signed,
		Audience:   t.Audience,
		IntentHash: t.IntentHash,
		ExpiresAt:  t.ExpiresAt,
	}
}

// IntentResponse is the stored view of one intent.
type IntentResponse struct {
	IntentID       string               `json:"intent_id"`
	UserID         string               `json:"user_id"`
	SessionID      string               `json:"session_id"`
	Type           string               `json:"type"`
	State          string               `json:"state"`
	Decision       string               `json:"decision"`
	Basis          string               `json:"basis,omitempty"`
	Score          float64              `json:"score"`
	TriggeredRules []string             `json:"triggered_rules"`
	LedgerSequence uint64               `json:"ledger_sequence"`
	TokenID        string               `json:"token_id,omitempty"`
	PausedUntil    *time.Time           `json:"paused_until,omitempty"`
	Transitions    []TransitionResponse `json:"transitions"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type TransitionResponse struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

func FromRecord(r *router.Record) IntentResponse {
	resp := IntentResponse{
		IntentID:       r.IntentID,
		UserID:         r.UserID,
		SessionID:      r.SessionID,
		Type:           string(r.Intent.Type),
		State:          string(r.State),
		Decision:       string(r.Decision),
		Basis:          r.Basis,
		Score:          r.Result.Score,
		TriggeredRules: r.Result.RuleIDs(),
		LedgerSequence: r.LedgerSequence,
		TokenID:        r.TokenID,
		Transitions:    make([]TransitionResponse, 0, len(r.Transitions)),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if resp.TriggeredRules == nil {
		resp.TriggeredRules = []string{}
	}
	if !r.PausedUntil.IsZero() {
		t := r.PausedUntil
		resp.PausedUntil = &t
	}
	for _, t := range r.Transitions {
		resp.Transitions = append(resp.Transitions, TransitionResponse{From: string(t.From), To: string(t.To), At: t.At})
	}
	return resp
}

// LedgerPage is one page of GET /v1/ledger. NextSequence is set when more
// entries may follow.
type LedgerPage struct {
	Entries      []ledger.Entry `json:"entries"`
	NextSequence uint64         `json:"next_sequence,omitempty"`
}

type ChainReportResponse struct {
	Valid    bool   `json:"valid"`
	Checked  uint64 `json:"checked"`
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func FromReport(r ledger.ChainReport) ChainReportResponse {
	return ChainReportResponse{Valid: r.Valid, Checked: r.Checked, BrokenAt: r.BrokenAt, Reason: r.Reason}
}
