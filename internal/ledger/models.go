package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"payguard/pkg/canonical"
)

// GenesisHash is the prev hash of the first entry.
var GenesisHash = strings.Repeat("0", 64)

// Event classifies what an entry records.
type Event string

const (
	EventDecision           Event = "DECISION"
	EventTransition         Event = "TRANSITION"
	EventEscalationResolved Event = "ESCALATION_RESOLVED"
	EventReauthCompleted    Event = "REAUTH_COMPLETED"
	EventVerifyFailure      Event = "VERIFY_FAILURE"
	EventExecuted           Event = "EXECUTED"
	EventSessionKilled      Event = "SESSION_KILLED"
)

// Draft is the caller-supplied content of an entry.
type Draft struct {
	Event          Event    `json:"event"`
	IntentID       string   `json:"intent_id"`
	UserID         string   `json:"user_id,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
	Decision       string   `json:"decision,omitempty"`
	State          string   `json:"state,omitempty"`
	PolicyVersion  string   `json:"policy_version,omitempty"`
	TriggeredRules []string `json:"triggered_rules"`
	Score          float64  `json:"score"`
	Detail         string   `json:"detail,omitempty"`
	// Timestamp defaults to the ledger clock when zero.
	Timestamp time.Time `json:"timestamp"`
}

// Entry is an immutable, hash-linked ledger record.
type Entry struct {
	Sequence uint64 `json:"sequence"`
	Draft
	PrevHash  string `json:"prev_hash"`
	EntryHash string `json:"entry_hash"`
}

// hashed is the exact field set covered by EntryHash.
type hashed struct {
	Sequence       uint64   `json:"sequence"`
	Event          Event    `json:"event"`
	IntentID       string   `json:"intent_id"`
	UserID         string   `json:"user_id"`
	SessionID      string   `json:"session_id"`
	Decision       string   `json:"decision"`
	State          string   `json:"state"`
	PolicyVersion  string   `json:"policy_version"`
	TriggeredRules []string `json:"triggered_rules"`
	Score          float64  `json:"score"`
	Detail         string   `json:"detail"`
	Timestamp      string   `json:"timestamp"`
	PrevHash       string   `json:"prev_hash"`
}

// ComputeHash returns SHA-256 over the canonical JSON of the entry's content
// and prev hash.
func (e Entry) ComputeHash() (string, error) {
	rules := e.TriggeredRules
	if rules == nil {
		rules = []string{}
	}
	return canonical.Hash(hashed{
		Sequence:       e.Sequence,
		Event:          e.Event,
		IntentID:       e.IntentID,
		UserID:         e.UserID,
		SessionID:      e.SessionID,
		Decision:       e.Decision,
		State:          e.State,
		PolicyVersion:  e.PolicyVersion,
		TriggeredRules: rules,
		Score:          e.Score,
		Detail:         e.Detail,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		PrevHash:       e.PrevHash,
	})
}

// Filter narrows Read. Zero values match everything.
type Filter struct {
	IntentID     string
	UserID       string
	Decision     string
	Event        Event
	FromSequence uint64
	Limit        int
}

func (f Filter) matches(e Entry) bool {
	return (f.IntentID == "" || e.IntentID == f.IntentID) &&
		(f.UserID == "" || e.UserID == f.UserID) &&
		(f.Decision == "" || e.Decision == f.Decision) &&
		(f.Event == "" || e.Event == f.Event) &&
		e.Sequence >= f.FromSequence
}

// ChainReport is the result of VerifyChain. BrokenAt is zero when Valid.
type ChainReport struct {
	Valid    bool   `json:"valid"`
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Checked  uint64 `json:"checked"`
	Reason   string `json:"reason,omitempty"`
}

// ChainIntegrityError reports an append against a stale tail.
type ChainIntegrityError struct {
	Expected string
	Got      string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("ledger tail moved: expected prev hash %s, got %s", e.Expected, e.Got)
}

// IsChainIntegrity reports whether err is a ChainIntegrityError.
func IsChainIntegrity(err error) bool {
	var ce *ChainIntegrityError
	return errors.As(err, &ce)
}
