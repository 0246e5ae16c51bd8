package router

import (
	"slices"
	"time"

	"payguard/internal/consent"
	"payguard/internal/domain"
	"payguard/internal/policy"
	dErrors "payguard/pkg/domain-errors"
)

// State is a transaction's position in the router's state machine.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateEvaluated        State = "EVALUATED"
	StateConsentRequested State = "CONSENT_REQUESTED"
	StateEscalated        State = "ESCALATED"
	StateReauthRequested  State = "REAUTH_REQUESTED"
	StatePaused           State = "PAUSED"
	StateExecuted         State = "EXECUTED"
	StateTerminated       State = "TERMINATED"
)

// transitions is the complete set of legal moves. CONSENT_REQUESTED returns
// to RECEIVED only when its token lapsed unspent; PAUSED returns to RECEIVED
// when the cooldown expires. Neither resumes an earlier decision.
var transitions = map[State][]State{
	StateReceived: {StateEvaluated},
	StateEvaluated: {
		StateConsentRequested, StateEscalated, StateReauthRequested,
		StatePaused, StateExecuted, StateTerminated,
	},
	StateConsentRequested: {StateExecuted, StateTerminated, StateReceived},
	StateEscalated:        {StateConsentRequested, StateTerminated},
	StateReauthRequested:  {StateConsentRequested, StateTerminated},
	StatePaused:           {StateReceived},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateExecuted || s == StateTerminated
}

// target maps an evaluator decision to the state the router enters.
func target(d policy.Decision, t domain.IntentType) State {
	switch d {
	case policy.DecisionApprove:
		if t.MovesMoney() {
			return StateConsentRequested
		}
		return StateExecuted
	case policy.DecisionEscalate:
		return StateEscalated
	case policy.DecisionRequireReauth:
		return StateReauthRequested
	case policy.DecisionCooldown:
		return StatePaused
	default:
		return StateTerminated
	}
}

// Basis values say what produced an approval.
const (
	BasisEvaluator  = "evaluator"
	BasisEscalation = "escalation"
	BasisReauth     = "reauth"
)

type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Record is the router's owned view of one intent.
type Record struct {
	IntentID    string
	UserID      string
	SessionID   string
	Intent      domain.Intent
	PayloadHash string
	Geolocation string
	State       State
	// Decision is the effective decision: the evaluator's, or the result of an
	// escalation or step-up.
	Decision policy.Decision
	Result   policy.RiskResult
	Basis    string
	// LedgerSequence is the entry that produced the current state.
	LedgerSequence uint64
	TokenID        string
	PausedUntil    time.Time
	Transitions    []Transition
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *Record) transition(to State, at time.Time) error {
	if !CanTransition(r.State, to) {
		return dErrors.New(dErrors.CodeInvalidState,
			"illegal transition "+string(r.State)+" -> "+string(to))
	}
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: to, At: at})
	r.State = to
	r.UpdatedAt = at
	return nil
}

func (r *Record) clone() *Record {
	c := *r
	c.Transitions = slices.Clone(r.Transitions)
	c.Result.TriggeredRules = slices.Clone(r.Result.TriggeredRules)
	return &c
}

// SubmitRequest carries an intent and the snapshot it is evaluated against.
type SubmitRequest struct {
	UserID    string
	SessionID string
	Intent    domain.Intent
	Snapshot  domain.ContextSnapshot
}

// ExecuteRequest presents a token at the execution boundary, with either a
// typed intent or the raw scope payload about to be executed.
type ExecuteRequest struct {
	Token   string
	Intent  *domain.Intent
	Payload []byte
}

// Outcome is what the router returns to its caller.
type Outcome struct {
	IntentID       string
	State          State
	Decision       policy.Decision
	Score          float64
	TriggeredRules []string
	PolicyVersion  string
	LedgerSequence uint64
	// Token is set while consent is outstanding.
	Token *consent.Token
	// RetryAfter is set while paused.
	RetryAfter time.Time
	// Replayed is true when an identical resubmission was answered from the
	// stored record.
	Replayed bool
}

func outcomeOf(r *Record) *Outcome {
	o := &Outcome{
		IntentID:       r.IntentID,
		State:          r.State,
		Decision:       r.Decision,
		Score:          r.Result.Score,
		TriggeredRules: r.Result.RuleIDs(),
		PolicyVersion:  r.Result.PolicyVersion,
		LedgerSequence: r.LedgerSequence,
	}
	if r.State == StatePaused {
		o.RetryAfter = r.PausedUntil
	}
	return o
}
