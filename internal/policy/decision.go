package policy

import "strings"

// Decision is the single authoritative outcome of an evaluation.
type Decision string

const (
	DecisionApprove       Decision = "APPROVE"
	DecisionDeny          Decision = "DENY"
	DecisionEscalate      Decision = "ESCALATE"
	DecisionRequireReauth Decision = "REQUIRE_REAUTH"
	DecisionCooldown      Decision = "COOLDOWN"
)

// rank encodes the tie-break order DENY > ESCALATE > COOLDOWN > REQUIRE_REAUTH > APPROVE.
func (d Decision) rank() int {
	switch d {
	case DecisionDeny:
		return 4
	case DecisionEscalate:
		return 3
	case DecisionCooldown:
		return 2
	case DecisionRequireReauth:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether d is one of the five decisions.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionDeny, DecisionEscalate, DecisionRequireReauth, DecisionCooldown:
		return true
	}
	return false
}

// ParseDecision parses a decision name case-insensitively.
func ParseDecision(s string) (Decision, bool) {
	d := Decision(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.IsValid()
}

// Stricter returns the stricter of a and b.
func Stricter(a, b Decision) Decision {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Reduce folds per-layer outcomes into one decision. An empty input approves.
func Reduce(outcomes ...Decision) Decision {
	out := DecisionApprove
	for _, d := range outcomes {
		out = Stricter(out, d)
	}
	return out
}

// Triggered is one rule that fired, with the severity it contributed.
type Triggered struct {
	Rule     RuleID  `json:"rule"`
	Layer    Layer   `json:"layer"`
	Severity float64 `json:"severity"`
	Detail   string  `json:"detail,omitempty"`
}

// RiskResult is the evaluator's output.
type RiskResult struct {
	Decision       Decision    `json:"decision"`
	Score          float64     `json:"score"`
	TriggeredRules []Triggered `json:"triggered_rules"`
	PolicyVersion  string      `json:"policy_version"`
	// SessionUntrusted asks the router to mark the session untrusted.
	SessionUntrusted bool `json:"session_untrusted,omitempty"`
	// KillSession asks the router to revoke the session's outstanding tokens.
	KillSession bool `json:"kill_session,omitempty"`
}

// RuleIDs returns the triggered rule ids in evaluation order.
func (r RiskResult) RuleIDs() []string {
	ids := make([]string, 0, len(r.TriggeredRules))
	for _, t := range r.TriggeredRules {
		ids = append(ids, string(t.Rule))
	}
	return ids
}

// Fired reports whether id is among the triggered rules.
func (r RiskResult) Fired(id RuleID) bool {
	for _, t := range r.TriggeredRules {
		if t.Rule == id {
			return true
		}
	}
	return false
}
