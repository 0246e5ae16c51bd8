// Package policy is the risk and policy evaluator: a pure, deterministic rule
// engine that turns an intent, a context snapshot and prior state into one
// decision. It reads no clock and performs no I/O.
package policy

import (
	"strings"

	"payguard/internal/domain"
)

// Evaluator applies a compiled Policy. Safe for concurrent use.
type Evaluator struct {
	policy *Policy
}

// NewEvaluator builds an evaluator for p.
func NewEvaluator(p *Policy) *Evaluator {
	return &Evaluator{policy: p}
}

// PolicyVersion returns the version stamped on every result.
func (e *Evaluator) PolicyVersion() string {
	return e.policy.Version()
}

// collector accumulates triggered rules for one evaluation.
type collector struct {
	policy *Policy
	hits   []Triggered
}

func (c *collector) fire(id RuleID, detail string) {
	c.hits = append(c.hits, Triggered{
		Rule:     id,
		Layer:    LayerOf(id),
		Severity: c.policy.Weight(id),
		Detail:   detail,
	})
}

func (c *collector) mark() int {
	return len(c.hits)
}

func (c *collector) since(mark int) []Triggered {
	return c.hits[mark:]
}

// Evaluate runs the four layers in order, stopping after the first layer that
// denies. Time comes from snap.CapturedAt only.
func (e *Evaluator) Evaluate(in domain.Intent, snap domain.ContextSnapshot, prior domain.PriorState) RiskResult {
	c := &collector{policy: e.policy}
	res := RiskResult{PolicyVersion: e.policy.Version()}

	if missing := in.Missing(); len(missing) > 0 {
		c.fire(RuleIntentIncomplete, "missing or malformed: "+strings.Join(missing, ","))
		e.intentInvariants(c, in)
		return e.finish(res, c, DecisionDeny)
	}

	if !in.Type.MovesMoney() {
		// Read-only intents skip money rules but not replay or tampering.
		threat, signals := e.threats(c, in, prior)
		res.SessionUntrusted = signals.untrusted
		res.KillSession = signals.kill
		return e.finish(res, c, threat)
	}

	if d := e.hardInvariants(c, in, snap); d == DecisionDeny {
		return e.finish(res, c, d)
	}

	velocity := e.velocity(c, in, snap, prior)

	threat, signals := e.threats(c, in, prior)
	res.SessionUntrusted = signals.untrusted
	res.KillSession = signals.kill
	if threat == DecisionDeny {
		return e.finish(res, c, Reduce(velocity, threat))
	}

	behavioral := e.behavioral(c, in, snap, prior, velocity != DecisionApprove)

	return e.finish(res, c, Reduce(velocity, threat, behavioral))
}

func (e *Evaluator) finish(res RiskResult, c *collector, d Decision) RiskResult {
	res.Decision = d
	res.TriggeredRules = c.hits
	if res.TriggeredRules == nil {
		res.TriggeredRules = []Triggered{}
	}
	score := 0.0
	for _, t := range c.hits {
		score += t.Severity
	}
	res.Score = min(max(score, 0), 1)
	return res
}
