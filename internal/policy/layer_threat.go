package policy

import (
	"payguard/internal/domain"
)

type sessionSignals struct {
	untrusted bool
	kill      bool
}

// threats is layer 3: replay, consent reuse, tampering and untrusted sessions.
// Any hit denies.
func (e *Evaluator) threats(c *collector, in domain.Intent, prior domain.PriorState) (Decision, sessionSignals) {
	start := c.mark()
	var sig sessionSignals
	scope := in.Scope()

	hash, err := scope.Hash()
	if err != nil {
		// unhashable payload never matches a stored hash
		hash = ""
	}

	switch {
	case prior.IssuedScope != nil && !prior.IssuedScope.Equal(scope):
		c.fire(RuleIntentTampered, "payload changed after consent was issued for this intent")
		sig.untrusted = true
		sig.kill = true
	case prior.PayloadHash != "" && prior.PayloadHash != hash:
		c.fire(RuleIntentReplay, "intent id reused with a different payload")
	}

	if in.ConsentRef != "" {
		switch {
		case prior.ReferencedScope == nil:
			c.fire(RuleConsentReuse, "referenced consent token is unknown")
			sig.untrusted = true
		case prior.ReferencedIntentID != in.IntentID || !prior.ReferencedScope.Equal(scope):
			c.fire(RuleConsentReuse, "referenced consent token is scoped to a different intent")
			sig.untrusted = true
		}
	}

	if prior.SessionUntrusted {
		c.fire(RuleSessionUntrusted, "session previously marked untrusted")
	}

	if len(c.since(start)) > 0 {
		return DecisionDeny, sig
	}
	return DecisionApprove, sig
}
