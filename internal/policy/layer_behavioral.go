package policy

import (
	"fmt"
	"slices"

	"payguard/internal/domain"
)

// behavioral is layer 4. On its own it asks for step-up; combined with a
// layer-2 flag it escalates.
func (e *Evaluator) behavioral(c *collector, in domain.Intent, snap domain.ContextSnapshot, prior domain.PriorState, velocityFlagged bool) Decision {
	start := c.mark()
	cfg := e.policy.cfg.Behavioral
	amount := in.Amount.Decimal

	if !*snap.DeviceKnown && amount.GreaterThan(e.policy.newDeviceLimit) {
		c.fire(RuleNewDevice, fmt.Sprintf("unrecognized device, amount %s above new-device limit %s", amount, e.policy.newDeviceLimit))
	}

	geos := prior.History.RecentGeos
	if snap.Geolocation != "" && len(geos) > 0 && !slices.Contains(geos, snap.Geolocation) {
		c.fire(RuleGeoMismatch, fmt.Sprintf("location %s not seen recently", snap.Geolocation))
	}

	if age := snap.SessionAge(); age < cfg.MinSessionAge {
		c.fire(RuleSessionTooYoung, fmt.Sprintf("session age %s below %s", age, cfg.MinSessionAge))
	}

	if *snap.AccountAgeDays < cfg.MinAccountAgeDays {
		c.fire(RuleAccountTooNew, fmt.Sprintf("account age %dd below %dd", *snap.AccountAgeDays, cfg.MinAccountAgeDays))
	}

	if rep := *snap.MerchantReputation; rep < cfg.MinMerchantReputation && !snap.MerchantWhitelist {
		c.fire(RuleLowMerchantReputation, fmt.Sprintf("merchant reputation %.2f below %.2f", rep, cfg.MinMerchantReputation))
	}

	if snap.RefundRate != nil && *snap.RefundRate > cfg.MaxRefundRate {
		c.fire(RuleHighRefundRate, fmt.Sprintf("merchant refund rate %.2f above %.2f", *snap.RefundRate, cfg.MaxRefundRate))
	}

	if in.RawConfidence != nil && *in.RawConfidence < cfg.MinConfidence {
		c.fire(RuleLowConfidence, fmt.Sprintf("interpreter confidence %.2f below %.2f", *in.RawConfidence, cfg.MinConfidence))
	}

	if len(e.policy.custom) > 0 {
		input := celInput(in, snap)
		for _, r := range e.policy.custom {
			if fired, detail := r.eval(input); fired {
				c.fire(r.id, detail)
			}
		}
	}

	if len(c.since(start)) == 0 {
		return DecisionApprove
	}
	if velocityFlagged {
		return DecisionEscalate
	}
	return DecisionRequireReauth
}
