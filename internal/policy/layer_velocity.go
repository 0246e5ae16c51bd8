package policy

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"payguard/internal/domain"
)

// velocity is layer 2. It never denies: a rule at or above the escalation
// severity escalates, anything else cools down.
func (e *Evaluator) velocity(c *collector, in domain.Intent, snap domain.ContextSnapshot, prior domain.PriorState) Decision {
	start := c.mark()
	cfg := e.policy.cfg
	now := snap.CapturedAt
	amount := in.Amount.Decimal
	recent := sortedByTime(prior.History.Recent)

	count := *snap.TxnCount5m
	if n := countWithin(recent, now, cfg.Velocity.Window); n > count {
		count = n
	}
	if count >= cfg.Velocity.MaxTransactions {
		c.fire(RuleVelocityLimit, fmt.Sprintf("%d transactions in %s (limit %d)", count, cfg.Velocity.Window, cfg.Velocity.MaxTransactions))
	}

	similar := 0
	for _, tx := range recent {
		if tx.Merchant == in.MerchantReference && within(tx.At, now, cfg.Drain.Window) &&
			tx.Amount.Sub(amount).Abs().LessThanOrEqual(e.policy.drainTolerance) {
			similar++
		}
	}
	if similar+1 >= cfg.Drain.MinCount {
		c.fire(RuleRapidRepeatAmount, fmt.Sprintf("%d payments of ~%s to %s within %s", similar+1, amount, in.MerchantReference, cfg.Drain.Window))
	}

	if large, parts, ok := e.splitting(in, now, recent); ok {
		c.fire(RuleIntentSplitting, fmt.Sprintf("%d parts summing to prior payment of %s", parts, large))
	}

	hist := prior.History
	hour := now.UTC().Hour()
	if hist.Samples() >= cfg.Temporal.MinSamples && hist.HourHistogram[hour] == 0 {
		c.fire(RuleUnusualHour, fmt.Sprintf("no prior activity at hour %02d UTC", hour))
	}

	hits := c.since(start)
	if len(hits) == 0 {
		return DecisionApprove
	}
	for _, h := range hits {
		if h.Severity >= cfg.EscalateSeverity {
			return DecisionEscalate
		}
	}
	return DecisionCooldown
}

// splitting looks for a prior large payment to the same merchant followed by
// smaller ones that, with the current amount, add up to it.
func (e *Evaluator) splitting(in domain.Intent, now time.Time, recent []domain.Transaction) (decimal.Decimal, int, bool) {
	cfg := e.policy.cfg.Splitting
	amount := in.Amount.Decimal

	var window []domain.Transaction
	for _, tx := range recent {
		if tx.Merchant == in.MerchantReference && within(tx.At, now, cfg.Window) {
			window = append(window, tx)
		}
	}

	for i, large := range window {
		if !amount.LessThan(large.Amount) {
			continue
		}
		sum, parts := amount, 1
		for _, tx := range window[i+1:] {
			if tx.Amount.LessThan(large.Amount) {
				sum = sum.Add(tx.Amount)
				parts++
			}
		}
		if parts >= cfg.MinParts && sum.Sub(large.Amount).Abs().LessThanOrEqual(e.policy.splitTolerance) {
			return large.Amount, parts, true
		}
	}
	return decimal.Zero, 0, false
}

func within(at, now time.Time, window time.Duration) bool {
	return !at.After(now) && at.After(now.Add(-window))
}

func countWithin(txs []domain.Transaction, now time.Time, window time.Duration) int {
	n := 0
	for _, tx := range txs {
		if within(tx.At, now, window) {
			n++
		}
	}
	return n
}

func sortedByTime(txs []domain.Transaction) []domain.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		return a.At.Compare(b.At)
	})
	return out
}
