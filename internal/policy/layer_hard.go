package policy

import (
	"fmt"
	"regexp"
	"strings"

	"payguard/internal/domain"
)

// merchantRef accepts VPA-style handles and opaque merchant ids.
var merchantRef = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{2,127}$`)

// hardInvariants is layer 1. All rules are checked so the ledger records every
// violated invariant, then the layer denies.
func (e *Evaluator) hardInvariants(c *collector, in domain.Intent, snap domain.ContextSnapshot) Decision {
	start := c.mark()
	amount := in.Amount.Decimal
	p := e.policy

	e.intentInvariants(c, in)

	if missing := snap.Missing(); len(missing) > 0 {
		c.fire(RuleContextIncomplete, "missing or malformed: "+strings.Join(missing, ","))
		return DecisionDeny
	}

	if projected := snap.DailySpend.Decimal.Add(amount); projected.GreaterThan(p.dailyCap) {
		c.fire(RuleDailyLimitExceeded, fmt.Sprintf("projected daily spend %s exceeds cap %s", projected, p.dailyCap))
	}
	if snap.WalletBalance.Decimal.LessThan(amount) {
		c.fire(RuleInsufficientBalance, fmt.Sprintf("balance %s below amount %s", snap.WalletBalance.Decimal, amount))
	}

	if len(c.since(start)) > 0 {
		return DecisionDeny
	}
	return DecisionApprove
}

// intentInvariants are the layer 1 rules that need only the intent. They also
// run for an incomplete intent, so an over-cap amount is always recorded.
func (e *Evaluator) intentInvariants(c *collector, in domain.Intent) {
	if in.Type.MovesMoney() && strings.TrimSpace(in.MerchantReference) != "" &&
		(!merchantRef.MatchString(in.MerchantReference) || strings.EqualFold(in.MerchantReference, "unknown")) {
		c.fire(RuleMerchantInvalid, fmt.Sprintf("merchant reference %q rejected", in.MerchantReference))
	}
	if in.Amount.Valid && in.Amount.Decimal.GreaterThan(e.policy.perTxnCap) {
		c.fire(RuleAmountLimitExceeded, fmt.Sprintf("amount %s exceeds per-transaction cap %s", in.Amount.Decimal, e.policy.perTxnCap))
	}
}
