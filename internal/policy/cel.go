package policy

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"

	"payguard/internal/domain"
)

var customRuleID = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,63}$`)

type customRule struct {
	id       RuleID
	source   string
	severity float64
	program  cel.Program
}

// celEnv declares the only inputs an operator rule can see. Free text never
// reaches CEL.
func celEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("daily_spend", cel.DoubleType),
		cel.Variable("txn_count_5m", cel.IntType),
		cel.Variable("device_known", cel.BoolType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("reputation", cel.DoubleType),
		cel.Variable("whitelisted", cel.BoolType),
		cel.Variable("refund_rate", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
	)
}

func compileCustomRules(cfgs []CustomRuleConfig) ([]customRule, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}

	seen := make(map[RuleID]bool, len(cfgs))
	rules := make([]customRule, 0, len(cfgs))
	for _, c := range cfgs {
		if !customRuleID.MatchString(string(c.ID)) {
			return nil, fmt.Errorf("custom rule id %q must be upper snake case", c.ID)
		}
		if _, builtin := builtinLayers[c.ID]; builtin || seen[c.ID] {
			return nil, fmt.Errorf("custom rule id %q is already defined", c.ID)
		}
		if c.Severity < 0 || c.Severity > 1 {
			return nil, fmt.Errorf("custom rule %s: severity %v out of [0,1]", c.ID, c.Severity)
		}
		ast, issues := env.Compile(c.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("custom rule %s: %w", c.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("custom rule %s must evaluate to bool, got %s", c.ID, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("custom rule %s: %w", c.ID, err)
		}
		seen[c.ID] = true
		rules = append(rules, customRule{id: c.ID, source: c.Expression, severity: c.Severity, program: prg})
	}
	return rules, nil
}

func celInput(in domain.Intent, snap domain.ContextSnapshot) map[string]any {
	refund := 0.0
	if snap.RefundRate != nil {
		refund = *snap.RefundRate
	}
	return map[string]any{
		"amount":           in.AmountOrZero().InexactFloat64(),
		"currency":         in.Currency,
		"merchant":         in.MerchantReference,
		"balance":          snap.WalletBalance.Decimal.InexactFloat64(),
		"daily_spend":      snap.DailySpend.Decimal.InexactFloat64(),
		"txn_count_5m":     int64(*snap.TxnCount5m),
		"device_known":     *snap.DeviceKnown,
		"account_age_days": int64(*snap.AccountAgeDays),
		"reputation":       *snap.MerchantReputation,
		"whitelisted":      snap.MerchantWhitelist,
		"refund_rate":      refund,
		"hour":             int64(snap.CapturedAt.UTC().Hour()),
	}
}

// eval returns whether the rule fired. Evaluation errors count as a trigger.
func (r customRule) eval(input map[string]any) (bool, string) {
	out, _, err := r.program.Eval(input)
	if err != nil {
		return true, fmt.Sprintf("evaluation error: %v", err)
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return true, "non-boolean result"
	}
	return fired, r.source
}
