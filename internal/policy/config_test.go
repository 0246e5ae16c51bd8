package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/domain"
)

func TestParse(t *testing.T) {
	t.Run("empty document keeps defaults", func(t *testing.T) {
		p, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", p.Version())
		assert.Equal(t, SeverityMedium, p.Weight(RuleVelocityLimit))
	})

	t.Run("overrides merge into defaults", func(t *testing.T) {
		p, err := Parse([]byte(`
version: 2.1.0
limits:
  per_transaction: "250"
  daily: "1000"
weights:
  VELOCITY_LIMIT: 0.8
`))
		require.NoError(t, err)
		assert.Equal(t, "2.1.0", p.Version())
		assert.Equal(t, 0.8, p.Weight(RuleVelocityLimit))
		assert.Equal(t, SeverityMedium, p.Weight(RuleRapidRepeatAmount))

		res := NewEvaluator(p).Evaluate(paymentIntent("300"), healthySnapshot(), domain.PriorState{})
		assert.True(t, res.Fired(RuleAmountLimitExceeded))
		assert.Equal(t, "2.1.0", res.PolicyVersion)
	})

	t.Run("raised velocity weight escalates", func(t *testing.T) {
		p, err := Parse([]byte("weights:\n  VELOCITY_LIMIT: 0.8\n"))
		require.NoError(t, err)
		snap := healthySnapshot()
		snap.TxnCount5m = ptr(15)
		res := NewEvaluator(p).Evaluate(paymentIntent("20"), snap, domain.PriorState{})
		assert.Equal(t, DecisionEscalate, res.Decision)
	})

	t.Run("unknown rule id in weights", func(t *testing.T) {
		_, err := Parse([]byte("weights:\n  NOT_A_RULE: 0.5\n"))
		assert.ErrorContains(t, err, "unknown rule id")
	})

	t.Run("unknown top-level field", func(t *testing.T) {
		_, err := Parse([]byte("limitz:\n  daily: \"1\"\n"))
		assert.Error(t, err)
	})

	t.Run("version must be semver", func(t *testing.T) {
		_, err := Parse([]byte("version: v1\n"))
		assert.ErrorContains(t, err, "policy version")
	})

	t.Run("weight out of range", func(t *testing.T) {
		_, err := Parse([]byte("weights:\n  NEW_DEVICE: 1.5\n"))
		assert.Error(t, err)
	})

	t.Run("negative cap", func(t *testing.T) {
		_, err := Parse([]byte("limits:\n  per_transaction: \"-1\"\n"))
		assert.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1.2.3\nescalate_severity: 0.5\n"), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", p.Version())
	assert.Equal(t, 0.5, p.Config().EscalateSeverity)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCustomRules(t *testing.T) {
	t.Run("fires in layer 4", func(t *testing.T) {
		p, err := Parse([]byte(`
custom_rules:
  - id: AFTERNOON_LARGE_PAYMENT
    expression: "amount > 100.0 && hour >= 12 && hour < 18"
    severity: 0.3
`))
		require.NoError(t, err)
		eval := NewEvaluator(p)

		res := eval.Evaluate(paymentIntent("150"), healthySnapshot(), domain.PriorState{})
		assert.Equal(t, DecisionRequireReauth, res.Decision)
		assert.Equal(t, []string{"AFTERNOON_LARGE_PAYMENT"}, res.RuleIDs())
		assert.Equal(t, LayerBehavioral, res.TriggeredRules[0].Layer)
		assert.InDelta(t, 0.3, res.Score, 1e-9)

		res = eval.Evaluate(paymentIntent("50"), healthySnapshot(), domain.PriorState{})
		assert.Equal(t, DecisionApprove, res.Decision)
	})

	t.Run("evaluation error fails closed", func(t *testing.T) {
		p, err := Parse([]byte(`
custom_rules:
  - id: DIVIDE_BY_COUNT
    expression: "100 / txn_count_5m > 1"
    severity: 0.2
`))
		require.NoError(t, err)
		res := NewEvaluator(p).Evaluate(paymentIntent("50"), healthySnapshot(), domain.PriorState{})
		assert.True(t, res.Fired("DIVIDE_BY_COUNT"))
	})

	t.Run("non-boolean expression rejected", func(t *testing.T) {
		_, err := Parse([]byte(`
custom_rules:
  - id: JUST_AMOUNT
    expression: "amount * 2.0"
    severity: 0.2
`))
		assert.ErrorContains(t, err, "must evaluate to bool")
	})

	t.Run("undeclared variable rejected", func(t *testing.T) {
		_, err := Parse([]byte(`
custom_rules:
  - id: FREE_TEXT
    expression: "raw_input.contains('ignore previous')"
    severity: 0.2
`))
		assert.Error(t, err)
	})

	t.Run("cannot shadow a built-in rule", func(t *testing.T) {
		_, err := Parse([]byte(`
custom_rules:
  - id: NEW_DEVICE
    expression: "true"
    severity: 0.2
`))
		assert.ErrorContains(t, err, "already defined")
	})
}
