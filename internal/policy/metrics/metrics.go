package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for policy evaluation.
type Metrics struct {
	// Decision outcomes by decision and intent type
	DecisionOutcome *prometheus.CounterVec

	// Rule hits by rule id
	RuleTriggered *prometheus.CounterVec

	// Evaluation latency
	EvaluateLatency prometheus.Histogram

	// Risk score distribution
	Score prometheus.Histogram
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_policy_decisions_total",
			Help: "Evaluator decisions by decision and intent type",
		}, []string{"decision", "intent_type"}),

		RuleTriggered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_policy_rules_triggered_total",
			Help: "Triggered rules by rule id",
		}, []string{"rule"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_policy_evaluate_duration_seconds",
			Help:    "Duration of a single policy evaluation",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),

		Score: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_policy_risk_score",
			Help:    "Risk score recorded with each decision",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(decision, intentType string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(decision, intentType).Inc()
	}
}

// IncrementRules records each triggered rule.
func (m *Metrics) IncrementRules(rules []string) {
	if m == nil {
		return
	}
	for _, r := range rules {
		m.RuleTriggered.WithLabelValues(r).Inc()
	}
}

// ObserveEvaluateLatency records the evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// ObserveScore records a risk score.
func (m *Metrics) ObserveScore(score float64) {
	if m != nil {
		m.Score.Observe(score)
	}
}
