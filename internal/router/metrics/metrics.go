package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision router.
type Metrics struct {
	// State machine transitions by source and destination state
	Transitions *prometheus.CounterVec

	// Identical resubmissions answered from the stored record
	Replays prometheus.Counter

	// Ledgered verification failures by kind
	VerifyFailures *prometheus.CounterVec

	// Sessions killed after a tampering signal
	SessionsKilled prometheus.Counter

	// End-to-end submit latency including ledger append and issuance
	SubmitLatency prometheus.Histogram
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_router_transitions_total",
			Help: "Router state transitions",
		}, []string{"from", "to"}),
		Replays: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_router_replays_total",
			Help: "Identical resubmissions answered without re-evaluation",
		}),
		VerifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_router_verify_failures_total",
			Help: "Consent verification failures at the execution boundary",
		}, []string{"kind"}),
		SessionsKilled: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_router_sessions_killed_total",
			Help: "Sessions killed and their tokens revoked",
		}),
		SubmitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_router_submit_duration_seconds",
			Help:    "Duration of Submit including ledger append and token issuance",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncReplay() {
	if m != nil {
		m.Replays.Inc()
	}
}

func (m *Metrics) IncVerifyFailure(kind string) {
	if m != nil {
		m.VerifyFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncSessionKilled() {
	if m != nil {
		m.SessionsKilled.Inc()
	}
}

func (m *Metrics) ObserveSubmitLatency(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}
