package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for consent tokens.
type Metrics struct {
	TokensIssued  prometheus.Counter
	VerifyOutcome *prometheus.CounterVec
	TokensRevoked *prometheus.CounterVec
	VerifyLatency prometheus.Histogram
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_consent_tokens_issued_total",
			Help: "Consent tokens issued",
		}),
		VerifyOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_consent_verify_total",
			Help: "Token verifications by outcome (ok or failure kind)",
		}, []string{"outcome"}),
		TokensRevoked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_consent_tokens_revoked_total",
			Help: "Consent tokens revoked by reason",
		}, []string{"reason"}),
		VerifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_consent_verify_duration_seconds",
			Help:    "Duration of token verification including the spent-set claim",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

func (m *Metrics) IncrementVerify(outcome string) {
	if m != nil {
		m.VerifyOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementRevoked(reason string) {
	if m != nil {
		m.TokensRevoked.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
