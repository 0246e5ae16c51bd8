package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit ledger.
type Metrics struct {
	Appended         *prometheus.CounterVec
	AppendLatency    prometheus.Histogram
	IntegrityRetries prometheus.Counter
	AppendFailures   prometheus.Counter
	PublishFailures  prometheus.Counter
	// Entries skipped while the publisher circuit is open
	PublishDropped prometheus.Counter
	BreakerState   prometheus.Gauge
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_ledger_entries_appended_total",
			Help: "Ledger entries appended by event",
		}, []string{"event"}),
		AppendLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_ledger_append_duration_seconds",
			Help:    "Duration of a ledger append including persistence",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		IntegrityRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_ledger_integrity_retries_total",
			Help: "Appends retried after the tail moved",
		}),
		AppendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_ledger_append_failures_total",
			Help: "Appends that failed to persist",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_ledger_publish_failures_total",
			Help: "Persisted entries that could not be streamed",
		}),
		PublishDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "payguard_ledger_publish_dropped_total",
			Help: "Persisted entries not streamed because the publisher circuit was open",
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "payguard_ledger_publisher_circuit_state",
			Help: "Publisher circuit state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncAppended(event string) {
	if m != nil {
		m.Appended.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) ObserveAppendLatency(d time.Duration) {
	if m != nil {
		m.AppendLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncIntegrityRetries() {
	if m != nil {
		m.IntegrityRetries.Inc()
	}
}

func (m *Metrics) IncAppendFailures() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) IncPublishDropped() {
	if m != nil {
		m.PublishDropped.Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}
