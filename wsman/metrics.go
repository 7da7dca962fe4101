package wsman

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation request counts, latency and item counts.
// A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wsman",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total WS-Management requests by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wsman",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "WS-Management request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wsman",
				Subsystem: "client",
				Name:      "items_total",
				Help:      "Items received from Enumerate and Pull responses.",
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.items)
	}
	return m
}

func (m *Metrics) observe(op Operation, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.requests.WithLabelValues(op.String(), outcome).Inc()
	m.duration.WithLabelValues(op.String()).Observe(d.Seconds())
}

func (m *Metrics) addItems(op Operation, n int) {
	if m == nil || n == 0 {
		return
	}
	m.items.WithLabelValues(op.String()).Add(float64(n))
}
