package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type providerMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newProviderMetrics(registry *prometheus.Registry) *providerMetrics {
	if registry == nil {
		return nil
	}

	m := &providerMetrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collaborator_calls_total",
				Help: "Total collaborator calls by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collaborator_call_duration_seconds",
				Help:    "Collaborator call duration including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
	}

	registry.MustRegister(m.calls, m.duration)
	return m
}

func (m *providerMetrics) Observe(provider, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(provider, op, outcome).Inc()
	m.duration.WithLabelValues(provider, op).Observe(elapsed.Seconds())
}
