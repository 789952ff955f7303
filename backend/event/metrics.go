package event

import "github.com/prometheus/client_golang/prometheus"

// busMetrics is nil-safe: a bus built without a registry skips all
// recording.
type busMetrics struct {
	publishedTotal *prometheus.CounterVec
	deliveredTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
}

func newBusMetrics(registry *prometheus.Registry) *busMetrics {
	if registry == nil {
		return nil
	}

	m := &busMetrics{
		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transformd_events_published_total",
				Help: "Events published by event type",
			},
			[]string{"event_type"},
		),
		deliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transformd_events_delivered_total",
				Help: "Events delivered to subscribers by event type",
			},
			[]string{"event_type"},
		),
		droppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transformd_events_dropped_total",
				Help: "Events dropped because the delivery queue was full",
			},
			[]string{"event_type"},
		),
	}
	registry.MustRegister(m.publishedTotal, m.deliveredTotal, m.droppedTotal)
	return m
}

func (m *busMetrics) published(eventType string) {
	if m != nil {
		m.publishedTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *busMetrics) delivered(eventType string) {
	if m != nil {
		m.deliveredTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *busMetrics) dropped(eventType string) {
	if m != nil {
		m.droppedTotal.WithLabelValues(eventType).Inc()
	}
}
