package observe

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts events by name in a Prometheus counter vector.
// Field values are deliberately not exported as labels to keep cardinality
// bounded; the log sink carries the details.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink creates a MetricsSink and registers its collectors.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicdesk",
			Name:      "events_total",
			Help:      "Core events by name (ingestion attempts, promotions, transitions).",
		}, []string{"event"}),
	}
	reg.MustRegister(s.events)
	return s
}

func (s *MetricsSink) Record(_ context.Context, event string, _ map[string]any) {
	s.events.WithLabelValues(event).Inc()
}
