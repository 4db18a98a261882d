package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics holds Prometheus metrics for the score event pipeline.
type IntakeMetrics struct {
	EventsProcessed    *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	DeadLettered       prometheus.Counter
	EventsByChannel    *prometheus.CounterVec
}

// NewIntakeMetrics creates and registers intake metrics on the given registry.
func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of score events processed, by result.",
		}, []string{"result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "events_processing_duration_seconds",
			Help:      "Duration of score event processing in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		DeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dead_lettered_total",
			Help:      "Total number of queue messages routed to the dead-letter topic.",
		}),
		EventsByChannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_by_channel_total",
			Help:      "Total number of reconciled events, by broadcast channel.",
		}, []string{"channel"}),
	}

	reg.MustRegister(m.EventsProcessed, m.ProcessingDuration, m.DeadLettered, m.EventsByChannel)
	return m
}

// Result labels for EventsProcessed.
const (
	ResultBroadcast = "broadcast"
	ResultDeleted   = "deleted"
	ResultDropped   = "dropped"
	ResultRejected  = "rejected"
)
