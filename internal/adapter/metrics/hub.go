package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics holds Prometheus metrics for the broadcast hub and its streams.
type HubMetrics struct {
	Subscribers        *prometheus.GaugeVec
	BroadcastsTotal    *prometheus.CounterVec
	FramesSent         *prometheus.CounterVec
	SendFailures       *prometheus.CounterVec
	DroppedTasks       prometheus.Counter
	HeartbeatsTotal    prometheus.Counter
	SubscriberRejected *prometheus.CounterVec
}

// NewHubMetrics creates and registers hub metrics on the given registry.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of live subscriber connections, by channel.",
		}, []string{"channel"}),
		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts submitted, by channel.",
		}, []string{"channel"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "frames_sent_total",
			Help:      "Total number of frames delivered to subscribers, by channel.",
		}, []string{"channel"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "send_failures_total",
			Help:      "Total number of failed sends that removed a subscriber, by channel.",
		}, []string{"channel"}),
		DroppedTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_tasks_total",
			Help:      "Total number of fan-out tasks dropped because the dispatch queue was full.",
		}),
		HeartbeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "heartbeats_total",
			Help:      "Total number of heartbeat rounds.",
		}),
		SubscriberRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers_rejected_total",
			Help:      "Total number of rejected subscriptions, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.Subscribers, m.BroadcastsTotal, m.FramesSent, m.SendFailures, m.DroppedTasks, m.HeartbeatsTotal, m.SubscriberRejected)
	return m
}
