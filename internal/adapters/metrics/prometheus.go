package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tracebeacon"

// Metrics holds the prometheus collectors for the sender and the collector.
type Metrics struct {
	registry *prometheus.Registry

	BatchesTotal  prometheus.Counter
	EventsTotal   *prometheus.CounterVec
	DisabledTotal prometheus.Counter

	ReceivedBatchesTotal *prometheus.CounterVec
	ReceivedEventsTotal  *prometheus.CounterVec
	RejectedTotal        *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sender",
			Name:      "batches_total",
			Help:      "Batches handed to the transport",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sender",
			Name:      "events_total",
			Help:      "Events leaving the sender by outcome",
		}, []string{"outcome"}),
		DisabledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sender",
			Name:      "disabled_total",
			Help:      "Times the sender switched itself off after a transport failure",
		}),
		ReceivedBatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "batches_total",
			Help:      "Batches received by the collector",
		}, []string{"method"}),
		ReceivedEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "events_total",
			Help:      "Events received by the collector by event type",
		}, []string{"type"}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "rejected_total",
			Help:      "Requests the collector could not decode",
		}, []string{"reason"}),
	}
	r.MustRegister(
		m.BatchesTotal, m.EventsTotal, m.DisabledTotal,
		m.ReceivedBatchesTotal, m.ReceivedEventsTotal, m.RejectedTotal,
	)
	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// BatchSent implements ports.SenderMetrics.
func (m *Metrics) BatchSent(events int) {
	m.BatchesTotal.Inc()
	m.EventsTotal.WithLabelValues("sent").Add(float64(events))
}

// EventsDropped implements ports.SenderMetrics.
func (m *Metrics) EventsDropped(events int) {
	m.EventsTotal.WithLabelValues("dropped").Add(float64(events))
}

// SenderDisabled implements ports.SenderMetrics.
func (m *Metrics) SenderDisabled() {
	m.DisabledTotal.Inc()
}

// BatchReceived records a decoded batch and the types of its events.
func (m *Metrics) BatchReceived(method string, types []string) {
	m.ReceivedBatchesTotal.WithLabelValues(method).Inc()
	for _, t := range types {
		if t == "" {
			t = "unknown"
		}
		m.ReceivedEventsTotal.WithLabelValues(t).Inc()
	}
}

// Rejected records a request the collector could not use.
func (m *Metrics) Rejected(reason string) {
	m.RejectedTotal.WithLabelValues(reason).Inc()
}
