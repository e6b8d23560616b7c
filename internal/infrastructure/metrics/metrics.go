package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"paymonitor/internal/ports"
)

const defaultNamespace = "paymonitor"

// IngestMetrics exports ingestion outcomes to Prometheus.
type IngestMetrics struct {
	events   *prometheus.CounterVec
	amount   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ ports.IngestMetrics = (*IngestMetrics)(nil)

// New registers the ingestion collectors on reg. Collectors that are already
// registered are reused, so New can be called more than once per registry.
func New(namespace string, reg prometheus.Registerer) (*IngestMetrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_events_total",
		Help:      "Notification events by source, outcome and drop reason.",
	}, []string{"source", "outcome", "reason"}))
	if err != nil {
		return nil, fmt.Errorf("register events counter: %w", err)
	}

	amount, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_amount_total",
		Help:      "Sum of stored payment amounts by source.",
	}, []string{"source"}))
	if err != nil {
		return nil, fmt.Errorf("register amount counter: %w", err)
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Time spent handling one notification event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"}))
	if err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}

	return &IngestMetrics{events: events, amount: amount, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return collector, nil
}

func (m *IngestMetrics) ObserveIngest(obs ports.IngestObservation) {
	source := obs.Source
	if source == "" {
		source = "unknown"
	}

	m.events.WithLabelValues(source, string(obs.Outcome), obs.Reason).Inc()
	m.duration.WithLabelValues(string(obs.Outcome)).Observe(obs.Duration.Seconds())
	if obs.Outcome == ports.IngestStored && obs.Amount.IsPositive() {
		m.amount.WithLabelValues(source).Add(obs.Amount.InexactFloat64())
	}
}

// Nop discards observations.
type Nop struct{}

var _ ports.IngestMetrics = Nop{}

func (Nop) ObserveIngest(ports.IngestObservation) {}
