package app

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "taskflow"

// Metrics counts mutations by outcome and times their transactions.
type Metrics struct {
	mutations      *prometheus.CounterVec
	conflicts      prometheus.Counter
	txDuration     *prometheus.HistogramVec
	effectsDropped *prometheus.CounterVec
	effectsFailed  *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mutations_total",
			Help:      "Mutations handled by the service, by operation and result code.",
		}, []string{"operation", "code"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mutation_conflicts_total",
			Help:      "Mutations rejected because the ordering changed concurrently.",
		}),
		txDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "mutation_tx_duration_ms",
			Help:      "Time spent inside the mutation transaction.",
			Buckets:   []float64{1, 3, 5, 10, 25, 50, 100, 250, 1000, 5000},
		}, []string{"operation"}),
		effectsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "effects_dropped_total",
			Help:      "Post-commit effects dropped because the queue was full or closed.",
		}, []string{"effect"}),
		effectsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "effects_failed_total",
			Help:      "Post-commit effects that failed after retries.",
		}, []string{"effect"}),
	}
}

func (m *Metrics) observeMutation(operation string, took time.Duration, err error) {
	if m == nil {
		return
	}
	code := "OK"
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	m.mutations.WithLabelValues(operation, code).Inc()
	if code == CodeConflict {
		m.conflicts.Inc()
	}
	m.txDuration.WithLabelValues(operation).Observe(float64(took.Milliseconds()))
}

func (m *Metrics) effectDropped(name string) {
	if m == nil {
		return
	}
	m.effectsDropped.WithLabelValues(name).Inc()
}

func (m *Metrics) effectFailed(name string) {
	if m == nil {
		return
	}
	m.effectsFailed.WithLabelValues(name).Inc()
}
