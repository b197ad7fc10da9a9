package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the lifecycle engine and worker report into
type Metrics struct {
	Operations    *prometheus.CounterVec
	Compensations *prometheus.CounterVec
	OrphanedAuths prometheus.Counter
	WorkerMsgs    *prometheus.CounterVec
	OpLatencyMS   *prometheus.HistogramVec
}

var registered *Metrics

// Get returns the process-wide metrics set, registering on first use
func Get() *Metrics {
	if registered != nil {
		return registered
	}

	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kioskops",
			Name:      "operations_total",
			Help:      "Lifecycle operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kioskops",
			Name:      "compensations_total",
			Help:      "Payment compensations (voids) by result.",
		}, []string{"result"}),
		OrphanedAuths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kioskops",
			Name:      "orphaned_authorizations_total",
			Help:      "Authorizations whose compensating void failed and need manual reconciliation.",
		}),
		WorkerMsgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kioskops",
			Name:      "worker_messages_total",
			Help:      "Side-effect worker messages by topic and outcome.",
		}, []string{"topic", "outcome"}),
		OpLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kioskops",
			Name:      "operation_duration_ms",
			Help:      "Lifecycle operation latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation"}),
	}
	prometheus.MustRegister(m.Operations, m.Compensations, m.OrphanedAuths, m.WorkerMsgs, m.OpLatencyMS)
	registered = m
	return m
}

// Handler exposes the prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
