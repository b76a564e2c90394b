// Package metrics exposes inventory write outcomes in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inventory"

// Recorder counts holdings writes and rollback failures on a private registry.
type Recorder struct {
	registry         *prometheus.Registry
	holdingsWrites   *prometheus.CounterVec
	rollbackFailures prometheus.Counter
}

// NewRecorder constructs a Recorder with its own registry. Go runtime and
// process collectors are registered alongside the inventory counters.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	recorder := &Recorder{
		registry: registry,
		holdingsWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holdings",
			Name:      "writes_total",
			Help:      "Holdings write attempts partitioned by path and outcome.",
		}, []string{"path", "outcome"}),
		rollbackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holdings",
			Name:      "rollback_failures_total",
			Help:      "Transactions that could not be rolled back after a failed holdings update.",
		}),
	}
	registry.MustRegister(
		recorder.holdingsWrites,
		recorder.rollbackFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return recorder
}

// ObserveHoldingsWrite counts one holdings write attempt.
func (r *Recorder) ObserveHoldingsWrite(path, outcome string) {
	if r == nil {
		return
	}
	r.holdingsWrites.WithLabelValues(path, outcome).Inc()
}

// ObserveRollbackFailure counts a rollback that failed.
func (r *Recorder) ObserveRollbackFailure() {
	if r == nil {
		return
	}
	r.rollbackFailures.Inc()
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
