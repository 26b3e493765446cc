// Package metrics exposes Prometheus counters for the replication core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// ChangesRequests counts _changes feed assemblies.
	ChangesRequests prometheus.Counter

	// BulkDocsRequests counts _bulk_docs synchronizations.
	BulkDocsRequests prometheus.Counter

	// RevisionsAppended counts revision entries appended to the ledger.
	RevisionsAppended prometheus.Counter

	// BackendErrors counts failed backend calls, labeled by operation.
	BackendErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChangesRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couches_changes_requests_total",
			Help: "Total number of changes feed assemblies",
		}),
		BulkDocsRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couches_bulk_docs_requests_total",
			Help: "Total number of bulk document synchronizations",
		}),
		RevisionsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "couches_ledger_appends_total",
			Help: "Total number of revision entries appended to the ledger",
		}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "couches_backend_errors_total",
			Help: "Total number of failed backend application calls",
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.ChangesRequests, m.BulkDocsRequests, m.RevisionsAppended, m.BackendErrors)
	return m
}

// Handler serves the exposition endpoint for this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
