package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters for the token lifecycle and the
// document export path.
type Metrics struct {
	registry         *prometheus.Registry
	refreshes        *prometheus.CounterVec
	documentsCreated prometheus.Counter
	exportFailures   prometheus.Counter
	credentialsSwept prometheus.Counter
}

// NewMetrics builds the collector set on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidsage_google_token_refresh_total",
			Help: "Access token refresh attempts by result.",
		}, []string{"result"}),
		documentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidsage_google_documents_created_total",
			Help: "Documents created in Google Docs.",
		}),
		exportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidsage_google_export_failures_total",
			Help: "Failed document export attempts.",
		}),
		credentialsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidsage_google_credentials_swept_total",
			Help: "Unrefreshable expired credentials removed by the sweeper.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshes,
		m.documentsCreated,
		m.exportFailures,
		m.credentialsSwept,
	)
	return m
}

// RecordRefresh counts one refresh attempt.
func (m *Metrics) RecordRefresh(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// RecordDocumentCreated counts one successful export.
func (m *Metrics) RecordDocumentCreated() {
	m.documentsCreated.Inc()
}

// RecordExportFailure counts one failed export.
func (m *Metrics) RecordExportFailure() {
	m.exportFailures.Inc()
}

// RecordSweep counts credentials removed by the cleanup sweep.
func (m *Metrics) RecordSweep(n int64) {
	if n > 0 {
		m.credentialsSwept.Add(float64(n))
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
