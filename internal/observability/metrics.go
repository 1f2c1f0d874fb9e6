package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one process. The CLI writes a
// snapshot to a textfile at exit; nothing is served over HTTP.
type Metrics struct {
	// LLMRequestsTotal counts completion calls by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed completion calls by operation, model and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes completion latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// SearchesTotal counts provider searches by provider and outcome.
	SearchesTotal *prometheus.CounterVec

	// PapersReturned observes hits kept per search after year filtering.
	PapersReturned *prometheus.HistogramVec

	// PapersFiltered counts hits dropped by the year-range post-filter.
	PapersFiltered prometheus.Counter

	// FetchesTotal counts full-text fetch attempts by outcome.
	FetchesTotal *prometheus.CounterVec

	// ColumnsExtracted counts survey table cells by outcome.
	ColumnsExtracted *prometheus.CounterVec

	// ExportItemsTotal counts reference-manager uploads by outcome.
	ExportItemsTotal *prometheus.CounterVec
}

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// NewMetrics registers all collectors on reg under namespace. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LLMRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of completion requests",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed completion requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of completion requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"operation", "model"}),
		SearchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of provider searches",
		}, []string{"provider", "outcome"}),
		PapersReturned: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers kept per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"provider"}),
		PapersFiltered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_filtered_total",
			Help:      "Total number of hits dropped by the year filter",
		}),
		FetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulltext_fetches_total",
			Help:      "Total number of full-text fetch attempts",
		}, []string{"outcome"}),
		ColumnsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_cells_total",
			Help:      "Total number of survey table cells attempted",
		}, []string{"outcome"}),
		ExportItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_items_total",
			Help:      "Total number of reference-manager item uploads",
		}, []string{"outcome"}),
	}
}

// The Record methods are nil-safe so components can run without metrics.

// RecordLLMRequest records a successful completion call.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed completion call.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordSearch records a provider search and the number of papers kept.
func (m *Metrics) RecordSearch(provider, outcome string, kept, filtered int) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(provider, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.PapersReturned.WithLabelValues(provider).Observe(float64(kept))
	}
	m.PapersFiltered.Add(float64(filtered))
}

// RecordFetch records a full-text fetch outcome.
func (m *Metrics) RecordFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordColumn records one survey table cell outcome.
func (m *Metrics) RecordColumn(outcome string) {
	if m == nil {
		return
	}
	m.ColumnsExtracted.WithLabelValues(outcome).Inc()
}

// RecordExportItem records one reference-manager upload outcome.
func (m *Metrics) RecordExportItem(outcome string) {
	if m == nil {
		return
	}
	m.ExportItemsTotal.WithLabelValues(outcome).Inc()
}
