package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studyrag"

// Metrics holds the Prometheus collectors for retrieval.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	searches          *prometheus.CounterVec
	sourceFailures    *prometheus.CounterVec
	searchDuration    prometheus.Histogram
	mergedCandidates  prometheus.Histogram
	invalidCandidates prometheus.Counter
	passagesIngested  prometheus.Counter
	documents         prometheus.Gauge
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by outcome.",
		}, []string{"outcome"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Retrieval source failures by source.",
		}, []string{"source"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		mergedCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merged_candidates",
			Help:      "Candidates returned by a merge.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		invalidCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_candidates_total",
			Help:      "Merges rejected because of an invalid candidate.",
		}),
		passagesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passages_ingested_total",
			Help:      "Passages written by ingestion.",
		}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Documents in the catalog.",
		}),
	}

	reg.MustRegister(
		m.searches,
		m.sourceFailures,
		m.searchDuration,
		m.mergedCandidates,
		m.invalidCandidates,
		m.passagesIngested,
		m.documents,
	)
	return m
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(outcome Outcome, latency time.Duration, merged int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(string(outcome)).Inc()
	m.searchDuration.Observe(latency.Seconds())
	if outcome == OutcomeInvalid {
		m.invalidCandidates.Inc()
	}
	if outcome == OutcomeOK || outcome == OutcomeDegraded {
		m.mergedCandidates.Observe(float64(merged))
	}
}

// SourceFailed records a failed retrieval source.
func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// PassagesIngested adds n ingested passages.
func (m *Metrics) PassagesIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.passagesIngested.Add(float64(n))
}

// SetDocuments sets the catalog document count.
func (m *Metrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.documents.Set(float64(n))
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
