package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape pipeline.
type Metrics struct {
	Registry        *prometheus.Registry
	FetchesTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	PropertiesTotal *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetches_total",
			Help: "Total HTTP fetches issued against listing sites.",
		},
		[]string{"phase"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Latency of fetches against listing sites.",
			Buckets: prometheus.DefBuckets,
		},
	)
	properties := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_properties_total",
			Help: "Properties stored, by upsert outcome.",
		},
		[]string{"outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Scrape errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(fetches, fetchDuration, properties, errorsTotal)

	return &Metrics{
		Registry:        registry,
		FetchesTotal:    fetches,
		FetchDuration:   fetchDuration,
		PropertiesTotal: properties,
		ErrorsTotal:     errorsTotal,
	}
}

// All methods are nil-safe so tests can run without a registry.

func (m *Metrics) IncFetch(phase string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(phase).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncProperty(outcome string) {
	if m == nil {
		return
	}
	m.PropertiesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
