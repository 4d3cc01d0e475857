// Package metrics exposes Prometheus collectors for the pricing engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeRetryable = "retryable"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics holds the engine's collectors on a private registry. All methods
// are safe to call on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	fetches         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parts",
				Subsystem: "scraper",
				Name:      "fetch_attempts_total",
				Help:      "Marketplace fetch attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parts",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Scrape cache lookups by result",
			},
			[]string{"result"},
		),
		resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parts",
				Subsystem: "pricing",
				Name:      "resolutions_total",
				Help:      "Priced queries by outcome",
			},
			[]string{"outcome"},
		),
		resolveDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "parts",
				Subsystem: "pricing",
				Name:      "resolve_duration_seconds",
				Help:      "End-to-end duration of resolve and price",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parts",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Inbound HTTP requests by route pattern and status class",
			},
			[]string{"route", "class"},
		),
	}
}

// FetchAttempt counts one fetch attempt against source.
func (m *Metrics) FetchAttempt(source, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
}

// CacheLookup counts one scrape cache lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Resolution records a finished query.
func (m *Metrics) Resolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.resolveDuration.Observe(d.Seconds())
}

// HTTPRequest counts an inbound request by status class ("2xx", "4xx", ...).
func (m *Metrics) HTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	class := []string{"1xx", "2xx", "3xx", "4xx", "5xx"}
	idx := status/100 - 1
	if idx < 0 || idx >= len(class) {
		idx = 4
	}
	m.httpRequests.WithLabelValues(route, class[idx]).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
