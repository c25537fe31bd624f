// Package metrics provides Prometheus metrics for the MediSearch service.
// HTTP traffic:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Domain:
//   - search_requests_total: Counter of search evaluations by outcome
//   - search_stale_results_total: Counter of superseded results that were dropped
//   - catalog_query_duration_seconds: Histogram of catalogue queries by field
//   - session_phase: Gauge, 0 unknown, 1 anonymous, 2 authenticated
//   - auth_attempts_total: Counter of sign-in and sign-up submissions
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Search evaluations by resulting status",
		},
		[]string{"status"},
	)

	SearchStaleResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_stale_results_total",
			Help: "Search results dropped because a newer search was issued",
		},
	)

	SearchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_failures_total",
			Help: "Search evaluations whose catalogue queries failed and were reported as misses",
		},
	)

	CatalogQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Catalogue range query latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"field"},
	)

	SessionPhase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_phase",
			Help: "Session phase: 0 unknown, 1 anonymous, 2 authenticated",
		},
	)

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Sign-in and sign-up submissions by outcome",
		},
		[]string{"mode", "outcome"},
	)

	CatalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_records",
			Help: "Records in the in-memory catalogue",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchStaleResultsTotal)
	prometheus.MustRegister(SearchFailuresTotal)
	prometheus.MustRegister(CatalogQueryDuration)
	prometheus.MustRegister(SessionPhase)
	prometheus.MustRegister(AuthAttemptsTotal)
	prometheus.MustRegister(CatalogRecords)
}
