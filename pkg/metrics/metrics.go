// Package metrics provides the centralized Prometheus registry reference
// for the Planet API client. The metrics themselves are defined in their
// respective packages (client, limiter, cache) to keep them next to the
// code that drives them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Limiter Metrics (pkg/limiter):
//   - planet_requests_in_flight (Gauge): Requests currently admitted past the limiter
//   - planet_admissions_total (Counter): Requests admitted by the limiter
//   - planet_admission_wait_seconds (Histogram): Time spent waiting for admission
//
// Request Metrics (pkg/client):
//   - planet_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - planet_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - planet_errors_total{class} (Counter): Errors by class
//
// Retry Metrics (pkg/client):
//   - planet_retries_total{error_class} (Counter): Retry attempts by error class
//   - planet_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - planet_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - planet_cache_hits_total (Counter): Responses served from cache
//   - planet_cache_misses_total (Counter): Cache misses
//   - planet_cache_size_bytes (Gauge): Bytes written to the cache
//   - planet_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	rate(planet_cache_hits_total[5m]) /
//	(rate(planet_cache_hits_total[5m]) + rate(planet_cache_misses_total[5m]))
//
//	# Request Error Rate
//	rate(planet_errors_total[5m])
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(planet_request_duration_seconds_bucket[5m]))
//
//	# P95 Admission Wait
//	histogram_quantile(0.95, rate(planet_admission_wait_seconds_bucket[5m]))
