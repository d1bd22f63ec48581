// Package metrics provides the centralized Prometheus metrics registry for
// the harvester. All metrics are defined in their respective packages
// (client, fetcher, ratelimit, retry) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ghfetch_requests_total{status} (Counter): GraphQL requests by HTTP status
//   - ghfetch_request_duration_seconds (Histogram): Request duration
//   - ghfetch_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, malformed)
//
// Fetch Metrics (pkg/fetcher):
//   - ghfetch_pages_total (Counter): Search pages fetched
//   - ghfetch_records_total (Counter): Repository records emitted
//   - ghfetch_page_duration_seconds (Histogram): Duration of one page fetch
//   - ghfetch_rate_limit_remaining (Gauge): Points remaining as of the last page
//   - ghfetch_rate_limit_cost_total (Counter): Cumulative points charged
//
// Shared Quota Metrics (pkg/ratelimit):
//   - ghfetch_shared_quota_remaining (Gauge): Points remaining in the shared store
//   - ghfetch_quota_blocks_total (Counter): Requests blocked at the critical threshold
//   - ghfetch_quota_throttles_total (Counter): Requests throttled at the warning threshold
//
// Retry Metrics (pkg/retry):
//   - ghfetch_retries_total{error_class} (Counter): Retry attempts by error class
//   - ghfetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ghfetch_retry_exhausted_total{error_class} (Counter): Operations that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Points burned per hour
//   increase(ghfetch_rate_limit_cost_total[1h])
//
//   # Records per second
//   rate(ghfetch_records_total[5m])
//
//   # Budget headroom
//   ghfetch_rate_limit_remaining < 100
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(ghfetch_page_duration_seconds_bucket[5m]))
//
//   # Error rate by class
//   rate(ghfetch_errors_total[5m])
