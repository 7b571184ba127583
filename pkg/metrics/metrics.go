// Package metrics exposes the Prometheus registry the proxy's packages
// register into and the handler that serves it.
//
// Metrics are declared with promauto next to the code that records them
// (cache, strategy, worker, media, server); this package only owns the
// registry and the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer promauto writes to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source the scrape handler reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics, instrumenting the scrape itself.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Catalogue
//
// Cache stores (pkg/cache):
//   - asset_cache_hits_total{store} (Counter)
//   - asset_cache_misses_total{store} (Counter)
//   - asset_cache_writes_total{store} (Counter)
//   - asset_cache_partial_skipped_total{store} (Counter): 206 responses not persisted
//   - asset_cache_errors_total{operation} (Counter)
//   - asset_cache_stores_deleted_total (Counter)
//
// Strategies (pkg/strategy):
//   - asset_strategy_requests_total{strategy, outcome} (Counter)
//   - asset_strategy_duration_seconds{strategy} (Histogram)
//   - asset_revalidations_total{strategy, result} (Counter): detached refreshes
//
// Worker lifecycle (pkg/worker):
//   - asset_worker_state{version} (Gauge): numeric lifecycle state
//   - asset_worker_installs_total{result} (Counter)
//   - asset_worker_activations_total (Counter)
//   - asset_worker_stores_pruned_total (Counter)
//   - asset_precache_retries_total{error_class} (Counter)
//   - asset_worker_commands_total{type} (Counter)
//
// Media (pkg/media):
//   - asset_media_variant_selections_total{variant} (Counter)
//
// Proxy (internal/server):
//   - asset_proxy_requests_total{code, cache} (Counter): cache is HIT or MISS
//   - asset_proxy_request_duration_seconds{cache} (Histogram)
//
// Example queries:
//
//   # Hit ratio of the video store
//   sum(rate(asset_cache_hits_total{store=~"videos-cache.*"}[5m])) /
//   (sum(rate(asset_cache_hits_total{store=~"videos-cache.*"}[5m])) +
//    sum(rate(asset_cache_misses_total{store=~"videos-cache.*"}[5m])))
//
//   # Requests answered without a fresh network response
//   sum(rate(asset_strategy_requests_total{outcome=~"cache|stale|offline_page"}[5m]))
//
//   # P95 proxy latency for cache hits
//   histogram_quantile(0.95, rate(asset_proxy_request_duration_seconds_bucket{cache="HIT"}[5m]))
