// Package strategy implements the caching strategies of the offline asset
// delivery layer: network-first, cache-first with expiry,
// stale-while-revalidate and cache-on-demand.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/cache"
	"github.com/Sternrassler/asset-cache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for strategy handling.
var (
	strategyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_strategy_requests_total",
		Help: "Total requests handled by strategy and outcome",
	}, []string{"strategy", "outcome"})

	strategyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asset_strategy_duration_seconds",
		Help:    "Time until a response is handed back, by strategy",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"strategy"})
)

// Kind names a caching strategy.
type Kind string

const (
	// NetworkFirst tries the network and falls back to any cached copy.
	NetworkFirst Kind = "network-first"

	// CacheFirst serves fresh cached copies and refreshes them near expiry.
	CacheFirst Kind = "cache-first"

	// StaleWhileRevalidate serves cached copies at once and refreshes in the background.
	StaleWhileRevalidate Kind = "stale-while-revalidate"

	// CacheOnDemand caches full media bodies only after they were requested.
	CacheOnDemand Kind = "cache-on-demand"
)

// Outcomes recorded in asset_strategy_requests_total.
const (
	outcomeNetwork = "network"
	outcomeCache   = "cache"
	outcomeStale   = "stale"
	outcomeOffline = "offline_page"
	outcomeError   = "error"
)

// DefaultRevalidateAfter is the fraction of max-age after which a cache-first
// hit also triggers a background refresh.
const DefaultRevalidateAfter = 0.8

// Assignment is the per-request routing decision: which strategy, which store
// and, where relevant, how long entries stay fresh.
type Assignment struct {
	Kind   Kind
	Store  string
	MaxAge time.Duration

	// RevalidateAfter is the fraction of MaxAge that triggers a soft
	// revalidation for CacheFirst. Zero means DefaultRevalidateAfter.
	RevalidateAfter float64

	// Document marks navigations, which get an offline page instead of an error.
	Document bool
}

func (a Assignment) revalidateThreshold() time.Duration {
	fraction := a.RevalidateAfter
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultRevalidateAfter
	}
	return time.Duration(float64(a.MaxAge) * fraction)
}

// Handler runs strategies against a network transport and a cache storage.
type Handler struct {
	network     http.RoundTripper
	storage     cache.Storage
	revalidator *Revalidator
	now         func() time.Time
	logger      zerolog.Logger
	offlinePage []byte
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces time.Now for age computations and entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithLogger sets the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithRevalidator sets the background job runner.
func WithRevalidator(r *Revalidator) Option {
	return func(h *Handler) { h.revalidator = r }
}

// WithOfflinePage replaces the HTML served to offline navigations.
func WithOfflinePage(page []byte) Option {
	return func(h *Handler) { h.offlinePage = page }
}

// NewHandler creates a strategy handler.
func NewHandler(network http.RoundTripper, storage cache.Storage, opts ...Option) *Handler {
	if network == nil {
		network = http.DefaultTransport
	}
	h := &Handler{
		network:     network,
		storage:     storage,
		now:         time.Now,
		logger:      logging.NewLogger(logging.ComponentStrategy),
		offlinePage: []byte(DefaultOfflinePage),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.revalidator == nil {
		h.revalidator = NewRevalidator(h.logger)
	}
	return h
}

// Revalidator returns the background job runner used by the handler.
func (h *Handler) Revalidator() *Revalidator {
	return h.revalidator
}

// Handle answers req using the strategy named by a.
func (h *Handler) Handle(req *http.Request, a Assignment) (*http.Response, error) {
	start := time.Now()
	defer func() {
		strategyDuration.WithLabelValues(string(a.Kind)).Observe(time.Since(start).Seconds())
	}()

	var (
		resp    *http.Response
		outcome string
		err     error
	)
	switch a.Kind {
	case NetworkFirst:
		resp, outcome, err = h.networkFirst(req, a)
	case CacheFirst:
		resp, outcome, err = h.cacheFirst(req, a)
	case StaleWhileRevalidate:
		resp, outcome, err = h.staleWhileRevalidate(req, a)
	case CacheOnDemand:
		resp, outcome, err = h.cacheOnDemand(req, a)
	default:
		return nil, fmt.Errorf("unknown strategy %q", a.Kind)
	}

	if err != nil {
		outcome = outcomeError
	}
	strategyRequestsTotal.WithLabelValues(string(a.Kind), outcome).Inc()
	return resp, err
}

// openStore opens the assigned store. Storage failures are logged and the
// strategy continues without a store.
func (h *Handler) openStore(ctx context.Context, a Assignment) cache.Store {
	store, err := h.storage.Open(ctx, a.Store)
	if err != nil {
		h.logger.Warn().Err(err).Str("store", a.Store).Msg("Cache open error")
		return nil
	}
	return store
}

// match returns the entry for key or nil on miss and storage errors.
func (h *Handler) match(ctx context.Context, store cache.Store, key cache.Key) *cache.Entry {
	if store == nil {
		return nil
	}
	entry, err := store.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn().Err(err).Str("store", store.Name()).Str("url", key.URL).Msg("Cache match error")
		}
		return nil
	}
	return entry
}

// storeOnComplete arranges for resp to be persisted once fully read.
func (h *Handler) storeOnComplete(req *http.Request, resp *http.Response, store cache.Store, key cache.Key) *http.Response {
	if store == nil {
		return resp
	}
	return cache.StoreOnComplete(context.WithoutCancel(req.Context()), resp, store, key, h.now, h.logger)
}

// refresh refetches req in the background and stores the result when accept
// allows it.
func (h *Handler) refresh(ctx context.Context, req *http.Request, store cache.Store, key cache.Key, accept func(*http.Response) bool) error {
	resp, err := h.network.RoundTrip(req.Clone(ctx))
	if err != nil {
		return fmt.Errorf("refetch %s: %w", key.URL, err)
	}
	defer resp.Body.Close()

	if !accept(resp) {
		h.logger.Debug().
			Str("url", key.URL).
			Int("status_code", resp.StatusCode).
			Msg("Revalidation response not cacheable")
		return nil
	}

	entry, err := cache.ResponseToEntry(resp, h.now())
	if err != nil {
		return err
	}
	if err := store.Put(ctx, key, entry); err != nil {
		if errors.Is(err, cache.ErrStoreDeleted) {
			h.logger.Debug().Str("url", key.URL).Str("store", store.Name()).Msg("Store deleted, revalidation dropped")
			return nil
		}
		return err
	}
	return nil
}
