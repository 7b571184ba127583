// Package worker manages the lifecycle of cache versions: installing a
// worker precaches critical assets, activating it deletes the stores of
// every other version, and the Registration routes requests through the
// active worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/cache"
	"github.com/Sternrassler/asset-cache/pkg/dispatch"
	"github.com/Sternrassler/asset-cache/pkg/strategy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultPrecache is the critical asset set stored on install.
var DefaultPrecache = []string{"/", "/index.html", "/images/profile.webp"}

// DefaultPrecacheConcurrency bounds concurrent precache fetches.
const DefaultPrecacheConcurrency = 4

// Config holds worker configuration.
type Config struct {
	Dispatch dispatch.Config

	// Precache lists origin-relative paths (or absolute URLs) stored in the
	// app shell store on install.
	Precache []string

	// SkipWaiting makes an installed worker take over immediately instead
	// of waiting for a SKIP_WAITING command.
	SkipWaiting bool

	PrecacheConcurrency int
	Retry               RetryConfig
}

// DefaultConfig returns the default worker configuration for origin.
func DefaultConfig(origin *url.URL) Config {
	return Config{
		Dispatch:            dispatch.DefaultConfig(origin),
		Precache:            append([]string(nil), DefaultPrecache...),
		SkipWaiting:         true,
		PrecacheConcurrency: DefaultPrecacheConcurrency,
		Retry:               DefaultRetryConfig(),
	}
}

// Worker is one cache version. It implements http.RoundTripper.
type Worker struct {
	id         uuid.UUID
	cfg        Config
	dispatcher *dispatch.Dispatcher
	handler    *strategy.Handler
	storage    cache.Storage
	network    http.RoundTripper
	logger     zerolog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	state State
}

// New creates a worker. Strategy options are passed to its handler.
func New(cfg Config, storage cache.Storage, network http.RoundTripper, logger zerolog.Logger, opts ...strategy.Option) *Worker {
	if network == nil {
		network = http.DefaultTransport
	}
	if cfg.PrecacheConcurrency <= 0 {
		cfg.PrecacheConcurrency = DefaultPrecacheConcurrency
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	id := uuid.New()
	d := dispatch.New(cfg.Dispatch)
	cfg.Dispatch = d.Config()

	logger = logger.With().
		Str("worker_id", id.String()).
		Str("version", cfg.Dispatch.Version).
		Logger()

	handlerOpts := append([]strategy.Option{strategy.WithLogger(logger)}, opts...)

	return &Worker{
		id:         id,
		cfg:        cfg,
		dispatcher: d,
		handler:    strategy.NewHandler(network, storage, handlerOpts...),
		storage:    storage,
		network:    network,
		logger:     logger,
		now:        time.Now,
	}
}

// ID returns the unique worker ID.
func (w *Worker) ID() uuid.UUID { return w.id }

// Version returns the cache version of the worker.
func (w *Worker) Version() string { return w.cfg.Dispatch.Version }

// Stores returns the store names the worker owns.
func (w *Worker) Stores() dispatch.StoreSet { return w.dispatcher.Stores() }

// Dispatcher returns the request classifier.
func (w *Worker) Dispatcher() *dispatch.Dispatcher { return w.dispatcher }

// Handler returns the strategy handler.
func (w *Worker) Handler() *strategy.Handler { return w.handler }

// SkipWaiting reports whether the worker takes over right after install.
func (w *Worker) SkipWaiting() bool { return w.cfg.SkipWaiting }

// State returns the lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()

	workerState.WithLabelValues(w.Version()).Set(float64(s))
	w.logger.Debug().Str("state", s.String()).Msg("Worker state changed")
}

// Install precaches the critical assets into the app shell store. Install is
// all-or-nothing: nothing is stored unless every asset fetched successfully.
// On failure the worker becomes redundant.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)
	w.logger.Info().Int("assets", len(w.cfg.Precache)).Msg("Installing worker")

	if err := w.precache(ctx); err != nil {
		w.setState(StateRedundant)
		workerInstallsTotal.WithLabelValues("failure").Inc()
		w.logger.Error().Err(err).Msg("Worker install failed")
		return fmt.Errorf("install worker %s: %w", w.Version(), err)
	}

	w.setState(StateInstalled)
	workerInstallsTotal.WithLabelValues("success").Inc()
	w.logger.Info().Msg("Worker installed")
	return nil
}

type precached struct {
	key   cache.Key
	entry *cache.Entry
}

func (w *Worker) precache(ctx context.Context) error {
	if len(w.cfg.Precache) == 0 {
		return nil
	}

	results := make([]precached, len(w.cfg.Precache))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.PrecacheConcurrency)

	for i, asset := range w.cfg.Precache {
		g.Go(func() error {
			req, err := w.precacheRequest(gctx, asset)
			if err != nil {
				return err
			}
			entry, err := w.fetch(gctx, req)
			if err != nil {
				return err
			}
			results[i] = precached{key: cache.NewKey(req), entry: entry}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	store, err := w.storage.Open(ctx, w.Stores().AppShell)
	if err != nil {
		return fmt.Errorf("open app shell store: %w", err)
	}
	for _, r := range results {
		if err := store.Put(ctx, r.key, r.entry); err != nil {
			return fmt.Errorf("store %s: %w", r.key.URL, err)
		}
	}
	return nil
}

func (w *Worker) precacheRequest(ctx context.Context, asset string) (*http.Request, error) {
	ref, err := url.Parse(asset)
	if err != nil {
		return nil, fmt.Errorf("parse precache asset %q: %w", asset, err)
	}
	if !ref.IsAbs() {
		if w.cfg.Dispatch.Origin == nil {
			return nil, fmt.Errorf("precache %q: %w", asset, ErrNoOrigin)
		}
		ref = w.cfg.Dispatch.Origin.ResolveReference(ref)
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
}

// fetch retrieves one precache asset, retrying network errors and 5xx.
func (w *Worker) fetch(ctx context.Context, req *http.Request) (*cache.Entry, error) {
	var entry *cache.Entry
	err := retryWithBackoff(ctx, w.cfg.Retry, w.logger, req.URL.String(), func() error {
		resp, err := w.network.RoundTrip(req)
		if err != nil {
			return &PrecacheError{URL: req.URL.String(), Class: ErrorClassNetwork, Err: err}
		}
		defer resp.Body.Close()

		if !cache.IsCacheable(resp) {
			return &PrecacheError{URL: req.URL.String(), StatusCode: resp.StatusCode, Class: classifyStatus(resp.StatusCode)}
		}

		entry, err = cache.ResponseToEntry(resp, w.now())
		if err != nil {
			return &PrecacheError{URL: req.URL.String(), Class: ErrorClassNetwork, Err: err}
		}
		return nil
	})
	return entry, err
}

// Activate deletes every store that does not belong to the worker's version
// and opens all of its own stores.
func (w *Worker) Activate(ctx context.Context) error {
	w.setState(StateActivating)

	names, err := w.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}

	stores := w.Stores()
	for _, name := range names {
		if stores.Contains(name) {
			continue
		}
		deleted, err := w.storage.Delete(ctx, name)
		if err != nil {
			return fmt.Errorf("delete store %s: %w", name, err)
		}
		if deleted {
			storesPrunedTotal.Inc()
			w.logger.Info().Str("store", name).Msg("Deleted old cache store")
		}
	}

	for _, name := range stores.All() {
		if _, err := w.storage.Open(ctx, name); err != nil {
			return fmt.Errorf("open store %s: %w", name, err)
		}
	}

	w.setState(StateActivated)
	w.logger.Info().Msg("Worker activated")
	return nil
}

// RoundTrip implements http.RoundTripper. Requests the dispatcher does not
// intercept go straight to the network.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	a, ok := w.dispatcher.Classify(req)
	if !ok {
		return w.network.RoundTrip(req)
	}

	resp, err := w.handler.Handle(req, a)
	if err != nil {
		var fetchErr *strategy.FetchError
		if !errors.As(err, &fetchErr) {
			w.logger.Error().Err(err).Str("url", req.URL.String()).Msg("Strategy failed")
		}
		return nil, err
	}
	return resp, nil
}

// Wait blocks until background revalidations of the worker have finished.
func (w *Worker) Wait() {
	w.handler.Revalidator().Wait()
}
