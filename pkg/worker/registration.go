package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// Registration controls which worker answers requests. It holds the active
// worker and at most one waiting worker. It implements http.RoundTripper.
type Registration struct {
	storage cache.Storage
	network http.RoundTripper
	logger  zerolog.Logger

	active atomic.Pointer[Worker]

	mu      sync.Mutex // serializes lifecycle transitions
	waiting *Worker
}

// NewRegistration creates an empty registration. Until a worker is
// activated every request goes straight to network.
func NewRegistration(storage cache.Storage, network http.RoundTripper, logger zerolog.Logger) *Registration {
	if network == nil {
		network = http.DefaultTransport
	}
	return &Registration{
		storage: storage,
		network: network,
		logger:  logger,
	}
}

// Active returns the controlling worker, or nil.
func (r *Registration) Active() *Worker {
	return r.active.Load()
}

// Waiting returns the installed worker waiting for activation, or nil.
func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Register installs w. A worker that fails to install is discarded and the
// active worker keeps control. An installed worker is activated at once when
// nothing is active yet or when it skips waiting; otherwise it replaces any
// previously waiting worker.
func (r *Registration) Register(ctx context.Context, w *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := w.Install(ctx); err != nil {
		return err
	}

	if r.active.Load() == nil || w.SkipWaiting() {
		return r.activate(ctx, w)
	}

	if r.waiting != nil && r.waiting != w {
		r.waiting.setState(StateRedundant)
	}
	r.waiting = w
	r.logger.Info().
		Str("version", w.Version()).
		Str("worker_id", w.ID().String()).
		Msg("Worker installed, waiting for activation")
	return nil
}

// activate runs activation and claims control. r.mu must be held.
func (r *Registration) activate(ctx context.Context, w *Worker) error {
	if err := w.Activate(ctx); err != nil {
		w.setState(StateRedundant)
		return fmt.Errorf("activate worker %s: %w", w.Version(), err)
	}

	previous := r.active.Swap(w)
	if previous != nil && previous != w {
		previous.setState(StateRedundant)
	}
	if r.waiting == w {
		r.waiting = nil
	}

	workerActivationsTotal.Inc()
	r.logger.Info().
		Str("version", w.Version()).
		Str("worker_id", w.ID().String()).
		Msg("Worker claimed control")
	return nil
}

// Handle executes a control command. Commands carry no reply.
func (r *Registration) Handle(ctx context.Context, cmd Command) error {
	switch cmd.(type) {
	case SkipWaiting:
		commandsTotal.WithLabelValues(TypeSkipWaiting).Inc()
		return r.skipWaiting(ctx)
	case ClearCache:
		commandsTotal.WithLabelValues(TypeClearCache).Inc()
		return r.clearCache(ctx)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (r *Registration) skipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiting == nil {
		r.logger.Debug().Msg("Skip waiting without a waiting worker")
		return nil
	}
	return r.activate(ctx, r.waiting)
}

func (r *Registration) clearCache(ctx context.Context) error {
	deleted, err := cache.DeleteAll(ctx, r.storage)
	if err != nil {
		return fmt.Errorf("clear caches: %w", err)
	}
	r.logger.Info().Int("stores", deleted).Msg("All caches cleared")
	return nil
}

// RoundTrip implements http.RoundTripper through the active worker.
func (r *Registration) RoundTrip(req *http.Request) (*http.Response, error) {
	if w := r.active.Load(); w != nil {
		return w.RoundTrip(req)
	}
	return r.network.RoundTrip(req)
}

// Wait blocks until background revalidations of the active worker have
// finished.
func (r *Registration) Wait() {
	if w := r.active.Load(); w != nil {
		w.Wait()
	}
}

// WorkerStatus describes one worker.
type WorkerStatus struct {
	ID      string   `json:"id"`
	Version string   `json:"version"`
	State   string   `json:"state"`
	Stores  []string `json:"stores"`
}

// Status describes the registration.
type Status struct {
	Active  *WorkerStatus `json:"active,omitempty"`
	Waiting *WorkerStatus `json:"waiting,omitempty"`
}

func statusOf(w *Worker) *WorkerStatus {
	if w == nil {
		return nil
	}
	return &WorkerStatus{
		ID:      w.ID().String(),
		Version: w.Version(),
		State:   w.State().String(),
		Stores:  w.Stores().All(),
	}
}

// Status returns a snapshot of the active and waiting workers.
func (r *Registration) Status() Status {
	return Status{
		Active:  statusOf(r.Active()),
		Waiting: statusOf(r.Waiting()),
	}
}

// VersionSource reports the cache version currently published.
type VersionSource func(ctx context.Context) (string, error)

// WorkerFactory builds a worker for a cache version.
type WorkerFactory func(version string) (*Worker, error)

// FileVersionSource reads the version from a file.
func FileVersionSource(path string) VersionSource {
	return func(context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read version file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}

// Update registers a new worker when source reports a version that is
// neither active nor waiting. It reports whether a worker was registered.
func (r *Registration) Update(ctx context.Context, source VersionSource, factory WorkerFactory) (bool, error) {
	version, err := source(ctx)
	if err != nil {
		return false, err
	}
	if version == "" {
		return false, nil
	}
	if w := r.Active(); w != nil && w.Version() == version {
		return false, nil
	}
	if w := r.Waiting(); w != nil && w.Version() == version {
		return false, nil
	}

	w, err := factory(version)
	if err != nil {
		return false, fmt.Errorf("build worker %s: %w", version, err)
	}
	if err := r.Register(ctx, w); err != nil {
		return false, err
	}
	return true, nil
}

// Watch calls Update every interval until ctx is done.
func (r *Registration) Watch(ctx context.Context, interval time.Duration, source VersionSource, factory WorkerFactory) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := r.Update(ctx, source, factory)
			if err != nil {
				r.logger.Warn().Err(err).Msg("Worker update check failed")
				continue
			}
			if updated {
				r.logger.Info().Msg("Worker updated")
			}
		}
	}
}
