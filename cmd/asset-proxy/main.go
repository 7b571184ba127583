package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/asset-cache/internal/config"
	"github.com/Sternrassler/asset-cache/internal/server"
	"github.com/Sternrassler/asset-cache/pkg/cache"
	"github.com/Sternrassler/asset-cache/pkg/logging"
	"github.com/Sternrassler/asset-cache/pkg/media"
	"github.com/Sternrassler/asset-cache/pkg/origin"
	"github.com/Sternrassler/asset-cache/pkg/strategy"
	"github.com/Sternrassler/asset-cache/pkg/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger(logging.ComponentMain)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Asset proxy failed")
	}
}

// backend bundles the storage with what the readiness probe pings.
type backend struct {
	storage cache.Storage
	pinger  server.Pinger
	close   func() error
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	network, err := newNetwork(cfg, logger)
	if err != nil {
		return err
	}

	strategyOpts, err := strategyOptions(cfg)
	if err != nil {
		return err
	}

	factory := func(version string) (*worker.Worker, error) {
		wc, err := cfg.Worker(version)
		if err != nil {
			return nil, err
		}
		return worker.New(wc, b.storage, network, logging.NewLogger(logging.ComponentWorker), strategyOpts...), nil
	}

	registration := worker.NewRegistration(b.storage, network, logging.NewLogger(logging.ComponentRegistration))

	version := initialVersion(ctx, cfg, logger)
	w, err := factory(version)
	if err != nil {
		return err
	}
	registerCtx, cancel := context.WithTimeout(ctx, time.Minute)
	if err := registration.Register(registerCtx, w); err != nil {
		// Without an active worker requests go straight to the origin.
		logger.Error().Err(err).Str("version", version).Msg("Worker registration failed, running uncontrolled")
	}
	cancel()

	if cfg.VersionFile != "" {
		go registration.Watch(ctx, cfg.UpdateInterval, worker.FileVersionSource(cfg.VersionFile), factory)
	}

	opts, err := serverOptions(cfg, registration, b.pinger)
	if err != nil {
		return err
	}
	srv := server.New(opts)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("origin", cfg.OriginURL).
			Str("storage", cfg.Storage).
			Msg("Starting asset proxy")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	registration.Wait()
	return nil
}

// serverOptions derives the proxy surface from the dispatch settings so the
// proxy accepts exactly the hosts the workers intercept.
func serverOptions(cfg *config.Config, registration *worker.Registration, pinger server.Pinger) (server.Options, error) {
	dc, err := cfg.Dispatch()
	if err != nil {
		return server.Options{}, err
	}
	return server.Options{
		Registration:    registration,
		Origin:          dc.Origin,
		ThirdPartyHosts: dc.ThirdPartyHosts,
		Storage:         pinger,
		Selector:        media.NewSelector(),
		AdaptiveRewrite: cfg.AdaptiveRewrite,
		VideoMarker:     dc.VideoMarker,
	}, nil
}

// newBackend opens the configured cache storage.
func newBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	if cfg.Storage == config.StorageMemory {
		s := cache.NewMemoryStorage()
		return &backend{storage: s, pinger: s, close: func() error { return nil }}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	s := cache.NewRedisStorage(client)
	return &backend{storage: s, pinger: s, close: client.Close}, nil
}

// newNetwork builds the upstream transport, splitting media requests off to
// the bucket when one is configured.
func newNetwork(cfg *config.Config, logger zerolog.Logger) (http.RoundTripper, error) {
	transport := origin.NewTransport(origin.DefaultConfig())
	if cfg.MediaBucket == "" {
		return transport, nil
	}

	client, err := origin.NewMinioClient(cfg.Bucket())
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("endpoint", cfg.S3.Endpoint).
		Str("bucket", cfg.MediaBucket).
		Str("prefix", cfg.MediaPrefix).
		Msg("Serving media from bucket")

	return origin.Split{
		Prefix:  cfg.MediaPrefix,
		Media:   origin.NewBucket(client, cfg.MediaBucket, logging.NewLogger(logging.ComponentBucket)),
		Default: transport,
	}, nil
}

// strategyOptions returns the handler options shared by every worker.
func strategyOptions(cfg *config.Config) ([]strategy.Option, error) {
	var revalidatorOpts []strategy.RevalidatorOption
	if cfg.RevalidateRPS > 0 {
		revalidatorOpts = append(revalidatorOpts,
			strategy.WithLimiter(rate.NewLimiter(rate.Limit(cfg.RevalidateRPS), cfg.RevalidateBurst)))
	}

	opts := []strategy.Option{
		strategy.WithRevalidator(strategy.NewRevalidator(logging.NewLogger(logging.ComponentRevalidator), revalidatorOpts...)),
	}

	if cfg.OfflinePageFile != "" {
		page, err := os.ReadFile(cfg.OfflinePageFile)
		if err != nil {
			return nil, fmt.Errorf("read offline page: %w", err)
		}
		opts = append(opts, strategy.WithOfflinePage(page))
	}
	return opts, nil
}

// initialVersion prefers the version file over CACHE_VERSION.
func initialVersion(ctx context.Context, cfg *config.Config, logger zerolog.Logger) string {
	if cfg.VersionFile == "" {
		return cfg.CacheVersion
	}
	v, err := worker.FileVersionSource(cfg.VersionFile)(ctx)
	if err != nil || v == "" {
		logger.Warn().Err(err).Str("fallback", cfg.CacheVersion).Msg("Version file unreadable")
		return cfg.CacheVersion
	}
	return v
}
