package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/asset-cache/internal/config"
	"github.com/Sternrassler/asset-cache/internal/server"
	"github.com/Sternrassler/asset-cache/pkg/cache"
	"github.com/Sternrassler/asset-cache/pkg/origin"
	"github.com/Sternrassler/asset-cache/pkg/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func loadConfig(t *testing.T, extra map[string]string) *config.Config {
	t.Helper()
	environ := map[string]string{
		"ORIGIN_URL": "http://origin.test",
		"STORAGE":    config.StorageMemory,
	}
	for k, v := range extra {
		environ[k] = v
	}
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)
	return cfg
}

func setupTestRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container in short mode")
	}
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redis container unavailable: %v", err)
	}
	t.Cleanup(func() { redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return "redis://" + host + ":" + port.Port() + "/0"
}

func TestNewBackend_Memory(t *testing.T) {
	cfg := loadConfig(t, nil)

	b, err := newBackend(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.close()

	assert.IsType(t, &cache.MemoryStorage{}, b.storage)
	assert.NoError(t, b.pinger.Ping(context.Background()))
}

func TestNewBackend_Redis(t *testing.T) {
	url := setupTestRedis(t)
	cfg := loadConfig(t, map[string]string{
		"STORAGE":   config.StorageRedis,
		"REDIS_URL": url,
	})

	b, err := newBackend(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.close()

	assert.IsType(t, &cache.RedisStorage{}, b.storage)
	assert.NoError(t, b.pinger.Ping(context.Background()))
}

func TestNewBackend_RedisUnreachable(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"STORAGE":   config.StorageRedis,
		"REDIS_URL": "redis://127.0.0.1:1/0",
	})

	_, err := newBackend(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewNetwork(t *testing.T) {
	t.Run("origin only", func(t *testing.T) {
		network, err := newNetwork(loadConfig(t, nil), zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &http.Transport{}, network)
	})

	t.Run("media bucket", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{
			"MEDIA_BUCKET":  "media",
			"MEDIA_PREFIX":  "/videos/",
			"S3_ENDPOINT":   "localhost:9000",
			"S3_ACCESS_KEY": "minioadmin",
			"S3_SECRET_KEY": "minioadmin",
			"S3_USE_SSL":    "false",
		})

		network, err := newNetwork(cfg, zerolog.Nop())
		require.NoError(t, err)

		split, ok := network.(origin.Split)
		require.True(t, ok, "expected origin.Split, got %T", network)
		assert.Equal(t, "/videos/", split.Prefix)
		assert.IsType(t, &origin.Bucket{}, split.Media)
	})
}

func TestStrategyOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := strategyOptions(loadConfig(t, nil))
		require.NoError(t, err)
		assert.Len(t, opts, 1)
	})

	t.Run("offline page and limiter", func(t *testing.T) {
		page := filepath.Join(t.TempDir(), "offline.html")
		require.NoError(t, os.WriteFile(page, []byte("<h1>offline</h1>"), 0o644))

		opts, err := strategyOptions(loadConfig(t, map[string]string{
			"OFFLINE_PAGE_FILE": page,
			"REVALIDATE_RPS":    "5",
		}))
		require.NoError(t, err)
		assert.Len(t, opts, 2)
	})

	t.Run("missing offline page", func(t *testing.T) {
		_, err := strategyOptions(loadConfig(t, map[string]string{
			"OFFLINE_PAGE_FILE": filepath.Join(t.TempDir(), "missing.html"),
		}))
		assert.Error(t, err)
	})
}

func TestInitialVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("from environment", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{"CACHE_VERSION": "3.0.0"})
		assert.Equal(t, "3.0.0", initialVersion(ctx, cfg, zerolog.Nop()))
	})

	t.Run("from version file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "VERSION")
		require.NoError(t, os.WriteFile(file, []byte("3.1.0\n"), 0o644))

		cfg := loadConfig(t, map[string]string{"VERSION_FILE": file})
		assert.Equal(t, "3.1.0", initialVersion(ctx, cfg, zerolog.Nop()))
	})

	t.Run("unreadable file falls back", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{
			"VERSION_FILE":  filepath.Join(t.TempDir(), "missing"),
			"CACHE_VERSION": "2.4.0",
		})
		assert.Equal(t, "2.4.0", initialVersion(ctx, cfg, zerolog.Nop()))
	})
}

func TestServerOptions(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"ORIGIN_URL":        "https://portfolio.example",
		"THIRD_PARTY_HOSTS": "spline.design,cdn.example",
	})
	storage := cache.NewMemoryStorage()
	registration := worker.NewRegistration(storage, nil, zerolog.Nop())

	opts, err := serverOptions(cfg, registration, storage)
	require.NoError(t, err)
	assert.Same(t, registration, opts.Registration)
	assert.Equal(t, "portfolio.example", opts.Origin.Host)
	assert.Equal(t, []string{"spline.design", "cdn.example"}, opts.ThirdPartyHosts)
	assert.Equal(t, "/videos/", opts.VideoMarker)
	assert.NotNil(t, opts.Selector)

	// The proxy refuses hosts the workers would not intercept.
	srv := server.New(opts)
	req := httptest.NewRequest(http.MethodGet, "http://metadata.internal/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"PORT": "0"})

	// Registration fails fast on the cancelled context and the proxy
	// still shuts down cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.Nop()) }()

	cancel()
	assert.NoError(t, <-done)
}
