package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"ORIGIN_URL": "https://portfolio.example",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "2.4.0", cfg.CacheVersion)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, []string{"spline.design"}, cfg.ThirdPartyHosts)
	assert.Equal(t, []string{"/", "/index.html", "/images/profile.webp"}, cfg.PrecacheAssets)
	assert.True(t, cfg.SkipWaiting)
	assert.Equal(t, 0.8, cfg.RevalidateAfter)
	assert.Equal(t, time.Hour, cfg.UpdateInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/videos/", cfg.MediaPrefix)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestLoadFrom_Overrides(t *testing.T) {
	environ := baseEnv()
	environ["CACHE_VERSION"] = "3.0.0"
	environ["STORAGE"] = "memory"
	environ["THIRD_PARTY_HOSTS"] = "spline.design,cdn.example"
	environ["REVALIDATE_AFTER"] = "0.5"
	environ["MEDIA_BUCKET"] = "media"
	environ["S3_ENDPOINT"] = "minio:9000"
	environ["S3_USE_SSL"] = "false"

	cfg, err := LoadFrom(environ)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, []string{"spline.design", "cdn.example"}, cfg.ThirdPartyHosts)

	b := cfg.Bucket()
	assert.Equal(t, "minio:9000", b.Endpoint)
	assert.Equal(t, "media", b.Bucket)
	assert.False(t, b.UseSSL)

	d, err := cfg.Dispatch()
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", d.Version)
	assert.Equal(t, "portfolio.example", d.Origin.Host)
	assert.Equal(t, 0.5, d.RevalidateAfter)
}

func TestLoadFrom_MissingOrigin(t *testing.T) {
	_, err := LoadFrom(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORIGIN_URL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"relative origin", func(c *Config) { c.OriginURL = "/portfolio" }, "ORIGIN_URL"},
		{"ftp origin", func(c *Config) { c.OriginURL = "ftp://portfolio.example" }, "ORIGIN_URL"},
		{"unknown storage", func(c *Config) { c.Storage = "disk" }, "STORAGE"},
		{"redis without url", func(c *Config) { c.RedisURL = "" }, "REDIS_URL"},
		{"memory without redis url", func(c *Config) { c.Storage = StorageMemory; c.RedisURL = "" }, ""},
		{"threshold zero", func(c *Config) { c.RevalidateAfter = 0 }, "REVALIDATE_AFTER"},
		{"threshold above one", func(c *Config) { c.RevalidateAfter = 1.2 }, "REVALIDATE_AFTER"},
		{"negative rps", func(c *Config) { c.RevalidateRPS = -1 }, "REVALIDATE_RPS"},
		{"rps without burst", func(c *Config) { c.RevalidateRPS = 5; c.RevalidateBurst = 0 }, "REVALIDATE_BURST"},
		{"empty version", func(c *Config) { c.CacheVersion = "" }, "CACHE_VERSION"},
		{"version file without interval", func(c *Config) { c.VersionFile = "/etc/VERSION"; c.UpdateInterval = 0 }, "UPDATE_INTERVAL"},
		{"bucket without endpoint", func(c *Config) { c.MediaBucket = "media" }, "S3_ENDPOINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(baseEnv())
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %s", err, tt.wantErr)
		})
	}
}

func TestWorker(t *testing.T) {
	environ := baseEnv()
	environ["SKIP_WAITING"] = "false"
	environ["PRECACHE_ASSETS"] = "/,/offline.html"
	cfg, err := LoadFrom(environ)
	require.NoError(t, err)

	wc, err := cfg.Worker("9.9.9")
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", wc.Dispatch.Version)
	assert.False(t, wc.SkipWaiting)
	assert.Equal(t, []string{"/", "/offline.html"}, wc.Precache)
}

func TestLogging(t *testing.T) {
	environ := baseEnv()
	environ["LOG_LEVEL"] = "debug"
	environ["LOG_PRETTY"] = "true"
	cfg, err := LoadFrom(environ)
	require.NoError(t, err)

	lc := cfg.Logging()
	assert.Equal(t, "debug", string(lc.Level))
	assert.True(t, lc.Pretty)
	assert.NotNil(t, lc.Output)
}
