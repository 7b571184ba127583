// Package config loads the proxy configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/dispatch"
	"github.com/Sternrassler/asset-cache/pkg/logging"
	"github.com/Sternrassler/asset-cache/pkg/origin"
	"github.com/Sternrassler/asset-cache/pkg/worker"
	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	OriginURL       string   `env:"ORIGIN_URL,required"`
	ThirdPartyHosts []string `env:"THIRD_PARTY_HOSTS" envSeparator:"," envDefault:"spline.design"`

	CacheVersion   string        `env:"CACHE_VERSION" envDefault:"2.4.0"`
	VersionFile    string        `env:"VERSION_FILE"`
	UpdateInterval time.Duration `env:"UPDATE_INTERVAL" envDefault:"1h"`
	PrecacheAssets []string      `env:"PRECACHE_ASSETS" envSeparator:"," envDefault:"/,/index.html,/images/profile.webp"`
	SkipWaiting    bool          `env:"SKIP_WAITING" envDefault:"true"`

	Storage  string `env:"STORAGE" envDefault:"redis"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	RevalidateAfter float64 `env:"REVALIDATE_AFTER" envDefault:"0.8"`
	RevalidateRPS   float64 `env:"REVALIDATE_RPS" envDefault:"0"`
	RevalidateBurst int     `env:"REVALIDATE_BURST" envDefault:"10"`

	OfflinePageFile string `env:"OFFLINE_PAGE_FILE"`
	AdaptiveRewrite bool   `env:"ADAPTIVE_REWRITE" envDefault:"false"`

	MediaBucket string   `env:"MEDIA_BUCKET"`
	MediaPrefix string   `env:"MEDIA_PREFIX" envDefault:"/videos/"`
	S3          S3Config `envPrefix:"S3_"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// S3Config holds the media bucket connection.
type S3Config struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
}

// Load reads and validates configuration from the process environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads and validates configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects incomplete or contradictory settings.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Origin(); err != nil {
		errs = append(errs, err)
	}
	if c.CacheVersion == "" {
		errs = append(errs, errors.New("CACHE_VERSION must not be empty"))
	}

	switch c.Storage {
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis storage"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StorageRedis, StorageMemory, c.Storage))
	}

	if c.RevalidateAfter <= 0 || c.RevalidateAfter > 1 {
		errs = append(errs, fmt.Errorf("REVALIDATE_AFTER must be in (0, 1], got %v", c.RevalidateAfter))
	}
	if c.RevalidateRPS < 0 {
		errs = append(errs, fmt.Errorf("REVALIDATE_RPS must not be negative, got %v", c.RevalidateRPS))
	}
	if c.RevalidateRPS > 0 && c.RevalidateBurst < 1 {
		errs = append(errs, errors.New("REVALIDATE_BURST must be at least 1"))
	}
	if c.VersionFile != "" && c.UpdateInterval <= 0 {
		errs = append(errs, errors.New("UPDATE_INTERVAL must be positive when VERSION_FILE is set"))
	}
	if c.MediaBucket != "" && c.S3.Endpoint == "" {
		errs = append(errs, errors.New("S3_ENDPOINT is required when MEDIA_BUCKET is set"))
	}

	return errors.Join(errs...)
}

// Origin returns the parsed origin URL.
func (c *Config) Origin() (*url.URL, error) {
	u, err := url.Parse(c.OriginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ORIGIN_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("ORIGIN_URL must be an absolute http(s) URL, got %q", c.OriginURL)
	}
	return u, nil
}

// Worker builds the worker configuration for version.
func (c *Config) Worker(version string) (worker.Config, error) {
	u, err := c.Origin()
	if err != nil {
		return worker.Config{}, err
	}

	wc := worker.DefaultConfig(u)
	wc.Dispatch.Version = version
	wc.Dispatch.ThirdPartyHosts = append([]string(nil), c.ThirdPartyHosts...)
	wc.Dispatch.RevalidateAfter = c.RevalidateAfter
	wc.Precache = append([]string(nil), c.PrecacheAssets...)
	wc.SkipWaiting = c.SkipWaiting
	return wc, nil
}

// Dispatch returns the dispatcher defaults for the configured version.
func (c *Config) Dispatch() (dispatch.Config, error) {
	wc, err := c.Worker(c.CacheVersion)
	return wc.Dispatch, err
}

// Bucket returns the media bucket settings.
func (c *Config) Bucket() origin.BucketConfig {
	return origin.BucketConfig{
		Endpoint:  c.S3.Endpoint,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		Region:    c.S3.Region,
		Bucket:    c.MediaBucket,
		UseSSL:    c.S3.UseSSL,
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.LogLevel)
	lc.Pretty = c.LogPretty
	return lc
}
