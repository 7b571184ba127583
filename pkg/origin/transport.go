// Package origin provides the upstream transports the cache layer treats as
// "the network": a tuned HTTP transport to the asset origin, a MinIO/S3 bucket
// transport for media, and a path-based split between the two.
package origin

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// Config holds HTTP transport timeouts.
type Config struct {
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConnsPerHost   int
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		DialTimeout:           5 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   16,
	}
}

// NewTransport creates the HTTP transport to the origin. The timeouts bound
// how long a hung upstream can hold a request.
func NewTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Split sends requests whose path starts with Prefix to Media and all
// others to Default.
type Split struct {
	Prefix  string
	Media   http.RoundTripper
	Default http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (s Split) RoundTrip(req *http.Request) (*http.Response, error) {
	if s.Media != nil && s.Prefix != "" && strings.HasPrefix(req.URL.Path, s.Prefix) {
		return s.Media.RoundTrip(req)
	}
	if s.Default == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return s.Default.RoundTrip(req)
}
