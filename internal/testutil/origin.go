// Package testutil provides testing utilities for the asset cache.
package testutil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrOffline is returned by the origin transport while the origin is offline.
var ErrOffline = errors.New("network unreachable (origin offline)")

// MockResponse defines the behavior for a mock origin response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable mock asset origin for testing.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	offline  bool
	requests map[string]int
	total    int
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.total++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Host returns host:port of the mock server.
func (m *MockOrigin) Host() string {
	return strings.TrimPrefix(m.server.URL, "http://")
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// SetOffline makes the transport fail every request while offline is true.
func (m *MockOrigin) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Transport returns a RoundTripper reaching the origin, honouring SetOffline.
// Requests addressed to other hosts are also rewritten to the mock server,
// which lets tests stand in for third-party origins.
func (m *MockOrigin) Transport() http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		m.mu.RLock()
		offline := m.offline
		m.mu.RUnlock()
		if offline {
			return nil, fmt.Errorf("dial %s: %w", req.URL.Host, ErrOffline)
		}

		out := req.Clone(req.Context())
		out.URL.Scheme = "http"
		out.URL.Host = m.Host()
		out.Host = ""
		return http.DefaultTransport.RoundTrip(out)
	})
}

// Reset clears all request counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.total = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests that reached path.
func (m *MockOrigin) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests that reached the server.
func (m *MockOrigin) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// NewAssetResponse creates a 200 OK response with the given content type.
func NewAssetResponse(contentType, body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":  contentType,
			"Cache-Control": "public, max-age=0",
		},
	}
}

// NewPartialResponse creates a 206 Partial Content response for the first
// len(body) bytes of a resource of size total.
func NewPartialResponse(contentType, body string, total int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusPartialContent,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":  contentType,
			"Content-Range": "bytes 0-" + strconv.Itoa(len(body)-1) + "/" + strconv.Itoa(total),
			"Accept-Ranges": "bytes",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewGatedHandler returns a handler that blocks until release is closed
// and then serves resp.
func NewGatedHandler(release <-chan struct{}, resp MockResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		<-release
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
