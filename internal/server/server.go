// Package server exposes the cache layer as an HTTP caching proxy with a
// small control surface.
package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/dispatch"
	"github.com/Sternrassler/asset-cache/pkg/logging"
	"github.com/Sternrassler/asset-cache/pkg/media"
	"github.com/Sternrassler/asset-cache/pkg/metrics"
	"github.com/Sternrassler/asset-cache/pkg/worker"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_proxy_requests_total",
		Help: "Proxied requests by status code and cache result",
	}, []string{"code", "cache"})

	proxyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asset_proxy_request_duration_seconds",
		Help:    "Proxied request duration by cache result",
		Buckets: prometheus.DefBuckets,
	}, []string{"cache"})
)

// Pinger reports whether a storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// Registration answers proxied requests and control commands.
	Registration *worker.Registration

	// Origin resolves origin-form request paths.
	Origin *url.URL

	// ThirdPartyHosts may be named by absolute-form request targets besides
	// the origin. Any other host is refused.
	ThirdPartyHosts []string

	// Storage is pinged by the readiness probe. Nil means always ready.
	Storage Pinger

	// Selector backs the media endpoint and the optional rewrite.
	Selector *media.Selector

	// AdaptiveRewrite rewrites canonical video requests to the variant
	// chosen for the caller.
	AdaptiveRewrite bool

	// VideoMarker is the path marker of video requests.
	VideoMarker string

	Logger *zerolog.Logger
}

// Server is the HTTP surface of the proxy.
type Server struct {
	Router *chi.Mux

	registration *worker.Registration
	origin       *url.URL
	thirdParty   []string
	storage      Pinger
	selector     *media.Selector
	logger       zerolog.Logger
}

// New creates the server and registers its routes.
func New(opts Options) *Server {
	logger := logging.NewLogger(logging.ComponentServer)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Selector == nil {
		opts.Selector = media.NewSelector()
	}
	if opts.VideoMarker == "" {
		opts.VideoMarker = dispatch.DefaultVideoMarker
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:       r,
		registration: opts.Registration,
		origin:       opts.Origin,
		thirdParty:   opts.ThirdPartyHosts,
		storage:      opts.Storage,
		selector:     opts.Selector,
		logger:       logger,
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/_worker", func(wr chi.Router) {
		wr.Post("/messages", s.handleMessage)
		wr.Get("/status", s.handleStatus)
	})
	r.Get("/_media/source", s.handleMediaSource)

	var proxy http.Handler = http.HandlerFunc(s.handleProxy)
	if opts.AdaptiveRewrite {
		proxy = media.RewriteMiddleware(opts.Selector, opts.VideoMarker, logger)(proxy)
	}
	r.Handle("/*", proxy)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Storage not ready")
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if s.registration == nil || s.registration.Active() == nil {
		http.Error(w, "no active worker", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// requestLogger logs one line per request with zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Str("cache", ww.Header().Get("X-Cache")).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
