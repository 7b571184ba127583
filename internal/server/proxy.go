package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/cache"
	"github.com/Sternrassler/asset-cache/pkg/dispatch"
	"github.com/Sternrassler/asset-cache/pkg/strategy"
)

// errForbiddenHost is returned for absolute-form targets outside the origin
// and the third-party hosts.
var errForbiddenHost = errors.New("target host not allowed")

// hopHeaders are removed when forwarding requests and responses.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// handleProxy sends the request through the registration and copies the
// response back. Cached full bodies answer Range requests locally.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	out, err := s.outboundRequest(r)
	if errors.Is(err, errForbiddenHost) {
		s.recordProxy(http.StatusForbidden, "", start)
		s.logger.Warn().Str("host", r.URL.Host).Msg("Refused request for foreign host")
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.registration.RoundTrip(out)
	if err != nil {
		s.recordProxy(http.StatusBadGateway, "", start)
		if errors.Is(err, strategy.ErrNoResponse) {
			s.logger.Info().Err(err).Str("url", out.URL.String()).Msg("Asset unavailable offline")
			http.Error(w, "asset unavailable", http.StatusBadGateway)
			return
		}
		s.logger.Warn().Err(err).Str("url", out.URL.String()).Msg("Upstream request failed")
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	cacheResult := resp.Header.Get(cache.HeaderCache)
	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	removeHopHeaders(header)

	if cache.IsCached(resp) && resp.StatusCode == http.StatusOK && r.Header.Get("Range") != "" {
		s.serveCachedRange(w, r, resp)
		s.recordProxy(http.StatusPartialContent, cacheResult, start)
		return
	}

	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, resp.Body); err != nil {
			s.logger.Warn().Err(err).Str("url", out.URL.String()).Msg("Failed to copy response body")
		}
	}
	s.recordProxy(resp.StatusCode, cacheResult, start)
}

// serveCachedRange serves byte ranges of a stored full body.
func (s *Server) serveCachedRange(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "read cached body", http.StatusInternalServerError)
		return
	}

	w.Header().Del("Content-Length")
	w.Header().Set("Accept-Ranges", "bytes")

	var modtime time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			modtime = t
		}
	}
	http.ServeContent(w, r, "", modtime, bytes.NewReader(body))
}

// outboundRequest builds the request sent through the cache layer.
// Absolute-form request targets are forwarded as-is when they name the
// origin or a third-party host; origin-form paths are resolved against the
// origin.
func (s *Server) outboundRequest(r *http.Request) (*http.Request, error) {
	target := r.URL
	if target.IsAbs() {
		if !dispatch.HostAllowed(s.origin, s.thirdParty, target) {
			return nil, fmt.Errorf("%w: %s", errForbiddenHost, target.Host)
		}
	} else {
		if s.origin == nil {
			return nil, errors.New("no origin configured for relative request")
		}
		target = s.origin.ResolveReference(&url.URL{
			Path:     r.URL.Path,
			RawPath:  r.URL.RawPath,
			RawQuery: r.URL.RawQuery,
		})
	}

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	out.Header = r.Header.Clone()
	removeHopHeaders(out.Header)
	out.ContentLength = r.ContentLength

	if r.Host != "" {
		out.Header.Set("X-Forwarded-Host", r.Host)
	}
	if ip := r.RemoteAddr; ip != "" {
		out.Header.Set("X-Forwarded-For", ip)
	}
	return out, nil
}

func (s *Server) recordProxy(status int, cacheResult string, start time.Time) {
	if cacheResult == "" {
		cacheResult = "MISS"
	}
	proxyRequestsTotal.WithLabelValues(strconv.Itoa(status), cacheResult).Inc()
	proxyDuration.WithLabelValues(cacheResult).Observe(time.Since(start).Seconds())
}
