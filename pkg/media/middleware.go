package media

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// HeaderVariant reports which variant the middleware selected.
const HeaderVariant = "X-Media-Variant"

var variantSelections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "asset_media_variant_selections_total",
	Help: "Video requests by selected variant",
}, []string{"variant"})

// varyHints is the Vary value of responses whose path depends on hints.
var varyHints = strings.Join([]string{
	HeaderSecViewportWidth,
	HeaderViewportWidth,
	HeaderECT,
	HeaderSaveData,
	HeaderSecUAMobile,
	HeaderUserAgent,
}, ", ")

// RewriteMiddleware rewrites canonical video requests under marker to the
// variant chosen for the caller's profile before they reach the cache layer.
// Every response also advertises the hints the selector reads.
func RewriteMiddleware(sel *Selector, marker string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Accept-CH", AcceptCH)

			p := r.URL.Path
			if r.Method != http.MethodGet || !strings.Contains(p, marker) ||
				!strings.HasSuffix(p, sel.Extension) || sel.IsMobilePath(p) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", varyHints)

			source := sel.Source(p, ProfileFromRequest(r))
			if source == p {
				variantSelections.WithLabelValues("desktop").Inc()
				w.Header().Set(HeaderVariant, "desktop")
				next.ServeHTTP(w, r)
				return
			}

			variantSelections.WithLabelValues("mobile").Inc()
			logger.Debug().
				Str("path", p).
				Str("source", source).
				Msg("Rewrote video to mobile variant")

			r2 := r.Clone(r.Context())
			r2.URL.Path = source
			r2.URL.RawPath = ""
			r2.RequestURI = r2.URL.RequestURI()
			w.Header().Set(HeaderVariant, "mobile")
			next.ServeHTTP(w, r2)
		})
	}
}
