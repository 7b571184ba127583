// Package dispatch classifies intercepted requests and assigns each one a
// caching strategy, a store and a max-age.
//
// The dispatcher is pure: all of its inputs come from Config, which is built
// once at start-up and passed in explicitly.
package dispatch

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Sternrassler/asset-cache/pkg/strategy"
)

// Default classification parameters.
const (
	DefaultVersion          = "2.4.0"
	DefaultVideoMarker      = "/videos/"
	DefaultImageMarker      = "/images/"
	DefaultMobileSuffix     = "-mobile.mp4"
	DefaultVideoMaxAge      = 30 * 24 * time.Hour
	DefaultThirdPartyMaxAge = 7 * 24 * time.Hour
)

// DefaultThirdPartyHosts lists the interactive scene provider.
var DefaultThirdPartyHosts = []string{"spline.design"}

// DefaultScriptExtensions are the extensions routed as scripts or styles.
var DefaultScriptExtensions = []string{".js", ".mjs", ".css"}

// Config holds the dispatcher configuration.
type Config struct {
	// Version is embedded in every store name.
	Version string

	// Origin is the same-origin base. Requests without a host are treated as
	// same-origin.
	Origin *url.URL

	// ThirdPartyHosts are handled in addition to the origin. A host matches
	// exactly or as a parent domain.
	ThirdPartyHosts []string

	VideoMarker      string
	ImageMarker      string
	MobileSuffix     string
	ScriptExtensions []string

	VideoMaxAge      time.Duration
	ThirdPartyMaxAge time.Duration

	// RevalidateAfter is forwarded to cache-first assignments.
	RevalidateAfter float64
}

// DefaultConfig returns the default configuration for origin.
func DefaultConfig(origin *url.URL) Config {
	return Config{
		Version:          DefaultVersion,
		Origin:           origin,
		ThirdPartyHosts:  append([]string(nil), DefaultThirdPartyHosts...),
		VideoMarker:      DefaultVideoMarker,
		ImageMarker:      DefaultImageMarker,
		MobileSuffix:     DefaultMobileSuffix,
		ScriptExtensions: append([]string(nil), DefaultScriptExtensions...),
		VideoMaxAge:      DefaultVideoMaxAge,
		ThirdPartyMaxAge: DefaultThirdPartyMaxAge,
		RevalidateAfter:  strategy.DefaultRevalidateAfter,
	}
}

// Dispatcher routes requests to strategies.
type Dispatcher struct {
	cfg    Config
	stores StoreSet
}

// New creates a dispatcher. Zero fields of cfg take their defaults.
func New(cfg Config) *Dispatcher {
	def := DefaultConfig(cfg.Origin)
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.VideoMarker == "" {
		cfg.VideoMarker = def.VideoMarker
	}
	if cfg.ImageMarker == "" {
		cfg.ImageMarker = def.ImageMarker
	}
	if cfg.MobileSuffix == "" {
		cfg.MobileSuffix = def.MobileSuffix
	}
	if cfg.ScriptExtensions == nil {
		cfg.ScriptExtensions = def.ScriptExtensions
	}
	if cfg.VideoMaxAge <= 0 {
		cfg.VideoMaxAge = def.VideoMaxAge
	}
	if cfg.ThirdPartyMaxAge <= 0 {
		cfg.ThirdPartyMaxAge = def.ThirdPartyMaxAge
	}
	if cfg.RevalidateAfter <= 0 {
		cfg.RevalidateAfter = def.RevalidateAfter
	}

	return &Dispatcher{cfg: cfg, stores: StoreNames(cfg.Version)}
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Stores returns the store names of the configured version.
func (d *Dispatcher) Stores() StoreSet {
	return d.stores
}

// Intercepts reports whether req is handled by the cache layer. Non-GET
// requests and foreign origins pass through.
func (d *Dispatcher) Intercepts(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	return d.isSameOrigin(req.URL) || d.isThirdParty(req.URL)
}

// Classify assigns a strategy to req. The first matching rule wins. The bool
// is false for requests that are not intercepted.
func (d *Dispatcher) Classify(req *http.Request) (strategy.Assignment, bool) {
	if !d.Intercepts(req) {
		return strategy.Assignment{}, false
	}

	u := req.URL
	p := u.Path

	switch {
	case IsDocument(req):
		return strategy.Assignment{Kind: strategy.NetworkFirst, Store: d.stores.Runtime, Document: true}, true

	case strings.Contains(p, d.cfg.VideoMarker):
		store := d.stores.Videos
		if strings.HasSuffix(p, d.cfg.MobileSuffix) {
			store = d.stores.MobileVideos
		}
		return strategy.Assignment{Kind: strategy.CacheOnDemand, Store: store, MaxAge: d.cfg.VideoMaxAge}, true

	case strings.Contains(p, d.cfg.ImageMarker):
		return strategy.Assignment{Kind: strategy.StaleWhileRevalidate, Store: d.stores.Images}, true

	case d.isScript(p):
		return strategy.Assignment{Kind: strategy.StaleWhileRevalidate, Store: d.stores.Runtime}, true

	case d.isThirdParty(u):
		return strategy.Assignment{
			Kind:            strategy.CacheFirst,
			Store:           d.stores.Runtime,
			MaxAge:          d.cfg.ThirdPartyMaxAge,
			RevalidateAfter: d.cfg.RevalidateAfter,
		}, true
	}

	return strategy.Assignment{Kind: strategy.NetworkFirst, Store: d.stores.Runtime}, true
}

func (d *Dispatcher) isScript(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range d.cfg.ScriptExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (d *Dispatcher) isSameOrigin(u *url.URL) bool {
	return u.Host == "" || sameOrigin(d.cfg.Origin, u)
}

func (d *Dispatcher) isThirdParty(u *url.URL) bool {
	return thirdParty(d.cfg.ThirdPartyHosts, u)
}

// HostAllowed reports whether the absolute URL u targets origin or one of
// the third-party hosts. A third-party host also matches its subdomains.
func HostAllowed(origin *url.URL, thirdPartyHosts []string, u *url.URL) bool {
	return sameOrigin(origin, u) || thirdParty(thirdPartyHosts, u)
}

func sameOrigin(origin, u *url.URL) bool {
	if origin == nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, origin.Host)
}

func thirdParty(hosts []string, u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, allowed := range hosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

type destinationKey struct{}

// Destination values understood by IsDocument.
const (
	DestinationDocument = "document"
	DestinationVideo    = "video"
	DestinationImage    = "image"
)

// WithDestination attaches a destination hint to req, for callers that cannot
// set Sec-Fetch-Dest themselves.
func WithDestination(req *http.Request, dest string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), destinationKey{}, dest))
}

// Destination returns the destination hint of req: the context value set by
// WithDestination, else the Sec-Fetch-Dest header.
func Destination(req *http.Request) string {
	if dest, ok := req.Context().Value(destinationKey{}).(string); ok && dest != "" {
		return dest
	}
	return strings.ToLower(req.Header.Get("Sec-Fetch-Dest"))
}

// IsDocument reports whether req is a navigation.
func IsDocument(req *http.Request) bool {
	if Destination(req) == DestinationDocument {
		return true
	}
	return strings.EqualFold(req.Header.Get("Sec-Fetch-Mode"), "navigate")
}
