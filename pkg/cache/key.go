package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Key identifies a cached response by request method and URL.
type Key struct {
	// Method is the upper-cased HTTP method
	Method string

	// URL is the absolute request URL without fragment
	URL string
}

// NewKey builds the cache identity of a request.
func NewKey(req *http.Request) Key {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return Key{
		Method: strings.ToUpper(method),
		URL:    normalizeURL(req.URL),
	}
}

// String generates a deterministic key string.
// Format: METHOD URL
//
// Example:
//
//	GET https://example.com/videos/demo.mp4
func (k Key) String() string {
	return k.Method + " " + k.URL
}

func normalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
