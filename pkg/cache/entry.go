package cache

import (
	"net/http"
	"time"
)

// Entry is a captured response together with the moment it was stored.
type Entry struct {
	// Body is the full response body
	Body []byte `json:"body"`

	// StatusCode of the captured response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// StoredAt is when the entry was written
	StoredAt time.Time `json:"stored_at"`
}

// Timestamp returns when the entry was stored. Entries written without an
// explicit StoredAt fall back to the response Date header.
// The zero time is returned when neither is available.
func (e *Entry) Timestamp() time.Time {
	if !e.StoredAt.IsZero() {
		return e.StoredAt
	}
	if date := e.Headers.Get("Date"); date != "" {
		if t, err := http.ParseTime(date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Age returns how long ago the entry was stored, relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp())
}

// IsStale reports whether the entry has reached maxAge.
// An entry without any timestamp is always stale.
func (e *Entry) IsStale(maxAge time.Duration, now time.Time) bool {
	if e.Timestamp().IsZero() {
		return true
	}
	return e.Age(now) >= maxAge
}
