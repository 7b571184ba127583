package strategy

import (
	"errors"
	"fmt"
)

// ErrNoResponse is matched by every failure a strategy could not recover
// from: the network failed and no cached copy exists.
var ErrNoResponse = errors.New("no response available")

// FetchError represents a request that could be answered neither from the
// network nor from cache.
type FetchError struct {
	URL      string
	Strategy Kind
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Strategy, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNoResponse) match any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrNoResponse
}
