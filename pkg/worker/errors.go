package worker

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRetryExhausted is returned when all precache attempts for an asset failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoOrigin is returned when precache paths cannot be resolved.
	ErrNoOrigin = errors.New("no origin configured")
)

// ErrorClass categorizes precache fetch failures.
type ErrorClass string

const (
	// ErrorClassClient is a 4xx response or other non-cacheable status.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer is a 5xx response.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork is a transport failure.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus returns the error class of a non-cacheable status code.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= http.StatusInternalServerError {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// shouldRetry determines if an error class is worth another attempt.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// PrecacheError represents an asset that could not be precached.
type PrecacheError struct {
	URL        string
	StatusCode int
	Class      ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *PrecacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precache %s: %s error: %v", e.URL, e.Class, e.Err)
	}
	return fmt.Sprintf("precache %s: %s error (status %d)", e.URL, e.Class, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PrecacheError) Unwrap() error {
	return e.Err
}

func errorClassOf(err error) ErrorClass {
	var pe *PrecacheError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ErrorClassNetwork
}
