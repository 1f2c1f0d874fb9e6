// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrMissingAPIKey is returned when the remote backend has no API key.
	ErrMissingAPIKey = errors.New("missing API key for remote model")

	// ErrStructuredUnsupported is returned by CompleteJSON on services that
	// cannot constrain their output.
	ErrStructuredUnsupported = errors.New("structured output not supported")
)

// APIError is a non-2xx response from a completion backend.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error (HTTP %d)", e.Provider, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsTransient reports whether retrying the request may succeed.
func (e *APIError) IsTransient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient reports whether err is worth one more attempt: a transient
// APIError, a network timeout, or a per-call deadline.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorType classifies err for the failure metric label.
func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &apiErr) && apiErr.IsTransient():
		return "transient"
	case errors.As(err, &apiErr):
		return "api"
	default:
		return "other"
	}
}
