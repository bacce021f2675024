// Package provider holds the HTTP plumbing shared by the generation and
// embedding backends.
package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure reported by, or while reaching, a remote provider.
// StatusCode is zero for transport failures.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Malformed reports a reply that decoded but lacks what the caller needs.
func Malformed(name, detail string) *Error {
	return &Error{Provider: name, Message: "parsing response", Err: fmt.Errorf("%w: %s", ErrMalformedResponse, detail)}
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil && !errors.Is(e.Err, ErrMalformedResponse)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuthError reports whether err is a provider authentication failure.
func IsAuthError(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden
}

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}
