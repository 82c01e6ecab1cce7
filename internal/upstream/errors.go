package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any APIError with a 404 status via errors.Is.
var ErrNotFound = errors.New("upstream resource not found")

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s request failed: %s returned %d %s", e.Provider, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NetworkError wraps a transport failure: DNS, connect, TLS, timeout or a
// truncated body.
type NetworkError struct {
	Provider string
	URL      string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Provider, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode maps err to the HTTP status a provider failure should surface
// as: 503 for network failures, the provider status for API errors and 500
// for anything else.
func StatusCode(err error) int {
	var ae *APIError
	switch {
	case err == nil:
		return http.StatusOK
	case IsNetwork(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &ae):
		return ae.StatusCode
	default:
		return http.StatusInternalServerError
	}
}
