package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrInvalidState     = fmt.Errorf("oauth state mismatch")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and pipeline errors
	ErrAPIRequest     = fmt.Errorf("API request failed")
	ErrMalformedData  = fmt.Errorf("malformed data")
	ErrLoadFailed     = fmt.Errorf("load failed")
	ErrArtistNotFound = fmt.Errorf("artist not found")
	ErrNoSnapshot     = fmt.Errorf("no snapshot available")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// AuthError is returned when no usable access token exists and none can be obtained.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotAuthenticated, e.Reason)
}

func (e *AuthError) Unwrap() error { return ErrNotAuthenticated }

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s returned %d: %s", ErrAPIRequest, e.Endpoint, e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return ErrAPIRequest }

// MalformedDataError names the JSON path of a required key that was missing or unusable.
type MalformedDataError struct {
	Path   string
	Reason string
}

func (e *MalformedDataError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: missing %s", ErrMalformedData, e.Path)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedData, e.Path, e.Reason)
}

func (e *MalformedDataError) Unwrap() error { return ErrMalformedData }

// Missing builds a [MalformedDataError] for an absent key.
func Missing(path string, args ...any) *MalformedDataError {
	return &MalformedDataError{Path: fmt.Sprintf(path, args...)}
}

// LoadError wraps a storage failure in the group whose transaction was rolled back.
type LoadError struct {
	Group string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLoadFailed, e.Group, e.Err)
}

// Unwrap exposes both [ErrLoadFailed] and the underlying cause to [errors.Is].
func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailed, e.Err} }

// IsUnauthorized reports whether err is a 401 from the remote API.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == 401
}
