package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrStateMismatch    = errors.New("oauth state mismatch")
	ErrTimeout          = errors.New("operation timed out")

	// Upstream and service errors
	ErrUpstream           = errors.New("upstream request failed")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Room errors
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code, try again")
	ErrRoomNotFound       = errors.New("room not found")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")

	// Lifecycle errors
	ErrDisposed = errors.New("visualization disposed")

	// Database errors
	ErrNoMigrations = errors.New("no migrations to rollback")
)

// UpstreamError is returned when the music catalog answers with a non-success status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", ErrUpstream, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", ErrUpstream, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// StatusCode extracts the upstream status code from err, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
