package rate

import "errors"

var (
	// ErrRateLimited is returned when a key is still cooling down.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps Redis failures.
	ErrBackendUnavailable = errors.New("rate backend unavailable")
)
