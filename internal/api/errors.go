package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNetwork wraps transport failures: DNS, connect, reset, timeouts, and
// undecodable responses.
var ErrNetwork = errors.New("network error")

// ErrInvalidRequest is returned before any I/O when a request payload fails
// validation.
var ErrInvalidRequest = errors.New("invalid request")

// Server error codes with client-side meaning.
const (
	CodeDeviceVerificationRequired = "DEVICE_VERIFICATION_REQUIRED"
	CodeInvalidCredentials         = "INVALID_CREDENTIALS"
	CodeInvalidCode                = "INVALID_CODE"
	CodeInvalidToken               = "INVALID_TOKEN"
)

// Error is a non-2xx response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("status %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("status %d: %s", e.Status, msg)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// CodeOf returns the server error code carried by err, or "".
func CodeOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
