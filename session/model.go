package session

import (
	"context"
	"errors"
)

var (
	// ErrNoSession is returned when no refresh token is stored.
	ErrNoSession = errors.New("no session")
	// ErrRefreshRejected is returned when the server invalidated the refresh token.
	// The session has been cleared by the time a caller sees it.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrIncompleteCredentials is returned by Save when either token is empty.
	ErrIncompleteCredentials = errors.New("access and refresh token are required")
)

// Credentials is the persisted credential set. Empty TenantID and UserEmail
// mean absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TenantID     string
	UserEmail    string
}

func (c Credentials) valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// State is the derived, non-persisted view of the session.
type State struct {
	Authenticated bool
	TenantID      string
}

// RefreshedTokens is what a [Refresher] returns. Empty RefreshToken, TenantID,
// or UserEmail keep the current values.
type RefreshedTokens struct {
	AccessToken  string
	RefreshToken string
	TenantID     string
	UserEmail    string
}

// Refresher performs the refresh network call. Implementations wrap
// [ErrRefreshRejected] when the server refuses the refresh token; any other
// error is treated as transient.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (RefreshedTokens, error)
}

// RefresherFunc adapts a function to [Refresher].
type RefresherFunc func(ctx context.Context, refreshToken string) (RefreshedTokens, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (RefreshedTokens, error) {
	return f(ctx, refreshToken)
}

// Event is emitted through [Options.OnEvent].
type Event int

const (
	EventRefreshStarted Event = iota
	EventRefreshCoalesced
	EventRefreshSucceeded
	EventRefreshRejected
	EventRefreshFailed
	EventSessionSaved
	EventSessionCleared
)

func (e Event) String() string {
	switch e {
	case EventRefreshStarted:
		return "refresh_started"
	case EventRefreshCoalesced:
		return "refresh_coalesced"
	case EventRefreshSucceeded:
		return "refresh_succeeded"
	case EventRefreshRejected:
		return "refresh_rejected"
	case EventRefreshFailed:
		return "refresh_failed"
	case EventSessionSaved:
		return "session_saved"
	case EventSessionCleared:
		return "session_cleared"
	default:
		return "unknown"
	}
}
