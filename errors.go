package goAuthClient

import (
	"errors"

	"github.com/MrEthical07/goAuthClient/internal/api"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/transport"
)

var (
	// ErrNotAuthenticated is returned by authenticated calls when no session
	// is held. No request is sent.
	ErrNotAuthenticated = transport.ErrNotAuthenticated
	// ErrRefreshNoSession is returned by a refresh without a refresh token.
	ErrRefreshNoSession = session.ErrNoSession
	// ErrRefreshRejected means the server refused the refresh token. The
	// session has been cleared.
	ErrRefreshRejected = session.ErrRefreshRejected
	// ErrStorageUnavailable wraps credential store failures.
	ErrStorageUnavailable = store.ErrStorageUnavailable
	// ErrNetwork wraps transport failures and malformed responses.
	ErrNetwork = api.ErrNetwork

	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired verification token")
	ErrNoPendingChallenge    = errors.New("no pending login challenge")
	ErrChallengeExpired      = errors.New("login challenge expired")
	ErrTooManyAttempts       = errors.New("too many verification attempts")
	ErrResendCooldown        = errors.New("please wait before requesting again")
	ErrInvalidInput          = errors.New("invalid input")
	ErrClientNotReady        = errors.New("client not initialized")
	ErrInvalidConfig         = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// APIError is the typed error of a non-2xx backend response. Use errors.As
// to read the HTTP status and the server's code.
type APIError = api.Error
