package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/device"
	"github.com/MrEthical07/goAuthClient/internal/api"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/internal/limiters"
	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/internal/stores"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/transport"
)

// User is the account returned by the backend.
type User = api.User

// TrustedDevice is one device the account trusts.
type TrustedDevice = api.TrustedDevice

// LoginHistoryEntry is one past login.
type LoginHistoryEntry = api.LoginHistoryEntry

// TwoFactorSetup carries the enrolment data returned when enabling 2FA.
type TwoFactorSetup = api.EnableTwoFactorResponse

// Client is the authentication and session core. Create it with
// [Builder.Build]. Methods are safe for concurrent use.
type Client struct {
	config Config
	logger zerolog.Logger

	store      store.Store
	sessions   *session.Manager
	devices    *device.Provider
	api        *api.Client
	gate       *transport.Gate
	httpClient *http.Client

	challenges    *stores.ChallengeStore
	resendLimiter *limiters.CooldownLimiter
	forgotLimiter *limiters.CooldownLimiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	ownedRedis  *redis.Client
	customStore bool

	// loginMu serializes the steps of the login state machine.
	loginMu sync.Mutex

	observerMu sync.Mutex
	observers  []func(State)
	published  State

	closed atomic.Bool
}

// Login submits email and password. The result state is Authenticated,
// PendingTwoFactor or PendingDeviceVerification. A previous pending
// challenge is discarded first.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	defer c.publish()

	res, err := flows.RunLogin(ctx, email, password, c.loginDeps())
	return c.loginResult(res, err)
}

// VerifyTwoFactor completes a PendingTwoFactor login with code.
func (c *Client) VerifyTwoFactor(ctx context.Context, code string) (*LoginResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	defer c.publish()

	res, err := flows.RunVerifyTwoFactor(ctx, strings.TrimSpace(code), c.loginDeps())
	return c.loginResult(res, err)
}

// VerifyDevice confirms the device with the emailed token and re-submits the
// pending login. The result may still require a second factor.
func (c *Client) VerifyDevice(ctx context.Context, token string) (*LoginResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	defer c.publish()

	res, err := flows.RunVerifyDevice(ctx, strings.TrimSpace(token), c.loginDeps())
	return c.loginResult(res, err)
}

// ResendVerification asks the backend to resend the code or link of the
// pending challenge. Requests for the same address are limited to one per
// Account.ResendCooldown.
func (c *Client) ResendVerification(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := flows.RunResendVerification(ctx, c.recoveryDeps())
	c.publish()
	return err
}

// CancelLogin abandons the pending challenge, if any.
func (c *Client) CancelLogin() {
	c.loginMu.Lock()
	c.challenges.Discard()
	c.loginMu.Unlock()
	c.publish()
}

// PendingChallenge describes the pending challenge.
func (c *Client) PendingChallenge() (PendingChallengeInfo, bool) {
	ch, err := c.challenges.Current()
	if err != nil {
		return PendingChallengeInfo{}, false
	}
	return PendingChallengeInfo{
		State:     stateOfChallenge(ch.Kind),
		Email:     redact.Email(ch.Email),
		ExpiresAt: ch.ExpiresAt,
		Attempts:  ch.Attempts,
	}, true
}

// Logout clears the local session and any pending challenge, then revokes
// the session server-side. Local state is logged out even when the server
// call or the store fails.
func (c *Client) Logout(ctx context.Context) LogoutResult {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	defer c.publish()

	return flows.RunLogout(ctx, flows.LogoutDeps{
		API:         c.api,
		Challenges:  c.challenges,
		AccessToken: c.sessions.AccessToken,
		UserEmail: func() string {
			creds, _ := c.sessions.Credentials()
			return creds.UserEmail
		},
		ClearSession: c.sessions.Clear,
		Logger:       c.logger,
		Observe:      c.observe(),
	})
}

// ForgotPassword starts a password reset for email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return flows.RunForgotPassword(ctx, email, c.recoveryDeps())
}

// ResetPassword sets a new password using the emailed reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := c.api.ResetPassword(ctx, strings.TrimSpace(token), newPassword)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrInvalidRequest):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case api.CodeOf(err) == api.CodeInvalidToken:
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	default:
		return err
	}
}

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.api.Me(ctx)
}

// LoginHistory returns up to limit recent logins. A limit <= 0 uses
// Account.LoginHistoryLimit.
func (c *Client) LoginHistory(ctx context.Context, limit int) ([]LoginHistoryEntry, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = c.config.Account.LoginHistoryLimit
	}
	return c.api.LoginHistory(ctx, limit)
}

func (c *Client) TrustedDevices(ctx context.Context) ([]TrustedDevice, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.api.TrustedDevices(ctx)
}

func (c *Client) RevokeTrustedDevice(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	return c.api.RevokeTrustedDevice(ctx, id)
}

func (c *Client) EnableTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.api.EnableTwoFactor(ctx)
}

// DisableTwoFactor turns 2FA off after confirming a current code.
func (c *Client) DisableTwoFactor(ctx context.Context, code string) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := c.api.DisableTwoFactor(ctx, strings.TrimSpace(code))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrInvalidRequest):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case api.CodeOf(err) == api.CodeInvalidCode:
		return fmt.Errorf("%w: %w", ErrInvalidCode, err)
	default:
		return err
	}
}

// State returns the login state. A live pending challenge takes precedence
// over a stored session.
func (c *Client) State() State {
	if ch, err := c.challenges.Current(); err == nil {
		return stateOfChallenge(ch.Kind)
	}
	if c.sessions.State().Authenticated {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Config returns the validated config the client was built with.
func (c *Client) Config() Config {
	return c.config
}

// SessionState returns the stored session view.
func (c *Client) SessionState() SessionState {
	return c.sessions.State()
}

// OnStateChange registers fn to be called with every new [State]. Calls are
// made synchronously and must not block.
func (c *Client) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	c.observerMu.Lock()
	c.observers = append(c.observers, fn)
	c.observerMu.Unlock()
}

// HTTPClient returns the client for business calls. It attaches the bearer
// token, refreshes once on 401 and retries once.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Sessions returns the session manager shared by the client and its
// transport.
func (c *Client) Sessions() *session.Manager {
	return c.sessions
}

// DeviceFingerprint returns the persisted device identity.
func (c *Client) DeviceFingerprint(ctx context.Context) (string, error) {
	return c.devices.GetOrCreateFingerprint(ctx)
}

// MetricsSnapshot returns the current metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events that were dropped.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes the audit dispatcher and releases a Redis client created by
// Build. The stored session is kept.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.challenges.Discard()

	var errs []error
	if err := c.audit.Close(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if c.ownedRedis != nil {
		if err := c.ownedRedis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) ready() error {
	if c == nil || c.closed.Load() || c.api == nil {
		return ErrClientNotReady
	}
	return nil
}

func (c *Client) loginDeps() flows.LoginDeps {
	name := c.config.Login.DeviceName
	if name == "" {
		name = c.devices.DeviceName()
	}
	return flows.LoginDeps{
		ChallengeTTL:         c.config.Login.ChallengeTTL,
		MaxTwoFactorAttempts: c.config.Login.MaxTwoFactorAttempts,
		DeviceName:           name,
		API:                  c.api,
		Challenges:           c.challenges,
		Fingerprint:          c.devices.GetOrCreateFingerprint,
		SaveSession:          c.sessions.Save,
		Logger:               c.logger,
		Observe:              c.observe(),
		Errors:               c.flowErrors(),
	}
}

func (c *Client) recoveryDeps() flows.RecoveryDeps {
	return flows.RecoveryDeps{
		API:           c.api,
		Challenges:    c.challenges,
		ResendLimiter: c.resendLimiter,
		ForgotLimiter: c.forgotLimiter,
		Observe:       c.observe(),
		Errors:        c.flowErrors(),
	}
}

func (c *Client) loginResult(res *flows.LoginResult, err error) (*LoginResult, error) {
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		State:    stateOfOutcome(res.Outcome),
		TenantID: res.TenantID,
		Message:  res.Message,
	}, nil
}

// publish notifies observers when the derived state differs from the last
// one published.
func (c *Client) publish() {
	c.observerMu.Lock()
	next := c.State()
	if next == c.published {
		c.observerMu.Unlock()
		return
	}
	c.published = next
	observers := append(([]func(State))(nil), c.observers...)
	c.observerMu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}
