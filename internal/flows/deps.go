package flows

import (
	"context"

	"github.com/MrEthical07/goAuthClient/internal/api"
)

// AuthAPI is the backend surface used by the login flows.
type AuthAPI interface {
	Login(ctx context.Context, in api.LoginRequest) (*api.LoginResponse, error)
	VerifyTwoFactor(ctx context.Context, in api.VerifyTwoFactorRequest) (*api.TokenResponse, error)
	VerifyDevice(ctx context.Context, token string) error
	Logout(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email, kind string) error
	ForgotPassword(ctx context.Context, email string) error
}

// Errors carries host-level sentinel errors the flows map backend failures to.
type Errors struct {
	ClientNotReady        error
	InvalidInput          error
	InvalidCredentials    error
	InvalidCode           error
	InvalidOrExpiredToken error
	NoPendingChallenge    error
	ChallengeExpired      error
	TooManyAttempts       error
	ResendCooldown        error
}

// Metrics carries metric IDs incremented by the flows.
type Metrics struct {
	LoginSuccess             int
	LoginFailure             int
	TwoFactorRequired        int
	TwoFactorSuccess         int
	TwoFactorFailure         int
	DeviceVerificationNeeded int
	DeviceVerified           int
	DeviceVerifyFailure      int
	Logout                   int
	LogoutRemoteFailure      int
	ResendVerification       int
	ForgotPassword           int
	CooldownHit              int
}

// Events carries audit event names emitted by the flows.
type Events struct {
	LoginSuccess        string
	LoginFailure        string
	TwoFactorRequired   string
	TwoFactorFailure    string
	TwoFactorExceeded   string
	DeviceVerification  string
	DeviceVerified      string
	DeviceVerifyFailure string
	Logout              string
	ResendVerification  string
	ForgotPassword      string
}

// Observe groups the side channels every flow reports to. Nil functions are
// replaced by no-ops.
type Observe struct {
	MetricInc func(int)
	// EmitAudit records an event. email is already redacted.
	EmitAudit func(ctx context.Context, event string, success bool, email string, err error, meta func() map[string]string)
	Metrics   Metrics
	Events    Events
}

func (o *Observe) defaults() {
	if o.MetricInc == nil {
		o.MetricInc = func(int) {}
	}
	if o.EmitAudit == nil {
		o.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}
