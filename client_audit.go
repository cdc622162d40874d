package goAuthClient

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/api"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/transport"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventTwoFactorRequired   = "two_factor_required"
	auditEventTwoFactorFailure    = "two_factor_failure"
	auditEventTwoFactorExceeded   = "two_factor_attempts_exceeded"
	auditEventDeviceVerification  = "device_verification_required"
	auditEventDeviceVerified      = "device_verified"
	auditEventDeviceVerifyFailure = "device_verify_failure"
	auditEventLogout              = "logout"
	auditEventResendVerification  = "resend_verification"
	auditEventForgotPassword      = "forgot_password"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshRejected     = "refresh_rejected"
	auditEventRefreshFailure      = "refresh_failure"
)

// AuditErrorCode is the coarse error class recorded in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrChallengeExpired   AuditErrorCode = "challenge_expired"
	auditErrCooldown           AuditErrorCode = "cooldown"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrNotAuthenticated   AuditErrorCode = "not_authenticated"
	auditErrRefreshRejected    AuditErrorCode = "refresh_rejected"
	auditErrStorage            AuditErrorCode = "storage_unavailable"
	auditErrNetwork            AuditErrorCode = "network"
	auditErrBackend            AuditErrorCode = "backend_error"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeExpired
	case errors.Is(err, ErrResendCooldown):
		return auditErrCooldown
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrRefreshNoSession):
		return auditErrNotAuthenticated
	case errors.Is(err, ErrRefreshRejected):
		return auditErrRefreshRejected
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrStorage
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return auditErrNetwork
	case api.StatusOf(err) != 0:
		return auditErrBackend
	default:
		return auditErrInternal
	}
}

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	c.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Email:     email,
		TenantID:  c.sessions.State().TenantID,
		Success:   success,
		Error:     string(auditErrorCode(err)),
		Metadata:  metadata,
	})
}

func (c *Client) metricInc(id MetricID) {
	c.metrics.Inc(id)
}

// observe is the side-channel bundle handed to every flow.
func (c *Client) observe() flows.Observe {
	return flows.Observe{
		MetricInc: func(id int) { c.metricInc(MetricID(id)) },
		EmitAudit: c.emitAudit,
		Metrics: flows.Metrics{
			LoginSuccess:             int(MetricLoginSuccess),
			LoginFailure:             int(MetricLoginFailure),
			TwoFactorRequired:        int(MetricTwoFactorRequired),
			TwoFactorSuccess:         int(MetricTwoFactorSuccess),
			TwoFactorFailure:         int(MetricTwoFactorFailure),
			DeviceVerificationNeeded: int(MetricDeviceVerificationRequired),
			DeviceVerified:           int(MetricDeviceVerified),
			DeviceVerifyFailure:      int(MetricDeviceVerifyFailure),
			Logout:                   int(MetricLogout),
			LogoutRemoteFailure:      int(MetricLogoutRemoteFailure),
			ResendVerification:       int(MetricResendVerification),
			ForgotPassword:           int(MetricForgotPassword),
			CooldownHit:              int(MetricCooldownHit),
		},
		Events: flows.Events{
			LoginSuccess:        auditEventLoginSuccess,
			LoginFailure:        auditEventLoginFailure,
			TwoFactorRequired:   auditEventTwoFactorRequired,
			TwoFactorFailure:    auditEventTwoFactorFailure,
			TwoFactorExceeded:   auditEventTwoFactorExceeded,
			DeviceVerification:  auditEventDeviceVerification,
			DeviceVerified:      auditEventDeviceVerified,
			DeviceVerifyFailure: auditEventDeviceVerifyFailure,
			Logout:              auditEventLogout,
			ResendVerification:  auditEventResendVerification,
			ForgotPassword:      auditEventForgotPassword,
		},
	}
}

func (c *Client) flowErrors() flows.Errors {
	return flows.Errors{
		ClientNotReady:        ErrClientNotReady,
		InvalidInput:          ErrInvalidInput,
		InvalidCredentials:    ErrInvalidCredentials,
		InvalidCode:           ErrInvalidCode,
		InvalidOrExpiredToken: ErrInvalidOrExpiredToken,
		NoPendingChallenge:    ErrNoPendingChallenge,
		ChallengeExpired:      ErrChallengeExpired,
		TooManyAttempts:       ErrTooManyAttempts,
		ResendCooldown:        ErrResendCooldown,
	}
}

// onSessionEvent receives session manager events. It runs outside the
// manager's locks.
func (c *Client) onSessionEvent(e session.Event) {
	switch e {
	case session.EventRefreshStarted:
		c.metricInc(MetricRefreshStarted)
	case session.EventRefreshCoalesced:
		c.metricInc(MetricRefreshCoalesced)
	case session.EventRefreshSucceeded:
		c.metricInc(MetricRefreshSucceeded)
		c.emitAudit(context.Background(), auditEventRefreshSuccess, true, c.redactedEmail(), nil, nil)
	case session.EventRefreshRejected:
		c.metricInc(MetricRefreshRejected)
		c.emitAudit(context.Background(), auditEventRefreshRejected, false, "", ErrRefreshRejected, nil)
	case session.EventRefreshFailed:
		c.metricInc(MetricRefreshFailed)
		c.emitAudit(context.Background(), auditEventRefreshFailure, false, c.redactedEmail(), nil, nil)
	case session.EventSessionSaved:
		c.metricInc(MetricSessionSaved)
	case session.EventSessionCleared:
		c.metricInc(MetricSessionCleared)
	}
}

func (c *Client) onGateEvent(e transport.Event) {
	switch e {
	case transport.EventRetried:
		c.metricInc(MetricGateRetried)
	case transport.EventNotAuthenticated:
		c.metricInc(MetricGateNotAuthenticated)
	case transport.EventRefreshFailed:
		c.metricInc(MetricGateRefreshFailed)
	case transport.EventProactiveRefresh:
		c.metricInc(MetricGateProactiveRefresh)
	}
}

func (c *Client) redactedEmail() string {
	creds, _ := c.sessions.Credentials()
	return redact.Email(creds.UserEmail)
}

// timedRefresher records the latency of every refresh network call.
type timedRefresher struct {
	next    session.Refresher
	metrics *Metrics
}

func (t timedRefresher) Refresh(ctx context.Context, refreshToken string) (session.RefreshedTokens, error) {
	if !t.metrics.LatencyEnabled() {
		return t.next.Refresh(ctx, refreshToken)
	}
	start := time.Now()
	res, err := t.next.Refresh(ctx, refreshToken)
	t.metrics.Observe(MetricRefreshLatency, time.Since(start))
	return res, err
}
