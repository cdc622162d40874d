package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/internal/api"
	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/internal/stores"
	"github.com/MrEthical07/goAuthClient/session"
)

// Outcome is where a login step left the state machine.
type Outcome int

const (
	OutcomeAuthenticated Outcome = iota + 1
	OutcomeTwoFactorRequired
	OutcomeDeviceVerificationRequired
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Outcome  Outcome
	TenantID string
	// Message is the server's human-readable hint, if any.
	Message string
}

// LoginDeps captures login, 2FA, and device-verification dependencies.
type LoginDeps struct {
	ChallengeTTL         time.Duration
	MaxTwoFactorAttempts int
	DeviceName           string

	API         AuthAPI
	Challenges  *stores.ChallengeStore
	Fingerprint func(context.Context) (string, error)
	SaveSession func(context.Context, session.Credentials) error
	Logger      zerolog.Logger

	Observe Observe
	Errors  Errors
}

func (d *LoginDeps) ready() bool {
	return d.API != nil && d.Challenges != nil && d.Fingerprint != nil && d.SaveSession != nil
}

// RunLogin submits email and password. Any pending challenge is discarded
// first. Nothing is stored unless the backend returns a token pair.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps.Observe.defaults()
	if !deps.ready() {
		return nil, deps.Errors.ClientNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", deps.Errors.InvalidInput)
	}

	deps.Challenges.Discard()

	fp, err := deps.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	return submitLogin(ctx, email, password, fp, deps)
}

func submitLogin(ctx context.Context, email, password, fp string, deps LoginDeps) (*LoginResult, error) {
	resp, err := deps.API.Login(ctx, api.LoginRequest{
		Email:             email,
		Password:          password,
		DeviceFingerprint: fp,
		DeviceName:        deps.DeviceName,
	})
	if err != nil {
		if api.StatusOf(err) == http.StatusForbidden && api.CodeOf(err) == api.CodeDeviceVerificationRequired {
			var apiErr *api.Error
			errors.As(err, &apiErr)
			return beginChallenge(ctx, email, password, stores.ChallengeDeviceVerification, "", apiErr.Message, deps)
		}
		return nil, loginFailure(ctx, email, err, deps)
	}

	switch {
	case resp.AccessToken != "" && resp.RefreshToken != "":
		return completeLogin(ctx, email, resp.AccessToken, resp.RefreshToken, resp.User, deps, deps.Observe.Metrics.LoginSuccess)
	case resp.Requires2FA:
		return beginChallenge(ctx, email, password, stores.ChallengeTwoFactor, resp.ChallengeToken, resp.Message, deps)
	case resp.RequiresDeviceVerification:
		return beginChallenge(ctx, email, password, stores.ChallengeDeviceVerification, resp.ChallengeToken, resp.Message, deps)
	default:
		return nil, loginFailure(ctx, email, fmt.Errorf("%w: login response carried neither tokens nor a challenge", api.ErrNetwork), deps)
	}
}

func loginFailure(ctx context.Context, email string, err error, deps LoginDeps) error {
	mapped := err
	reason := "backend"
	switch {
	case errors.Is(err, api.ErrInvalidRequest):
		mapped = fmt.Errorf("%w: %w", deps.Errors.InvalidInput, err)
		reason = "invalid_input"
	case api.StatusOf(err) == http.StatusUnauthorized || api.StatusOf(err) == http.StatusBadRequest:
		mapped = fmt.Errorf("%w: %w", deps.Errors.InvalidCredentials, err)
		reason = "invalid_credentials"
	case errors.Is(err, api.ErrNetwork):
		reason = "network"
	}

	deps.Observe.MetricInc(deps.Observe.Metrics.LoginFailure)
	deps.Observe.EmitAudit(ctx, deps.Observe.Events.LoginFailure, false, redact.Email(email), mapped, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	deps.Logger.Info().Str("email", redact.Email(email)).Str("reason", reason).Msg("login failed")
	return mapped
}

func beginChallenge(ctx context.Context, email, password string, kind stores.ChallengeKind, challengeToken, message string, deps LoginDeps) (*LoginResult, error) {
	if _, err := deps.Challenges.Begin(email, password, kind, challengeToken, deps.ChallengeTTL); err != nil {
		return nil, err
	}

	outcome := OutcomeTwoFactorRequired
	metric := deps.Observe.Metrics.TwoFactorRequired
	event := deps.Observe.Events.TwoFactorRequired
	if kind == stores.ChallengeDeviceVerification {
		outcome = OutcomeDeviceVerificationRequired
		metric = deps.Observe.Metrics.DeviceVerificationNeeded
		event = deps.Observe.Events.DeviceVerification
	}
	deps.Observe.MetricInc(metric)
	deps.Observe.EmitAudit(ctx, event, true, redact.Email(email), nil, nil)
	deps.Logger.Debug().Str("email", redact.Email(email)).Str("challenge", kind.String()).Msg("login challenge pending")

	return &LoginResult{Outcome: outcome, Message: message}, nil
}

func completeLogin(ctx context.Context, email, access, refresh string, user *api.User, deps LoginDeps, metric int) (*LoginResult, error) {
	creds := session.Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		TenantID:     api.TenantOf(access, user),
		UserEmail:    email,
	}
	if user != nil && user.Email != "" {
		creds.UserEmail = user.Email
	}
	if err := deps.SaveSession(ctx, creds); err != nil {
		deps.Logger.Error().Err(err).Msg("login succeeded but credentials could not be stored")
		return nil, err
	}

	deps.Observe.MetricInc(metric)
	deps.Observe.EmitAudit(ctx, deps.Observe.Events.LoginSuccess, true, redact.Email(email), nil, func() map[string]string {
		return map[string]string{"tenant_id": creds.TenantID}
	})
	deps.Logger.Info().Str("email", redact.Email(email)).Str("tenant_id", creds.TenantID).Msg("login succeeded")
	return &LoginResult{Outcome: OutcomeAuthenticated, TenantID: creds.TenantID}, nil
}

// pending returns the live challenge of kind or the mapped error.
func pending(kind stores.ChallengeKind, deps LoginDeps) (stores.Challenge, error) {
	ch, err := deps.Challenges.Current()
	switch {
	case errors.Is(err, stores.ErrChallengeExpired):
		return stores.Challenge{}, deps.Errors.ChallengeExpired
	case err != nil:
		return stores.Challenge{}, deps.Errors.NoPendingChallenge
	case ch.Kind != kind:
		return stores.Challenge{}, deps.Errors.NoPendingChallenge
	}
	return ch, nil
}

// RunVerifyTwoFactor submits the code for the pending 2FA challenge. A wrong
// code keeps the challenge until MaxTwoFactorAttempts is reached.
func RunVerifyTwoFactor(ctx context.Context, code string, deps LoginDeps) (*LoginResult, error) {
	deps.Observe.defaults()
	if !deps.ready() {
		return nil, deps.Errors.ClientNotReady
	}

	ch, err := pending(stores.ChallengeTwoFactor, deps)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", deps.Errors.InvalidInput)
	}

	fp, err := deps.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := deps.API.VerifyTwoFactor(ctx, api.VerifyTwoFactorRequest{
		Email:             ch.Email,
		Code:              code,
		DeviceFingerprint: fp,
	})
	if err != nil {
		if !wrongAnswer(err) {
			return nil, err
		}
		return nil, twoFactorFailure(ctx, ch, err, deps)
	}

	deps.Challenges.Discard()
	return completeLogin(ctx, ch.Email, tok.AccessToken, tok.RefreshToken, tok.User, deps, deps.Observe.Metrics.TwoFactorSuccess)
}

func wrongAnswer(err error) bool {
	if errors.Is(err, api.ErrInvalidRequest) {
		return true
	}
	switch api.StatusOf(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func twoFactorFailure(ctx context.Context, ch stores.Challenge, err error, deps LoginDeps) error {
	deps.Observe.MetricInc(deps.Observe.Metrics.TwoFactorFailure)

	exceeded, recErr := deps.Challenges.RecordFailure(deps.MaxTwoFactorAttempts)
	if recErr != nil {
		if errors.Is(recErr, stores.ErrChallengeExpired) {
			return deps.Errors.ChallengeExpired
		}
		return deps.Errors.NoPendingChallenge
	}
	if exceeded {
		deps.Observe.EmitAudit(ctx, deps.Observe.Events.TwoFactorExceeded, false, redact.Email(ch.Email), deps.Errors.TooManyAttempts, nil)
		deps.Logger.Warn().Str("email", redact.Email(ch.Email)).Msg("two-factor attempts exceeded; challenge discarded")
		return fmt.Errorf("%w: %w", deps.Errors.TooManyAttempts, err)
	}

	deps.Observe.EmitAudit(ctx, deps.Observe.Events.TwoFactorFailure, false, redact.Email(ch.Email), deps.Errors.InvalidCode, func() map[string]string {
		return map[string]string{"attempt": fmt.Sprint(ch.Attempts + 1)}
	})
	return fmt.Errorf("%w: %w", deps.Errors.InvalidCode, err)
}

// RunVerifyDevice confirms the device with the emailed token and resumes the
// login with the sealed password. The result may be another challenge.
func RunVerifyDevice(ctx context.Context, token string, deps LoginDeps) (*LoginResult, error) {
	deps.Observe.defaults()
	if !deps.ready() {
		return nil, deps.Errors.ClientNotReady
	}

	ch, err := pending(stores.ChallengeDeviceVerification, deps)
	if err != nil {
		return nil, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", deps.Errors.InvalidInput)
	}

	if err := deps.API.VerifyDevice(ctx, token); err != nil {
		if status := api.StatusOf(err); (status < 400 || status > 499) && !errors.Is(err, api.ErrInvalidRequest) {
			return nil, err
		}
		deps.Challenges.Discard()
		deps.Observe.MetricInc(deps.Observe.Metrics.DeviceVerifyFailure)
		deps.Observe.EmitAudit(ctx, deps.Observe.Events.DeviceVerifyFailure, false, redact.Email(ch.Email), deps.Errors.InvalidOrExpiredToken, nil)
		return nil, fmt.Errorf("%w: %w", deps.Errors.InvalidOrExpiredToken, err)
	}
	deps.Observe.MetricInc(deps.Observe.Metrics.DeviceVerified)
	deps.Observe.EmitAudit(ctx, deps.Observe.Events.DeviceVerified, true, redact.Email(ch.Email), nil, nil)

	password, err := deps.Challenges.OpenPassword()
	deps.Challenges.Discard()
	if err != nil {
		return nil, deps.Errors.ChallengeExpired
	}
	defer wipe(password)

	fp, err := deps.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	return submitLogin(ctx, ch.Email, string(password), fp, deps)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
