package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goAuthClient/internal/api"
	"github.com/MrEthical07/goAuthClient/internal/limiters"
	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/internal/stores"
)

// RecoveryDeps captures resend-verification and forgot-password dependencies.
type RecoveryDeps struct {
	API           AuthAPI
	Challenges    *stores.ChallengeStore
	ResendLimiter *limiters.CooldownLimiter
	ForgotLimiter *limiters.CooldownLimiter

	Observe Observe
	Errors  Errors
}

// RunResendVerification asks the backend to resend the code or link for the
// pending challenge.
func RunResendVerification(ctx context.Context, deps RecoveryDeps) error {
	deps.Observe.defaults()
	if deps.API == nil || deps.Challenges == nil {
		return deps.Errors.ClientNotReady
	}

	ch, err := deps.Challenges.Current()
	switch {
	case errors.Is(err, stores.ErrChallengeExpired):
		return deps.Errors.ChallengeExpired
	case err != nil:
		return deps.Errors.NoPendingChallenge
	}

	kind := api.VerificationTwoFactor
	if ch.Kind == stores.ChallengeDeviceVerification {
		kind = api.VerificationDevice
	}

	if err := allow(ctx, deps.ResendLimiter, ch.Email+":"+kind, deps); err != nil {
		return err
	}
	if err := deps.API.ResendVerification(ctx, ch.Email, kind); err != nil {
		_ = deps.ResendLimiter.Reset(ctx, ch.Email+":"+kind)
		return err
	}

	deps.Observe.MetricInc(deps.Observe.Metrics.ResendVerification)
	deps.Observe.EmitAudit(ctx, deps.Observe.Events.ResendVerification, true, redact.Email(ch.Email), nil, func() map[string]string {
		return map[string]string{"type": kind}
	})
	return nil
}

// RunForgotPassword starts a password reset for email.
func RunForgotPassword(ctx context.Context, email string, deps RecoveryDeps) error {
	deps.Observe.defaults()
	if deps.API == nil {
		return deps.Errors.ClientNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", deps.Errors.InvalidInput)
	}

	if err := allow(ctx, deps.ForgotLimiter, email, deps); err != nil {
		return err
	}
	if err := deps.API.ForgotPassword(ctx, email); err != nil {
		_ = deps.ForgotLimiter.Reset(ctx, email)
		if errors.Is(err, api.ErrInvalidRequest) {
			return fmt.Errorf("%w: %w", deps.Errors.InvalidInput, err)
		}
		return err
	}

	deps.Observe.MetricInc(deps.Observe.Metrics.ForgotPassword)
	deps.Observe.EmitAudit(ctx, deps.Observe.Events.ForgotPassword, true, redact.Email(email), nil, nil)
	return nil
}

func allow(ctx context.Context, l *limiters.CooldownLimiter, key string, deps RecoveryDeps) error {
	err := l.Allow(ctx, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, limiters.ErrCooldown) {
		deps.Observe.MetricInc(deps.Observe.Metrics.CooldownHit)
		return fmt.Errorf("%w: %w", deps.Errors.ResendCooldown, err)
	}
	return err
}
