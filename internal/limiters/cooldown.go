package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/rate"
)

// CooldownConfig configures a [CooldownLimiter].
type CooldownConfig struct {
	Enabled  bool
	Cooldown time.Duration
}

// ErrCooldown is returned while an identifier is cooling down.
var ErrCooldown = errors.New("action cooling down")

// CooldownError carries the time left until the action is allowed again.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: retry in %s", ErrCooldown, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// CooldownLimiter allows one action per identifier per cooldown.
type CooldownLimiter struct {
	window    rate.Window
	namespace string
	config    CooldownConfig
}

// NewCooldownLimiter creates a limiter storing its keys under namespace.
func NewCooldownLimiter(window rate.Window, namespace string, cfg CooldownConfig) *CooldownLimiter {
	return &CooldownLimiter{window: window, namespace: namespace, config: cfg}
}

func (l *CooldownLimiter) key(identifier string) string {
	return l.namespace + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

// Allow reserves the action for identifier. It returns a *CooldownError when
// the previous reservation is still running.
func (l *CooldownLimiter) Allow(ctx context.Context, identifier string) error {
	if l == nil || !l.config.Enabled || l.config.Cooldown <= 0 || identifier == "" {
		return nil
	}

	ok, remaining, err := l.window.Acquire(ctx, l.key(identifier), l.config.Cooldown)
	if err != nil {
		return err
	}
	if !ok {
		return &CooldownError{Remaining: remaining}
	}
	return nil
}

// Reset releases the reservation, e.g. after the guarded call failed.
func (l *CooldownLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil || !l.config.Enabled || identifier == "" {
		return nil
	}
	return l.window.Release(ctx, l.key(identifier))
}
