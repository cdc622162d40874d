package goAuthClient

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/internal/stores"
	"github.com/MrEthical07/goAuthClient/session"
)

// State is the position of the client in the login state machine.
type State uint8

const (
	StateUnauthenticated State = iota
	StatePendingTwoFactor
	StatePendingDeviceVerification
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePendingTwoFactor:
		return "pending_two_factor"
	case StatePendingDeviceVerification:
		return "pending_device_verification"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

func stateOfOutcome(o flows.Outcome) State {
	switch o {
	case flows.OutcomeAuthenticated:
		return StateAuthenticated
	case flows.OutcomeTwoFactorRequired:
		return StatePendingTwoFactor
	case flows.OutcomeDeviceVerificationRequired:
		return StatePendingDeviceVerification
	default:
		return StateUnauthenticated
	}
}

func stateOfChallenge(k stores.ChallengeKind) State {
	if k == stores.ChallengeDeviceVerification {
		return StatePendingDeviceVerification
	}
	return StatePendingTwoFactor
}

// LoginResult is returned by the login steps.
type LoginResult struct {
	State    State
	TenantID string
	// Message is the server's hint for the user, e.g. "Check your email".
	Message string
}

// PendingChallengeInfo describes the pending challenge without secrets.
type PendingChallengeInfo struct {
	State     State
	Email     string // redacted
	ExpiresAt time.Time
	Attempts  int
}

// LogoutResult reports a logout. The local session is cleared in every case;
// RemoteErr and LocalErr are informational.
type LogoutResult = flows.LogoutResult

// SessionState is the derived view of the stored session.
type SessionState = session.State

// AuditEvent is one audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the client's dispatcher.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type LoggerSink = internalaudit.LoggerSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink writes audit events through logger.
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}
