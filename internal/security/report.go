package security

import "time"

// Report summarizes the security-relevant posture of a client config.
type Report struct {
	TLS                  bool
	StorageBackend       string
	DurableStorage       bool
	SharedStorage        bool
	Diagnostics          bool
	ProactiveRefresh     bool
	RefreshTimeout       time.Duration
	ChallengeTTL         time.Duration
	MaxTwoFactorAttempts int
	CooldownActive       bool
	AuditEnabled         bool
	MetricsEnabled       bool
	Warnings             []string
}

type ReportInput struct {
	BaseURLScheme        string
	BaseURLHost          string
	StorageBackend       string
	CustomStore          bool
	Diagnostics          bool
	RefreshBefore        time.Duration
	RefreshTimeout       time.Duration
	ChallengeTTL         time.Duration
	MaxTwoFactorAttempts int
	ResendCooldown       time.Duration
	AuditEnabled         bool
	MetricsEnabled       bool
}

// Warning texts, stable for callers that match on them.
const (
	WarnPlaintextTransport = "base URL is not https; tokens cross the network in clear text"
	WarnDiagnostics        = "diagnostics are on; token prefixes and fingerprints reach the logs"
	WarnVolatileStorage    = "memory storage; the session is lost when the process exits"
	WarnLongChallenge      = "pending challenges live longer than 15m"
	WarnNoCooldown         = "resend cooldown is off"
)

const longChallenge = 15 * time.Minute

func BuildReport(input ReportInput) Report {
	tls := input.BaseURLScheme == "https" || isLoopback(input.BaseURLHost)
	durable := input.CustomStore || input.StorageBackend != "memory"

	r := Report{
		TLS:                  input.BaseURLScheme == "https",
		StorageBackend:       input.StorageBackend,
		DurableStorage:       durable,
		SharedStorage:        input.StorageBackend == "redis",
		Diagnostics:          input.Diagnostics,
		ProactiveRefresh:     input.RefreshBefore > 0,
		RefreshTimeout:       input.RefreshTimeout,
		ChallengeTTL:         input.ChallengeTTL,
		MaxTwoFactorAttempts: input.MaxTwoFactorAttempts,
		CooldownActive:       input.ResendCooldown > 0,
		AuditEnabled:         input.AuditEnabled,
		MetricsEnabled:       input.MetricsEnabled,
	}

	if !tls {
		r.Warnings = append(r.Warnings, WarnPlaintextTransport)
	}
	if input.Diagnostics {
		r.Warnings = append(r.Warnings, WarnDiagnostics)
	}
	if !durable {
		r.Warnings = append(r.Warnings, WarnVolatileStorage)
	}
	if input.ChallengeTTL > longChallenge {
		r.Warnings = append(r.Warnings, WarnLongChallenge)
	}
	if !r.CooldownActive {
		r.Warnings = append(r.Warnings, WarnNoCooldown)
	}
	return r
}

// isLoopback accepts plain http to the local machine, e.g. a dev backend.
func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
