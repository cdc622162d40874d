package goAuthClient

import (
	internalmetrics "github.com/MrEthical07/goAuthClient/internal/metrics"
)

// MetricID identifies a counter or histogram of the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess               = internalmetrics.MetricLoginSuccess
	MetricLoginFailure               = internalmetrics.MetricLoginFailure
	MetricTwoFactorRequired          = internalmetrics.MetricTwoFactorRequired
	MetricTwoFactorSuccess           = internalmetrics.MetricTwoFactorSuccess
	MetricTwoFactorFailure           = internalmetrics.MetricTwoFactorFailure
	MetricDeviceVerificationRequired = internalmetrics.MetricDeviceVerificationRequired
	MetricDeviceVerified             = internalmetrics.MetricDeviceVerified
	MetricDeviceVerifyFailure        = internalmetrics.MetricDeviceVerifyFailure
	MetricLogout                     = internalmetrics.MetricLogout
	MetricLogoutRemoteFailure        = internalmetrics.MetricLogoutRemoteFailure
	MetricResendVerification         = internalmetrics.MetricResendVerification
	MetricForgotPassword             = internalmetrics.MetricForgotPassword
	MetricCooldownHit                = internalmetrics.MetricCooldownHit
	MetricRefreshStarted             = internalmetrics.MetricRefreshStarted
	MetricRefreshCoalesced           = internalmetrics.MetricRefreshCoalesced
	MetricRefreshSucceeded           = internalmetrics.MetricRefreshSucceeded
	MetricRefreshRejected            = internalmetrics.MetricRefreshRejected
	MetricRefreshFailed              = internalmetrics.MetricRefreshFailed
	MetricSessionSaved               = internalmetrics.MetricSessionSaved
	MetricSessionCleared             = internalmetrics.MetricSessionCleared
	MetricGateRetried                = internalmetrics.MetricGateRetried
	MetricGateNotAuthenticated       = internalmetrics.MetricGateNotAuthenticated
	MetricGateRefreshFailed          = internalmetrics.MetricGateRefreshFailed
	MetricGateProactiveRefresh       = internalmetrics.MetricGateProactiveRefresh
	MetricRefreshLatency             = internalmetrics.MetricRefreshLatency
)

// Metrics holds atomic counters and the optional refresh latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false
// every operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
