package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Logins that produced a session."},
	{ID: goAuthClient.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Login submissions that failed."},
	{ID: goAuthClient.MetricTwoFactorRequired, Name: "authclient_two_factor_required_total", Help: "Logins that required a second factor."},
	{ID: goAuthClient.MetricTwoFactorSuccess, Name: "authclient_two_factor_success_total", Help: "Accepted two-factor codes."},
	{ID: goAuthClient.MetricTwoFactorFailure, Name: "authclient_two_factor_failure_total", Help: "Rejected two-factor codes."},
	{ID: goAuthClient.MetricDeviceVerificationRequired, Name: "authclient_device_verification_required_total", Help: "Logins that required device verification."},
	{ID: goAuthClient.MetricDeviceVerified, Name: "authclient_device_verified_total", Help: "Completed device verifications."},
	{ID: goAuthClient.MetricDeviceVerifyFailure, Name: "authclient_device_verify_failure_total", Help: "Failed device verifications."},
	{ID: goAuthClient.MetricLogout, Name: "authclient_logout_total", Help: "Logouts."},
	{ID: goAuthClient.MetricLogoutRemoteFailure, Name: "authclient_logout_remote_failure_total", Help: "Logouts whose server call failed."},
	{ID: goAuthClient.MetricResendVerification, Name: "authclient_resend_verification_total", Help: "Verification resend requests."},
	{ID: goAuthClient.MetricForgotPassword, Name: "authclient_forgot_password_total", Help: "Password reset requests."},
	{ID: goAuthClient.MetricCooldownHit, Name: "authclient_cooldown_hit_total", Help: "Requests refused by a client-side cooldown."},
	{ID: goAuthClient.MetricRefreshStarted, Name: "authclient_refresh_started_total", Help: "Refresh network calls started."},
	{ID: goAuthClient.MetricRefreshCoalesced, Name: "authclient_refresh_coalesced_total", Help: "Refresh requests that joined an in-flight call."},
	{ID: goAuthClient.MetricRefreshSucceeded, Name: "authclient_refresh_succeeded_total", Help: "Successful refreshes."},
	{ID: goAuthClient.MetricRefreshRejected, Name: "authclient_refresh_rejected_total", Help: "Refreshes rejected by the server."},
	{ID: goAuthClient.MetricRefreshFailed, Name: "authclient_refresh_failed_total", Help: "Refreshes that failed transiently."},
	{ID: goAuthClient.MetricSessionSaved, Name: "authclient_session_saved_total", Help: "Sessions stored."},
	{ID: goAuthClient.MetricSessionCleared, Name: "authclient_session_cleared_total", Help: "Sessions cleared."},
	{ID: goAuthClient.MetricGateRetried, Name: "authclient_gate_retried_total", Help: "Requests retried after a 401."},
	{ID: goAuthClient.MetricGateNotAuthenticated, Name: "authclient_gate_not_authenticated_total", Help: "Requests refused locally without a token."},
	{ID: goAuthClient.MetricGateRefreshFailed, Name: "authclient_gate_refresh_failed_total", Help: "401 responses that could not be recovered."},
	{ID: goAuthClient.MetricGateProactiveRefresh, Name: "authclient_gate_proactive_refresh_total", Help: "Refreshes performed before sending."},
}

var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "authclient_refresh_latency_seconds", Help: "Refresh network call latency."},
}

// HistogramBounds are the upper bounds in seconds, matching the buckets of
// the in-process histogram. The last bucket is +Inf.
var HistogramBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
