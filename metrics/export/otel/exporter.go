package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
}

// member is one counter of a family, told apart by a single attribute.
type member struct {
	id    goAuthClient.MetricID
	value string
}

type family struct {
	name    string
	help    string
	key     attribute.Key
	members []member
}

// families maps the flat client counters onto one instrument per concern.
var families = []family{
	{
		name: "authclient_refresh_total",
		help: "Refresh requests by outcome. coalesced counts callers that joined an in-flight call.",
		key:  "outcome",
		members: []member{
			{goAuthClient.MetricRefreshStarted, "started"},
			{goAuthClient.MetricRefreshCoalesced, "coalesced"},
			{goAuthClient.MetricRefreshSucceeded, "succeeded"},
			{goAuthClient.MetricRefreshRejected, "rejected"},
			{goAuthClient.MetricRefreshFailed, "failed"},
		},
	},
	{
		name: "authclient_gate_total",
		help: "Authenticated transport decisions by result.",
		key:  "result",
		members: []member{
			{goAuthClient.MetricGateRetried, "retried"},
			{goAuthClient.MetricGateNotAuthenticated, "not_authenticated"},
			{goAuthClient.MetricGateRefreshFailed, "refresh_failed"},
			{goAuthClient.MetricGateProactiveRefresh, "proactive_refresh"},
		},
	},
	{
		name: "authclient_login_total",
		help: "Login submissions by outcome.",
		key:  "outcome",
		members: []member{
			{goAuthClient.MetricLoginSuccess, "success"},
			{goAuthClient.MetricLoginFailure, "failure"},
			{goAuthClient.MetricTwoFactorRequired, "two_factor_required"},
			{goAuthClient.MetricDeviceVerificationRequired, "device_verification_required"},
		},
	},
	{
		name: "authclient_challenge_total",
		help: "Second-step verifications by result.",
		key:  "result",
		members: []member{
			{goAuthClient.MetricTwoFactorSuccess, "two_factor_success"},
			{goAuthClient.MetricTwoFactorFailure, "two_factor_failure"},
			{goAuthClient.MetricDeviceVerified, "device_verified"},
			{goAuthClient.MetricDeviceVerifyFailure, "device_verify_failure"},
			{goAuthClient.MetricResendVerification, "resend"},
			{goAuthClient.MetricCooldownHit, "cooldown_hit"},
		},
	},
	{
		name: "authclient_session_total",
		help: "Session lifecycle changes.",
		key:  "change",
		members: []member{
			{goAuthClient.MetricSessionSaved, "saved"},
			{goAuthClient.MetricSessionCleared, "cleared"},
			{goAuthClient.MetricLogout, "logout"},
			{goAuthClient.MetricLogoutRemoteFailure, "logout_remote_failure"},
			{goAuthClient.MetricForgotPassword, "forgot_password"},
		},
	},
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	ids        []goAuthClient.MetricID
	attrs      []metric.ObserveOption
}

// OTelExporter owns the callback registration; Close unregisters it.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	families       []observedFamily
	callersPerCall metric.Float64ObservableGauge
	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	bucketAttrs    []metric.ObserveOption
	auditDropped   metric.Int64ObservableCounter
}

// NewOTelExporter observes the metrics of client through meter.
func NewOTelExporter(meter metric.Meter, client *goAuthClient.Client) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, client)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	observables := make([]metric.Observable, 0, len(families)+4)

	for _, f := range families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.name, err)
		}
		of := observedFamily{instrument: ins}
		for _, m := range f.members {
			of.ids = append(of.ids, m.id)
			of.attrs = append(of.attrs, metric.WithAttributes(f.key.String(m.value)))
		}
		e.families = append(e.families, of)
		observables = append(observables, ins)
	}

	var err error
	e.callersPerCall, err = meter.Float64ObservableGauge(
		"authclient_refresh_callers_per_call",
		metric.WithDescription("Refresh requests served per refresh network call."),
	)
	if err != nil {
		return nil, fmt.Errorf("create callers per call gauge: %w", err)
	}
	e.latencyBuckets, err = meter.Int64ObservableGauge(
		"authclient_refresh_latency_seconds_bucket",
		metric.WithDescription("Cumulative refresh latency bucket counts, labelled by upper bound."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	e.latencyCount, err = meter.Int64ObservableGauge(
		"authclient_refresh_latency_seconds_count",
		metric.WithDescription("Refresh network calls timed."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(
		"authclient_audit_dropped_total",
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.callersPerCall, e.latencyBuckets, e.latencyCount, e.auditDropped)

	for _, bound := range internaldefs.HistogramBounds {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", strconv.FormatFloat(bound, 'g', -1, 64))))
	}
	e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", "+Inf")))

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, f := range e.families {
		for i, id := range f.ids {
			o.ObserveInt64(f.instrument, int64(snap.Counters[id]), f.attrs[i])
		}
	}

	// Undefined before the first refresh call.
	if calls := snap.Counters[goAuthClient.MetricRefreshStarted]; calls > 0 {
		callers := calls + snap.Counters[goAuthClient.MetricRefreshCoalesced]
		o.ObserveFloat64(e.callersPerCall, float64(callers)/float64(calls))
	}

	if raw, ok := snap.Histograms[goAuthClient.MetricRefreshLatency]; ok {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, attrs := range e.bucketAttrs {
			o.ObserveInt64(e.latencyBuckets, int64(cumulative[i]), attrs)
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
