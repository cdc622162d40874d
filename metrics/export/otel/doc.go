// Package otel registers OpenTelemetry observable instruments for client
// metrics.
//
// Counters are grouped into one instrument per concern and told apart by an
// attribute: authclient_refresh_total{outcome}, authclient_gate_total{result}
// and so on. authclient_refresh_callers_per_call reports how many refresh
// requests each network call served, which is the coalescing the session
// manager achieves. A single callback reads
// [goAuthClient.Client.MetricsSnapshot] on each collection. Callers own the
// MeterProvider.
package otel
