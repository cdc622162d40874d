// Package prometheus exposes client metrics through a
// [github.com/prometheus/client_golang/prometheus.Collector].
//
// [NewCollector] reads [goAuthClient.Client.MetricsSnapshot] at scrape time.
// Register it with your own registry or mount [Collector.Handler]. Counters
// are named authclient_*_total; the single histogram is
// authclient_refresh_latency_seconds.
package prometheus
