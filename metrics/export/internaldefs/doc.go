// Package internaldefs holds the flat counter names exported to Prometheus
// and the refresh latency bounds and bucket helpers both exporters share.
package internaldefs
