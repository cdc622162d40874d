// Package metrics provides lock-free counters and a refresh latency
// histogram for the auth client.
//
// Counters live in cache-line-padded uint64 slots and are incremented with
// [sync/atomic.AddUint64]. The histogram has 8 fixed buckets (25ms up to
// +Inf). The write path does not allocate.
//
// Export (Prometheus, OTel) lives in metrics/export and reads [Snapshot]
// values. This package performs no I/O.
package metrics
