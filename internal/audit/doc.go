// Package audit delivers client authentication events to a [Sink].
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zerolog, no-op).
//   - [Dispatcher]: buffered async relay, either dropping or blocking when full.
//   - [Event]: one record with timestamp, type, redacted email, tenant and metadata.
//
// This package does not decide which events exist; the client and its flows
// do. Events never carry tokens or passwords.
package audit
