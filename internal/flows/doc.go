// Package flows contains pure-function orchestrators for every Client
// operation that spans more than one backend call or local component.
//
// Each flow function (RunLogin, RunVerifyTwoFactor, RunVerifyDevice,
// RunLogout, RunResendVerification, RunForgotPassword) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. This keeps the Client type thin and the flows testable
// against a fake backend.
//
// # Architecture boundaries
//
// Flow functions coordinate the backend API, the pending-challenge store, the
// session writer, limiters, audit, and metrics. They do NOT own any of these
// resources; ownership stays with the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAuthClient (to avoid import cycles).
//   - Log passwords, codes, or tokens.
package flows
