// Package stores holds short-lived, in-memory records for the multi-step
// login flow: the pending two-factor or device-verification challenge.
//
// # Design
//
// A [ChallengeStore] holds at most one challenge. Starting a new one discards
// the previous. The password needed to resume login after device
// verification is sealed with ChaCha20-Poly1305 under a per-challenge random
// key and wiped when the challenge is discarded. Records expire after their
// TTL and enforce an attempt limit.
//
// # Architecture boundaries
//
// This package owns the lifetime of challenge records. It does NOT talk to
// the backend or decide state transitions; those belong to internal/flows.
//
// # What this package must NOT do
//
//   - Import goAuthClient or any sibling internal package.
//   - Persist challenges or log their secrets.
//   - Hand out the password except through [ChallengeStore.OpenPassword].
package stores
