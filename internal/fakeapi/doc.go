// Package fakeapi is an in-process authentication backend implementing the
// endpoints the client consumes. Tests and cmd/refresh-loadtest run against
// it through httptest.
//
// Refresh tokens are single-use: every successful refresh rotates them, so a
// duplicate refresh with the same token is rejected. That makes duplicate
// refresh calls observable as failures, not just as counter increments.
package fakeapi
