// Package jwt reads access-token claims on the client side and mints tokens for the
// in-process fake backend.
//
// # Inspection
//
// [Inspect] decodes claims WITHOUT verifying the signature. The client never holds the
// server's verification key; it only needs the expiry to schedule proactive refresh and the
// tenant claim as a fallback when the server omits it from the user object. Nothing in this
// package grants trust to a token.
//
// # Issuance
//
// [Issuer] signs and verifies tokens with HS256 or Ed25519. It backs the fake API used by
// tests and the load-test command.
//
// # What this package must NOT do
//
//   - Make authentication decisions from unverified claims.
//   - Perform I/O.
package jwt
