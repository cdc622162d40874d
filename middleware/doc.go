// Package middleware exposes the server-side bearer guard used by the
// in-process backend that tests and load drivers run against.
//
// # Guards
//
//   - [RequireBearer] rejects requests without a valid "Authorization: Bearer"
//     token and injects the verified claims into the request context.
//   - [ClaimsFromContext] reads them back in handlers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into a [Verifier] call. It does NOT
// decide what makes a token valid; that is the verifier's job.
//
// # What this package must NOT do
//
//   - Issue or refresh tokens.
//   - Reveal why a token was rejected in the response body beyond a code.
package middleware
