// Package transport provides the authenticated HTTP transport used for every
// bearer-protected call.
//
// # Gate
//
// [Gate] is an [net/http.RoundTripper] that:
//
//   - attaches "Authorization: Bearer <token>" from the session cache,
//   - fails locally with [ErrNotAuthenticated] when no token is cached,
//   - on 401 asks the session for a refreshed token and retries exactly once.
//
// Concurrent 401s share a single refresh because the token source coalesces
// refresh calls. A request that was sent with a token another caller has
// already replaced is retried with the current token without a refresh.
//
// # Architecture boundaries
//
// The Gate owns no credentials. It reads and refreshes through a [TokenSource]
// (normally *session.Manager) and never writes to storage.
//
// # What this package must NOT do
//
//   - Retry more than once per request.
//   - Retry on transport errors or non-401 statuses.
//   - Log token values.
package transport
