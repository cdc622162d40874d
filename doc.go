// Package goAuthClient is the authentication and session core of an API
// client whose backend issues short-lived access tokens, rotating refresh
// tokens, two-factor challenges and new-device verification.
//
// [Builder] assembles a [Client] from a [Config]. The Client drives the login
// state machine (password, optional 2FA, optional device verification),
// persists credentials through a [store.Store], and hands out an
// [net/http.Client] for business calls that attaches the bearer token and
// retries once after a single-flight refresh on 401.
//
// # Architecture boundaries
//
// The root package is the public surface. Session ownership lives in
// session, the retrying RoundTripper in transport, device identity in
// device and credential persistence in store. Flow orchestration, the
// backend HTTP contract, audit and metrics live under internal/.
//
// # Concurrency
//
// All Client methods are safe for concurrent use. Login steps are
// serialized; business calls through [Client.HTTPClient] never block each
// other except while waiting for a shared refresh.
package goAuthClient
