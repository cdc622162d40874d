// Package api is the JSON client for the authentication backend.
//
// Public endpoints (login, 2FA, device verification, refresh, password reset)
// go through a plain [net/http.Client] with a per-call timeout. Bearer
// endpoints go through the authorized client, normally backed by a
// transport.Gate, which owns the Authorization header and the 401 retry.
//
// Failures carry their HTTP status and the server's {message, code} body as
// an [*Error]. Transport failures wrap [ErrNetwork].
package api
