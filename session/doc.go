// Package session owns the client's authenticated session: the cached credential set, its
// durable copy in a [store.Store], and the single-flight refresh protocol.
//
// # Serialization boundary
//
// All reads and writes of tokens go through [Manager]. Reads ([Manager.AccessToken],
// [Manager.State]) hit an in-memory cache and never block on I/O. Writes ([Manager.Save],
// [Manager.Clear], refresh results) are serialized, written to the store atomically, and
// only then published to the cache, so the derived [State] never drifts from the stored
// credentials.
//
// # Single-flight refresh
//
// At most one refresh network call is in flight. Callers that arrive while one is running
// wait on it and receive the same outcome. The network call runs detached from the
// cancellation of whichever caller started it; a cancelled caller only abandons its own wait.
// A rejected refresh token clears the session.
//
// # What this package must NOT do
//
//   - Build HTTP requests (the [Refresher] does).
//   - Log tokens unless [Options.LogTokenPrefixes] is set, and then only a prefix.
//   - Import the root package.
package session
