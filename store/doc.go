// Package store provides the durable key-value persistence used for client credentials:
// access and refresh tokens, user email, tenant id, and the device fingerprint.
//
// # Atomicity
//
// Every backend implements [Store.Update], a multi-key write that readers observe either
// completely or not at all. The session layer uses it to write the token pair and tenant id
// together, so a pair from one issuance is never split across a partial write.
// [Store.GetMany] is the matching read: it returns one committed version of the keys, so a
// restore never pairs an access token with a refresh token from another issuance.
//
// # Backends
//
//   - [MemoryStore]: process-local map, used in tests and short-lived tools.
//   - [RedisStore]: go-redis client with a key namespace; multi-key writes use MULTI/EXEC and reads MGET.
//   - [FileStore]: a single JSON document replaced by rename on every write.
//
// # What this package must NOT do
//
//   - Interpret tokens or decide authentication state.
//   - Import session, device, or the root package.
//   - Log stored values.
package store
