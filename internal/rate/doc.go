// Package rate provides the cooldown primitives behind the client-side
// limiters in internal/limiters.
//
// # Window semantics
//
// A [Window] grants a key once per TTL. The first Acquire in a window wins;
// later calls learn how long remains. Backends:
//   - [MemoryWindow]: process-local map.
//   - [RedisWindow]: SET NX PX, shared across processes using the same Redis.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goAuthClient module.
package rate
