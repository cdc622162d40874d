// Package limiters provides the client-side throttles of the auth flows,
// built on top of the internal/rate primitives.
//
// # Limiters
//
//   - [CooldownLimiter] grants one action per identifier per cooldown. The
//     client uses one for resend-verification and one for forgot-password.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own key namespace. Policy thresholds come from Config
// structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goAuthClient or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
