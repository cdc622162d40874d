// Package device derives and persists the stable fingerprint that identifies the physical
// device to the backend on every login and two-factor attempt.
//
// # Derivation
//
// A fixed ordered list of attributes (hardware id, manufacturer, model, brand, device
// codename) is joined into a canonical string and hashed with SHA-256 into 64 lowercase hex
// characters. When the hash primitive is unavailable, a name-based (SHA-1, RFC 4122 version 5)
// UUID over the same canonical string is used instead. Both are pure functions of the
// attributes.
//
// # Persistence
//
// [Provider.GetOrCreateFingerprint] returns a stored fingerprint verbatim and never
// regenerates it. Only when none is stored is one derived and written once.
package device
