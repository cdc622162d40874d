package store

import (
	"context"
	"errors"
)

// Well-known keys of the credential namespace.
const (
	KeyAccessToken       = "accessToken"
	KeyRefreshToken      = "refreshToken"
	KeyUserEmail         = "userEmail"
	KeyDeviceFingerprint = "deviceFingerprint"
	KeyTenantID          = "tenantId"
)

// SessionKeys lists the keys owned by an authenticated session. The device
// fingerprint is intentionally absent: it outlives sessions.
var SessionKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyTenantID,
	KeyUserEmail,
}

// ErrStorageUnavailable is returned (wrapped) by every backend failure.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is a durable key-value namespace.
//
// Get reports ok=false for a missing key. GetMany reads keys as one snapshot
// and omits missing ones from the result. Update applies all sets and
// deletes as one atomic step, so a GetMany never sees half of an Update.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, set map[string]string, del ...string) error
}
