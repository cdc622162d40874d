package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be decoded.
var ErrMalformed = errors.New("malformed access token")

// Claims is the access-token payload understood by the client.
type Claims struct {
	Email    string `json:"email,omitempty"`
	TenantID string `json:"companyId,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes the claims of tokenStr without verifying its signature.
func Inspect(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresWithin reports whether tokenStr carries an exp claim that falls
// before now+d. Tokens without exp, or that cannot be decoded, report false:
// the server stays the authority and a 401 will trigger refresh anyway.
func ExpiresWithin(tokenStr string, d time.Duration, now time.Time) bool {
	claims, err := Inspect(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now.Add(d))
}

// Expiry returns the exp claim of tokenStr, or the zero time when absent.
func Expiry(tokenStr string) time.Time {
	claims, err := Inspect(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
