package api

import "time"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	DeviceFingerprint string `json:"deviceFingerprint" validate:"required"`
	DeviceName        string `json:"deviceName,omitempty"`
}

// LoginResponse is returned by POST /auth/login. Tokens are absent when a
// further step is required.
type LoginResponse struct {
	AccessToken                string `json:"accessToken,omitempty"`
	RefreshToken               string `json:"refreshToken,omitempty"`
	Requires2FA                bool   `json:"requires2FA"`
	RequiresDeviceVerification bool   `json:"requiresDeviceVerification,omitempty"`
	ChallengeToken             string `json:"challengeToken,omitempty"`
	Message                    string `json:"message,omitempty"`
	User                       *User  `json:"user,omitempty"`
}

// VerifyTwoFactorRequest is the body of POST /auth/verify-2fa.
type VerifyTwoFactorRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Code              string `json:"code" validate:"required,numeric,min=4,max=10"`
	DeviceFingerprint string `json:"deviceFingerprint" validate:"required"`
}

// TokenResponse is returned by verify-2fa and refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// VerifyDeviceRequest is the body of POST /auth/verify-device.
type VerifyDeviceRequest struct {
	Token string `json:"token" validate:"required"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Verification kinds for POST /auth/resend-verification.
const (
	VerificationDevice    = "device"
	VerificationTwoFactor = "2fa"
)

// ResendVerificationRequest is the body of POST /auth/resend-verification.
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required,oneof=device 2fa"`
}

// DisableTwoFactorRequest is the body of POST /auth/2fa/disable.
type DisableTwoFactorRequest struct {
	Code string `json:"code" validate:"required,numeric,min=4,max=10"`
}

// EnableTwoFactorResponse is returned by POST /auth/2fa/enable.
type EnableTwoFactorResponse struct {
	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpauthUrl,omitempty"`
	Enabled    bool   `json:"enabled"`
}

// User is the account object returned by the backend.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name,omitempty"`
	CompanyID        string `json:"companyId,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// TrustedDevice is an entry of GET /auth/trusted-devices.
type TrustedDevice struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	Current     bool      `json:"current"`
}

// LoginHistoryEntry is an entry of GET /auth/login-history.
type LoginHistoryEntry struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	IP         string    `json:"ip,omitempty"`
	DeviceName string    `json:"deviceName,omitempty"`
	Success    bool      `json:"success"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
