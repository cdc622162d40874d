package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
)

// Login submits the password step.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/login", in: &in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTwoFactor submits the second-factor code.
func (c *Client) VerifyTwoFactor(ctx context.Context, in VerifyTwoFactorRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/verify-2fa", in: &in, out: &out}); err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("%w: verify-2fa response without token pair", ErrNetwork)
	}
	return &out, nil
}

// VerifyDevice confirms a new device with the emailed token.
func (c *Client) VerifyDevice(ctx context.Context, token string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/verify-device", in: &VerifyDeviceRequest{Token: token}})
}

// Refresh implements session.Refresher. 400, 401, and 403 mean the refresh
// token is no longer valid.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.RefreshedTokens, error) {
	var out TokenResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/refresh", in: &RefreshRequest{RefreshToken: refreshToken}, out: &out})
	if err != nil {
		switch StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return session.RefreshedTokens{}, fmt.Errorf("%w: %w", session.ErrRefreshRejected, err)
		}
		if errors.Is(err, ErrInvalidRequest) {
			return session.RefreshedTokens{}, fmt.Errorf("%w: %w", session.ErrNoSession, err)
		}
		return session.RefreshedTokens{}, err
	}
	if out.AccessToken == "" {
		return session.RefreshedTokens{}, fmt.Errorf("%w: refresh response without access token", ErrNetwork)
	}

	res := session.RefreshedTokens{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		TenantID:     TenantOf(out.AccessToken, out.User),
	}
	if out.User != nil {
		res.UserEmail = out.User.Email
	}
	return res, nil
}

// Logout revokes the session server-side. It sends token directly so that a
// rejected logout never triggers a refresh.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/logout", bearer: token})
}

// ForgotPassword starts a password reset.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/forgot-password", in: &ForgotPasswordRequest{Email: email}})
}

// ResetPassword completes a password reset.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/reset-password", in: &ResetPasswordRequest{Token: token, NewPassword: newPassword}})
}

// ResendVerification asks the backend to send a new device or 2FA code.
func (c *Client) ResendVerification(ctx context.Context, email, kind string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/resend-verification", in: &ResendVerificationRequest{Email: email, Type: kind}})
}

// TenantOf returns the tenant id from user, falling back to the companyId
// claim of accessToken.
func TenantOf(accessToken string, user *User) string {
	if user != nil && user.CompanyID != "" {
		return user.CompanyID
	}
	claims, err := jwt.Inspect(accessToken)
	if err != nil {
		return ""
	}
	return claims.TenantID
}
