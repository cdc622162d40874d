package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", out: &out, authed: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginHistory returns up to limit recent sign-ins. limit <= 0 lets the
// server choose.
func (c *Client) LoginHistory(ctx context.Context, limit int) ([]LoginHistoryEntry, error) {
	path := "/auth/login-history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []LoginHistoryEntry
	if err := c.do(ctx, call{method: http.MethodGet, path: path, out: &out, authed: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// TrustedDevices lists devices that skip device verification.
func (c *Client) TrustedDevices(ctx context.Context) ([]TrustedDevice, error) {
	var out []TrustedDevice
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/trusted-devices", out: &out, authed: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeTrustedDevice removes a trusted device.
func (c *Client) RevokeTrustedDevice(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/auth/trusted-devices/" + url.PathEscape(id), authed: true})
}

// EnableTwoFactor turns on two-factor authentication.
func (c *Client) EnableTwoFactor(ctx context.Context) (*EnableTwoFactorResponse, error) {
	var out EnableTwoFactorResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/2fa/enable", out: &out, authed: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableTwoFactor turns off two-factor authentication.
func (c *Client) DisableTwoFactor(ctx context.Context, code string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/2fa/disable", in: &DisableTwoFactorRequest{Code: code}, authed: true})
}
