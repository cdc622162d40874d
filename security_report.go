package goAuthClient

import (
	"net/url"

	"github.com/MrEthical07/goAuthClient/internal/security"
)

// SecurityReport summarizes the client's configuration posture and lists
// settings worth reviewing before production use.
type SecurityReport = security.Report

func (c *Client) SecurityReport() SecurityReport {
	if c == nil {
		return SecurityReport{}
	}

	var scheme, host string
	if u, err := url.Parse(c.config.API.BaseURL); err == nil {
		scheme, host = u.Scheme, u.Hostname()
	}

	return security.BuildReport(security.ReportInput{
		BaseURLScheme:        scheme,
		BaseURLHost:          host,
		StorageBackend:       c.config.Storage.Backend,
		CustomStore:          c.customStore,
		Diagnostics:          c.config.Log.Diagnostics,
		RefreshBefore:        c.config.Session.RefreshBefore,
		RefreshTimeout:       c.config.Session.RefreshTimeout,
		ChallengeTTL:         c.config.Login.ChallengeTTL,
		MaxTwoFactorAttempts: c.config.Login.MaxTwoFactorAttempts,
		ResendCooldown:       c.config.Account.ResendCooldown,
		AuditEnabled:         c.config.Audit.Enabled,
		MetricsEnabled:       c.config.Metrics.Enabled,
	})
}
