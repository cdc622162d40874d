package flows

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/internal/stores"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	API          AuthAPI
	Challenges   *stores.ChallengeStore
	AccessToken  func() (string, bool)
	UserEmail    func() string
	ClearSession func(context.Context) error
	Logger       zerolog.Logger

	Observe Observe
}

// LogoutResult reports both halves of a logout. Local state is cleared
// regardless of either error.
type LogoutResult struct {
	RemoteErr error
	LocalErr  error
}

// RunLogout clears the local session first, then revokes it server-side
// with the token captured beforehand.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	deps.Observe.defaults()

	var res LogoutResult
	token, hasToken := "", false
	if deps.AccessToken != nil {
		token, hasToken = deps.AccessToken()
	}
	email := ""
	if deps.UserEmail != nil {
		email = deps.UserEmail()
	}

	if deps.Challenges != nil {
		deps.Challenges.Discard()
	}
	if deps.ClearSession != nil {
		res.LocalErr = deps.ClearSession(context.WithoutCancel(ctx))
	}

	if hasToken && deps.API != nil {
		res.RemoteErr = deps.API.Logout(ctx, token)
		if res.RemoteErr != nil {
			deps.Observe.MetricInc(deps.Observe.Metrics.LogoutRemoteFailure)
			deps.Logger.Warn().Err(res.RemoteErr).Msg("remote logout failed; local session cleared")
		}
	}

	deps.Observe.MetricInc(deps.Observe.Metrics.Logout)
	deps.Observe.EmitAudit(ctx, deps.Observe.Events.Logout, res.RemoteErr == nil && res.LocalErr == nil, redact.Email(email), res.RemoteErr, nil)
	return res
}
