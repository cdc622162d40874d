package session

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/MrEthical07/goAuthClient/jwt"
)

const tokenSourceExpiryDelta = 10 * time.Second

// TokenSource adapts the manager to [oauth2.TokenSource] so that clients
// built on golang.org/x/oauth2 share the same single-flight refresh.
//
// Token refreshes when the cached access token expires within ten seconds
// according to its exp claim. ctx is used for those refresh waits.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	token, ok := ts.m.AccessToken()
	if !ok {
		return nil, ErrNoSession
	}

	if jwt.ExpiresWithin(token, tokenSourceExpiryDelta, ts.m.opts.Now()) {
		refreshed, err := ts.m.RefreshIfStale(ts.ctx, token)
		if err != nil {
			return nil, err
		}
		token = refreshed
	}

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      jwt.Expiry(token),
	}, nil
}
