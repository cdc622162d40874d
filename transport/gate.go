package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotAuthenticated is returned before any network I/O when no access token
// is cached.
var ErrNotAuthenticated = errors.New("not authenticated")

// TokenSource is the view of the session the Gate needs.
type TokenSource interface {
	AccessToken() (string, bool)
	// RefreshIfStale returns a token newer than used, refreshing if needed.
	RefreshIfStale(ctx context.Context, used string) (string, error)
	ExpiresWithin(d time.Duration) bool
}

// Event is emitted through [Options.OnEvent].
type Event int

const (
	// EventRetried fires when a 401 was followed by a retry with a new token.
	EventRetried Event = iota + 1
	// EventNotAuthenticated fires when a request was refused locally.
	EventNotAuthenticated
	// EventRefreshFailed fires when a 401 could not be recovered.
	EventRefreshFailed
	// EventProactiveRefresh fires when a token close to expiry was refreshed
	// before sending.
	EventProactiveRefresh
)

func (e Event) String() string {
	switch e {
	case EventRetried:
		return "retried"
	case EventNotAuthenticated:
		return "not_authenticated"
	case EventRefreshFailed:
		return "refresh_failed"
	case EventProactiveRefresh:
		return "proactive_refresh"
	default:
		return "unknown"
	}
}

// Options configure a [Gate].
type Options struct {
	// AttemptTimeout bounds each attempt separately. Zero disables it.
	AttemptTimeout time.Duration
	// RefreshBefore enables a refresh before sending when the token expires
	// within this window. Zero disables it.
	RefreshBefore time.Duration
	OnEvent       func(Event)
	Logger        zerolog.Logger
}

// Gate is an authenticating [http.RoundTripper].
type Gate struct {
	tokens TokenSource
	base   http.RoundTripper
	opts   Options
}

// New returns a Gate sending through base. A nil base uses
// [http.DefaultTransport].
func New(tokens TokenSource, base http.RoundTripper, opts Options) *Gate {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Gate{tokens: tokens, base: base, opts: opts}
}

// Client returns an [http.Client] using g. The client has no overall timeout;
// attempts are bounded by [Options.AttemptTimeout].
func (g *Gate) Client() *http.Client {
	return &http.Client{Transport: g}
}

// RoundTrip implements [http.RoundTripper].
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := g.tokens.AccessToken()
	if !ok {
		closeBody(req)
		g.emit(EventNotAuthenticated)
		return nil, ErrNotAuthenticated
	}

	if g.opts.RefreshBefore > 0 && g.tokens.ExpiresWithin(g.opts.RefreshBefore) {
		if fresh, err := g.tokens.RefreshIfStale(req.Context(), token); err == nil {
			token = fresh
			g.emit(EventProactiveRefresh)
		} else if current, ok := g.tokens.AccessToken(); ok {
			token = current
		} else {
			closeBody(req)
			g.emit(EventNotAuthenticated)
			return nil, ErrNotAuthenticated
		}
	}

	getBody, err := replayable(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.attempt(req, getBody, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	bufferBody(resp)

	fresh, err := g.tokens.RefreshIfStale(req.Context(), token)
	if err != nil {
		g.opts.Logger.Debug().Err(err).Str("path", req.URL.Path).Msg("401 not recoverable")
		g.emit(EventRefreshFailed)
		return resp, nil
	}

	g.emit(EventRetried)
	retry, err := g.attempt(req, getBody, fresh)
	if err != nil {
		return nil, err
	}
	return retry, nil
}

func (g *Gate) attempt(req *http.Request, getBody func() (io.ReadCloser, error), token string) (*http.Response, error) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if g.opts.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(req.Context(), g.opts.AttemptTimeout)
	} else {
		ctx, cancel = context.WithCancel(req.Context())
	}

	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			cancel()
			return nil, err
		}
		out.Body = body
		out.GetBody = getBody
	}
	out.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.base.RoundTrip(out)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (g *Gate) emit(e Event) {
	if g.opts.OnEvent != nil {
		g.opts.OnEvent(e)
	}
}

// replayable returns a body factory for req, buffering the body when the
// request cannot rebuild it on its own.
func replayable(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close() //nolint:errcheck
		return req.GetBody, nil
	}
	b, err := io.ReadAll(req.Body)
	req.Body.Close() //nolint:errcheck
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}, nil
}

// bufferBody reads the 401 body fully so its connection can be reused while
// the response is still handed back intact when the retry is not possible.
func bufferBody(resp *http.Response) {
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close() //nolint:errcheck
	resp.Body = io.NopCloser(bytes.NewReader(b))
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close() //nolint:errcheck
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
