package transport_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/transport"
)

// backend accepts only the bearer token currently in valid.
type backend struct {
	valid  atomic.Value
	hits   atomic.Int32
	bodies chan string
	delay  time.Duration
}

func newBackend(valid string) *backend {
	b := &backend{bodies: make(chan string, 64)}
	b.valid.Store(valid)
	return b
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.hits.Add(1)
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			b.bodies <- string(body)
		}
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-r.Context().Done():
			return
		}
	}
	if r.Header.Get("Authorization") != "Bearer "+b.valid.Load().(string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func newSession(t *testing.T, access string, r session.Refresher) *session.Manager {
	t.Helper()
	m := session.NewManager(store.NewMemoryStore(), r, session.Options{})
	require.NoError(t, m.Save(context.Background(), session.Credentials{AccessToken: access, RefreshToken: "rt"}))
	return m
}

func rotateTo(token string, calls *atomic.Int32) session.Refresher {
	return session.RefresherFunc(func(context.Context, string) (session.RefreshedTokens, error) {
		calls.Add(1)
		return session.RefreshedTokens{AccessToken: token}, nil
	})
}

func TestGateRefusesWithoutToken(t *testing.T) {
	be := newBackend("t")
	srv := httptest.NewServer(be)
	defer srv.Close()

	var events []transport.Event
	m := session.NewManager(store.NewMemoryStore(), nil, session.Options{})
	gate := transport.New(m, nil, transport.Options{OnEvent: func(e transport.Event) { events = append(events, e) }})

	_, err := gate.Client().Get(srv.URL + "/auth/me")
	require.ErrorIs(t, err, transport.ErrNotAuthenticated)
	require.Zero(t, be.hits.Load())
	require.Equal(t, []transport.Event{transport.EventNotAuthenticated}, events)
}

func TestGateAttachesBearer(t *testing.T) {
	be := newBackend("t1")
	srv := httptest.NewServer(be)
	defer srv.Close()

	gate := transport.New(newSession(t, "t1", nil), nil, transport.Options{})
	resp, err := gate.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, be.hits.Load())
}

func TestGateRetriesOnceWithReplayedBody(t *testing.T) {
	be := newBackend("new")
	srv := httptest.NewServer(be)
	defer srv.Close()

	var calls atomic.Int32
	var events []transport.Event
	gate := transport.New(newSession(t, "old", rotateTo("new", &calls)), nil, transport.Options{
		OnEvent: func(e transport.Event) { events = append(events, e) },
	})

	// strings.Reader lets net/http set GetBody; a plain reader must be buffered.
	body := io.MultiReader(strings.NewReader(`{"name":`), strings.NewReader(`"x"}`))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/agents", body)
	require.NoError(t, err)

	resp, err := gate.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, be.hits.Load())
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, `{"name":"x"}`, <-be.bodies)
	require.Equal(t, `{"name":"x"}`, <-be.bodies)
	require.Equal(t, []transport.Event{transport.EventRetried}, events)
}

func TestGateReturnsOriginal401WhenRefreshRejected(t *testing.T) {
	be := newBackend("never")
	srv := httptest.NewServer(be)
	defer srv.Close()

	m := newSession(t, "old", session.RefresherFunc(func(context.Context, string) (session.RefreshedTokens, error) {
		return session.RefreshedTokens{}, session.ErrRefreshRejected
	}))
	gate := transport.New(m, nil, transport.Options{})

	resp, err := gate.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "token expired")
	require.EqualValues(t, 1, be.hits.Load())

	_, ok := m.AccessToken()
	require.False(t, ok, "rejected refresh must clear the session")

	_, err = gate.Client().Get(srv.URL)
	require.ErrorIs(t, err, transport.ErrNotAuthenticated)
}

func TestGateNeverRetriesTwice(t *testing.T) {
	be := newBackend("unreachable")
	srv := httptest.NewServer(be)
	defer srv.Close()

	var calls atomic.Int32
	gate := transport.New(newSession(t, "old", rotateTo("also-wrong", &calls)), nil, transport.Options{})

	resp, err := gate.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 2, be.hits.Load())
	require.EqualValues(t, 1, calls.Load())
}

func TestGateDoesNotRetryOtherStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var calls atomic.Int32
	gate := transport.New(newSession(t, "t", rotateTo("t2", &calls)), nil, transport.Options{})
	resp, err := gate.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Zero(t, calls.Load())
}

func TestGateConcurrent401sShareOneRefresh(t *testing.T) {
	be := newBackend("new")
	srv := httptest.NewServer(be)
	defer srv.Close()

	var calls atomic.Int32
	slow := session.RefresherFunc(func(context.Context, string) (session.RefreshedTokens, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return session.RefreshedTokens{AccessToken: "new", RefreshToken: "rt2"}, nil
	})
	gate := transport.New(newSession(t, "old", slow), nil, transport.Options{})
	client := gate.Client()

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- errors.New(resp.Status)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, calls.Load())
}

func TestGateAttemptTimeoutIsPerAttempt(t *testing.T) {
	be := newBackend("t")
	be.delay = 200 * time.Millisecond
	srv := httptest.NewServer(be)
	defer srv.Close()

	gate := transport.New(newSession(t, "t", nil), nil, transport.Options{AttemptTimeout: 20 * time.Millisecond})
	_, err := gate.Client().Get(srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	be.delay = 0
	resp, err := gate.Client().Get(srv.URL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "attempt context must stay alive until the body is closed")
	require.Equal(t, "ok", string(body))
	require.NoError(t, resp.Body.Close())
}

func TestGateProactiveRefresh(t *testing.T) {
	iss, err := jwt.NewIssuer(jwt.IssuerConfig{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)
	stale, err := iss.Issue("u1", "", "", 5*time.Second)
	require.NoError(t, err)
	fresh, err := iss.Issue("u1", "", "", time.Hour)
	require.NoError(t, err)

	be := newBackend(fresh)
	srv := httptest.NewServer(be)
	defer srv.Close()

	var calls atomic.Int32
	var events []transport.Event
	gate := transport.New(newSession(t, stale, rotateTo(fresh, &calls)), nil, transport.Options{
		RefreshBefore: 30 * time.Second,
		OnEvent:       func(e transport.Event) { events = append(events, e) },
	})

	resp, err := gate.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, be.hits.Load())
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, []transport.Event{transport.EventProactiveRefresh}, events)
}
