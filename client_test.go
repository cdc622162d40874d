package goAuthClient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAuthClient/device"
	"github.com/MrEthical07/goAuthClient/internal/fakeapi"
	"github.com/MrEthical07/goAuthClient/store"
)

var testAttrs = device.StaticAttributes{
	HardwareID:   "hw-1",
	Manufacturer: "Acme",
	Model:        "Phone 9",
	Brand:        "acme",
	Device:       "phone9",
}

type testEnv struct {
	fake   *fakeapi.Server
	srv    *httptest.Server
	store  *store.MemoryStore
	client *Client
}

func newTestServer(t *testing.T, accounts ...fakeapi.Account) (*fakeapi.Server, *httptest.Server) {
	t.Helper()
	fake, err := fakeapi.New(fakeapi.Options{AccessTTL: time.Minute})
	if err != nil {
		t.Fatalf("fakeapi.New: %v", err)
	}
	for _, a := range accounts {
		fake.AddAccount(a)
	}
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return fake, srv
}

func newTestEnv(t *testing.T, configure func(*Builder), accounts ...fakeapi.Account) *testEnv {
	t.Helper()
	fake, srv := newTestServer(t, accounts...)

	st := store.NewMemoryStore()
	b := New().
		WithBaseURL(srv.URL).
		WithStore(st).
		WithDeviceAttributes(testAttrs).
		WithMetricsEnabled(true)
	if configure != nil {
		configure(b)
	}
	client, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &testEnv{fake: fake, srv: srv, store: st, client: client}
}

func mustGet(t *testing.T, st store.Store, key string) (string, bool) {
	t.Helper()
	v, ok, err := st.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store get %s: %v", key, err)
	}
	return v, ok
}

func assertLoggedOut(t *testing.T, env *testEnv) {
	t.Helper()
	if env.client.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", env.client.State())
	}
	if _, ok := env.client.Sessions().AccessToken(); ok {
		t.Fatal("expected no cached access token")
	}
	for _, key := range store.SessionKeys {
		if _, ok := mustGet(t, env.store, key); ok {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
}

// a@b.com / pw on device f1: wrong code 000000, then 123456.
func TestWorkedExampleTwoFactorLogin(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{
		Email:         "a@b.com",
		Password:      "pw",
		CompanyID:     "c-42",
		TwoFactorCode: "123456",
	})
	ctx := context.Background()

	if err := env.store.Put(ctx, store.KeyDeviceFingerprint, "f1"); err != nil {
		t.Fatal(err)
	}

	res, err := env.client.Login(ctx, "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.State != StatePendingTwoFactor || env.client.State() != StatePendingTwoFactor {
		t.Fatalf("expected pending 2FA, got %s / %s", res.State, env.client.State())
	}
	if _, ok := mustGet(t, env.store, store.KeyAccessToken); ok {
		t.Fatal("nothing may be stored before 2FA succeeds")
	}

	_, err = env.client.VerifyTwoFactor(ctx, "000000")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected wrapped APIError with 401, got %v", err)
	}
	if env.client.State() != StatePendingTwoFactor {
		t.Fatalf("wrong code must keep pending 2FA, got %s", env.client.State())
	}
	if _, ok := mustGet(t, env.store, store.KeyAccessToken); ok {
		t.Fatal("nothing may be stored after a wrong code")
	}

	res, err = env.client.VerifyTwoFactor(ctx, "123456")
	if err != nil {
		t.Fatalf("VerifyTwoFactor failed: %v", err)
	}
	if res.State != StateAuthenticated || res.TenantID != "c-42" {
		t.Fatalf("unexpected result %+v", res)
	}

	access, ok := mustGet(t, env.store, store.KeyAccessToken)
	if !ok || access == "" {
		t.Fatal("expected stored access token")
	}
	if _, ok := mustGet(t, env.store, store.KeyRefreshToken); !ok {
		t.Fatal("expected stored refresh token")
	}
	if tenant, _ := mustGet(t, env.store, store.KeyTenantID); tenant != "c-42" {
		t.Fatalf("expected tenant c-42, got %q", tenant)
	}
	if email, _ := mustGet(t, env.store, store.KeyUserEmail); email != "a@b.com" {
		t.Fatalf("expected stored email, got %q", email)
	}
	if fp, _ := env.client.DeviceFingerprint(ctx); fp != "f1" {
		t.Fatalf("stored fingerprint must be reused, got %q", fp)
	}
	if st := env.client.SessionState(); !st.Authenticated || st.TenantID != "c-42" {
		t.Fatalf("unexpected session state %+v", st)
	}
	if _, ok := env.client.PendingChallenge(); ok {
		t.Fatal("challenge must be gone after success")
	}

	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricTwoFactorFailure] != 1 || snap.Counters[MetricTwoFactorSuccess] != 1 {
		t.Fatalf("unexpected 2FA counters: %+v", snap.Counters)
	}
}

func TestDirectLoginAndBusinessCall(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret", CompanyID: "c-1"})
	ctx := context.Background()

	res, err := env.client.Login(ctx, "u@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.State != StateAuthenticated || res.TenantID != "c-1" {
		t.Fatalf("unexpected result %+v", res)
	}

	resp, err := env.client.HTTPClient().Get(env.srv.URL + "/business/ping")
	if err != nil {
		t.Fatalf("business call failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	me, err := env.client.Me(ctx)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.Email != "u@example.com" {
		t.Fatalf("unexpected user %+v", me)
	}
}

func TestInvalidCredentialsStoresNothing(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret"})

	_, err := env.client.Login(context.Background(), "u@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	assertLoggedOut(t, env)
}

func TestVerifyTwoFactorWithoutChallenge(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.client.VerifyTwoFactor(context.Background(), "123456"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Fatalf("expected ErrNoPendingChallenge, got %v", err)
	}
}

func TestChallengeExpiry(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Now()
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	env := newTestEnv(t, func(b *Builder) { b.WithClock(clock) },
		fakeapi.Account{Email: "a@b.com", Password: "pw", TwoFactorCode: "123456"})
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "a@b.com", "pw"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	now = now.Add(DefaultConfig().Login.ChallengeTTL + time.Second)
	mu.Unlock()

	if _, err := env.client.VerifyTwoFactor(ctx, "123456"); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
	if env.client.State() != StateUnauthenticated {
		t.Fatalf("expired challenge must reset state, got %s", env.client.State())
	}
}

func TestDeviceVerificationThenLogin(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{
		Email:                     "d@example.com",
		Password:                  "pw",
		CompanyID:                 "c-7",
		RequireDeviceVerification: true,
	})
	ctx := context.Background()

	res, err := env.client.Login(ctx, "d@example.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.State != StatePendingDeviceVerification {
		t.Fatalf("expected device verification, got %s", res.State)
	}
	info, ok := env.client.PendingChallenge()
	if !ok || info.State != StatePendingDeviceVerification || strings.Contains(info.Email, "d@example.com") {
		t.Fatalf("unexpected pending challenge %+v", info)
	}

	res, err = env.client.VerifyDevice(ctx, env.fake.DeviceToken("d@example.com"))
	if err != nil {
		t.Fatalf("VerifyDevice failed: %v", err)
	}
	if res.State != StateAuthenticated || res.TenantID != "c-7" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLogoutClearsLocalStateWhenRemoteFails(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret"})
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "u@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	env.fake.FailLogout(true)

	res := env.client.Logout(ctx)
	if res.RemoteErr == nil {
		t.Fatal("expected remote logout error to be reported")
	}
	if res.LocalErr != nil {
		t.Fatalf("unexpected local error: %v", res.LocalErr)
	}
	assertLoggedOut(t, env)

	if _, err := env.client.HTTPClient().Get(env.srv.URL + "/business/ping"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after logout, got %v", err)
	}
}

func TestLogoutWhenServerUnreachable(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret"})
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "u@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	env.srv.Close()

	res := env.client.Logout(ctx)
	if !errors.Is(res.RemoteErr, ErrNetwork) {
		t.Fatalf("expected network error, got %v", res.RemoteErr)
	}
	assertLoggedOut(t, env)
}

func TestConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret"})
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "u@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	env.fake.SetRefreshDelay(50 * time.Millisecond)
	env.fake.ExpireAccessTokens()

	const n = 50
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resp, err := env.client.HTTPClient().Get(env.srv.URL + "/business/ping")
			if err != nil {
				errs <- err
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- errors.New(resp.Status)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("request failed: %v", err)
	}
	if got := env.fake.RefreshCalls(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricRefreshStarted] != 1 {
		t.Fatalf("expected one started refresh, got %d", snap.Counters[MetricRefreshStarted])
	}
	if retried := snap.Counters[MetricGateRetried]; retried == 0 || retried > n {
		t.Fatalf("expected between 1 and %d retries, got %d", n, retried)
	}
}

func TestRejectedRefreshLogsOut(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret"})
	env.client.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "u@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	env.fake.RejectRefresh(true)
	env.fake.ExpireAccessTokens()

	resp, err := env.client.HTTPClient().Get(env.srv.URL + "/business/ping")
	if err != nil {
		t.Fatalf("expected the original 401 response, got error %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	assertLoggedOut(t, env)

	if env.client.MetricsSnapshot().Counters[MetricRefreshRejected] != 1 {
		t.Fatal("expected one rejected refresh")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateAuthenticated, StateUnauthenticated}
	if len(states) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, states)
		}
	}
}

func TestAccountCallsRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.client.Me(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := env.client.TrustedDevices(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if err := env.client.RevokeTrustedDevice(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestForgotPasswordCooldownAndReset(t *testing.T) {
	env := newTestEnv(t, nil, fakeapi.Account{Email: "u@example.com", Password: "secret"})
	ctx := context.Background()

	if err := env.client.ForgotPassword(ctx, "u@example.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if err := env.client.ForgotPassword(ctx, "U@example.com "); !errors.Is(err, ErrResendCooldown) {
		t.Fatalf("expected ErrResendCooldown, got %v", err)
	}

	if err := env.client.ResetPassword(ctx, "bogus", "new-password-1"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
	if err := env.client.ResetPassword(ctx, env.fake.ResetToken("u@example.com"), "new-password-1"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := env.client.Login(ctx, "u@example.com", "new-password-1"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestAuditEventsCarryNoSecrets(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, func(b *Builder) {
		cfg := b.config
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	}, fakeapi.Account{Email: "a@b.com", Password: "correct-horse", CompanyID: "c-42", TwoFactorCode: "123456"})
	ctx := context.Background()

	if _, err := env.client.Login(ctx, "a@b.com", "correct-horse"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.client.VerifyTwoFactor(ctx, "000000"); err == nil {
		t.Fatal("expected wrong code to fail")
	}
	if _, err := env.client.VerifyTwoFactor(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	access, _ := env.client.Sessions().AccessToken()
	if err := env.client.Close(); err != nil {
		t.Fatal(err)
	}

	seen := map[string]AuditEvent{}
	for {
		select {
		case e := <-sink.Events():
			seen[e.EventType] = e
			for _, secret := range []string{"correct-horse", access, "123456", "a@b.com"} {
				if strings.Contains(e.Email+e.Error+e.TenantID, secret) {
					t.Fatalf("event %s leaks %q", e.EventType, secret)
				}
				for _, v := range e.Metadata {
					if strings.Contains(v, secret) {
						t.Fatalf("event %s metadata leaks %q", e.EventType, secret)
					}
				}
			}
			continue
		default:
		}
		break
	}

	for _, name := range []string{auditEventTwoFactorRequired, auditEventTwoFactorFailure, auditEventLoginSuccess} {
		if _, ok := seen[name]; !ok {
			t.Fatalf("expected audit event %s, got %v", name, seen)
		}
	}
	if got := seen[auditEventTwoFactorFailure].Error; got != string(auditErrInvalidCode) {
		t.Fatalf("expected invalid_code on failure event, got %q", got)
	}
	if got := seen[auditEventLoginSuccess].TenantID; got != "c-42" {
		t.Fatalf("expected tenant on success event, got %q", got)
	}
}

func TestRedisBackendRestoresSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, srv := newTestServer(t, fakeapi.Account{Email: "u@example.com", Password: "secret", CompanyID: "c-9"})
	build := func() *Client {
		cfg := DefaultConfig()
		cfg.API.BaseURL = srv.URL
		cfg.Storage.Backend = StorageRedis
		client, err := New().WithConfig(cfg).WithRedis(rdb).WithDeviceAttributes(testAttrs).Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return client
	}

	first := build()
	if _, err := first.Login(context.Background(), "u@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	fp, _ := first.DeviceFingerprint(context.Background())
	_ = first.Close()

	second := build()
	defer second.Close()
	if second.State() != StateAuthenticated || second.SessionState().TenantID != "c-9" {
		t.Fatalf("expected restored session, got %s %+v", second.State(), second.SessionState())
	}
	if again, _ := second.DeviceFingerprint(context.Background()); again != fp {
		t.Fatalf("fingerprint changed across restarts: %q vs %q", fp, again)
	}
}

func TestRedisUnavailableStartsLoggedOut(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1"
	cfg.Storage.Backend = StorageRedis
	client, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build must tolerate an unavailable store: %v", err)
	}
	defer client.Close()
	if client.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", client.State())
	}
}

func TestBuilderRejectsReuseAndBadConfig(t *testing.T) {
	b := New().WithBaseURL("http://localhost:8080")
	client, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}

	if _, err := New().Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without base URL, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://localhost:8080"
	cfg.Storage.Backend = StorageRedis
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for redis without client or addr, got %v", err)
	}
}

func TestClosedClientRefusesCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := env.client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := env.client.Login(context.Background(), "a@b.com", "pw"); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://auth.example.com"
	cfg.Log.Diagnostics = true
	client, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	r := client.SecurityReport()
	if r.TLS || r.DurableStorage || !r.Diagnostics {
		t.Fatalf("unexpected report %+v", r)
	}
	if len(r.Warnings) != 3 {
		t.Fatalf("expected transport, diagnostics and storage warnings, got %v", r.Warnings)
	}

	env := newTestEnv(t, nil)
	if r := env.client.SecurityReport(); !r.DurableStorage {
		t.Fatal("a caller-supplied store counts as durable")
	}
}
