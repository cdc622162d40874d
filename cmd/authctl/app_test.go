package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/fakeapi"
)

func newTestApp(t *testing.T, srvURL, credFile, input string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = srvURL
	cfg.Storage.Backend = goAuthClient.StorageFile
	cfg.Storage.FilePath = credFile

	out := &bytes.Buffer{}
	app, err := NewApp(cfg, nil, bufio.NewReader(strings.NewReader(input)), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, out
}

func TestLoginWithTwoFactorThenStatusAndLogout(t *testing.T) {
	fake, err := fakeapi.New(fakeapi.Options{AccessTTL: time.Minute})
	require.NoError(t, err)
	fake.AddAccount(fakeapi.Account{
		Email:         "a@b.com",
		Password:      "pw",
		CompanyID:     "c-42",
		TwoFactorCode: "123456",
	})
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	credFile := filepath.Join(t.TempDir(), "creds.json")
	t.Setenv(passwordEnv, "pw")
	ctx := context.Background()

	app, out := newTestApp(t, srv.URL, credFile, "000000\n123456\n")
	require.NoError(t, app.Run(ctx, []string{"login", "a@b.com"}))
	assert.Contains(t, out.String(), "two-factor code required")
	assert.Contains(t, out.String(), "signed in (tenant c-42)")

	// A second process picks the session up from the credential file.
	second, out := newTestApp(t, srv.URL, credFile, "")
	require.NoError(t, second.Run(ctx, []string{"status"}))
	assert.Contains(t, out.String(), "state: authenticated")
	assert.Contains(t, out.String(), "tenant: c-42")

	out.Reset()
	require.NoError(t, second.Run(ctx, []string{"get", "/business/ping"}))
	assert.Contains(t, out.String(), "200 OK")

	out.Reset()
	require.NoError(t, second.Run(ctx, []string{"logout"}))
	assert.Contains(t, out.String(), "signed out")

	out.Reset()
	require.NoError(t, second.Run(ctx, []string{"status"}))
	assert.Contains(t, out.String(), "state: unauthenticated")
}

func TestLoginStopsWhenInputEnds(t *testing.T) {
	fake, err := fakeapi.New(fakeapi.Options{})
	require.NoError(t, err)
	fake.AddAccount(fakeapi.Account{Email: "a@b.com", Password: "pw", TwoFactorCode: "123456"})
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	t.Setenv(passwordEnv, "pw")
	app, _ := newTestApp(t, srv.URL, filepath.Join(t.TempDir(), "creds.json"), "")

	err = app.Run(context.Background(), []string{"login", "a@b.com"})
	require.Error(t, err)
	assert.Equal(t, goAuthClient.StateUnauthenticated, app.client.State())
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	app, _ := newTestApp(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "creds.json"), "")

	assert.ErrorIs(t, app.Run(context.Background(), nil), errUsage)
	assert.ErrorIs(t, app.Run(context.Background(), []string{"frobnicate"}), errUsage)
	assert.ErrorIs(t, app.Run(context.Background(), []string{"login"}), errUsage)
}
