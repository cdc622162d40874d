package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/store"
)

const defaultRefreshTimeout = 30 * time.Second

// Options configure a [Manager].
type Options struct {
	// RefreshTimeout bounds one refresh network call. Zero means 30s.
	RefreshTimeout time.Duration
	Logger         zerolog.Logger
	// LogTokenPrefixes enables token-prefix diagnostics at debug level.
	LogTokenPrefixes bool
	OnEvent          func(Event)
	OnStateChange    func(State)
	Now              func() time.Time
}

// Manager is the session owner. It is safe for concurrent use.
type Manager struct {
	store     store.Store
	refresher Refresher
	opts      Options

	// writeMu serializes writers (Save, Clear, refresh apply) so that the
	// store and the cache change in the same order.
	writeMu sync.Mutex

	mu    sync.RWMutex
	creds Credentials
	// gen changes whenever the session identity changes (Save, Clear). A
	// refresh result is applied only if gen is unchanged since it started.
	gen uint64

	flightMu sync.Mutex
	flight   *flight
}

type flight struct {
	done  chan struct{}
	token string
	err   error
}

// NewManager creates a [Manager]. Call [Manager.Restore] to load persisted
// credentials.
func NewManager(st store.Store, refresher Refresher, opts Options) *Manager {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:     st,
		refresher: refresher,
		opts:      opts,
	}
}

// Restore loads persisted credentials into the cache. A storage failure
// leaves the manager unauthenticated and is returned.
func (m *Manager) Restore(ctx context.Context) error {
	m.writeMu.Lock()

	var next Credentials
	values, err := m.store.GetMany(ctx, store.SessionKeys...)
	if err == nil {
		next = Credentials{
			AccessToken:  values[store.KeyAccessToken],
			RefreshToken: values[store.KeyRefreshToken],
			TenantID:     values[store.KeyTenantID],
			UserEmail:    values[store.KeyUserEmail],
		}
	}
	if err != nil || !next.valid() {
		next = Credentials{}
	}

	m.mu.Lock()
	m.creds = next
	m.gen++
	m.mu.Unlock()
	m.writeMu.Unlock()

	if err != nil {
		m.opts.Logger.Warn().Err(err).Msg("session restore failed; treating as logged out")
	}
	m.notify()
	return err
}

// AccessToken returns the cached access token.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken, m.creds.AccessToken != ""
}

// RefreshToken returns the cached refresh token.
func (m *Manager) RefreshToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.RefreshToken, m.creds.RefreshToken != ""
}

// Credentials returns a copy of the cached credential set.
func (m *Manager) Credentials() (Credentials, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, m.creds.valid()
}

// State returns the derived session view.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Authenticated: m.creds.valid(),
		TenantID:      m.creds.TenantID,
	}
}

// ExpiresWithin reports whether the cached access token expires within d
// according to its exp claim.
func (m *Manager) ExpiresWithin(d time.Duration) bool {
	token, ok := m.AccessToken()
	if !ok {
		return false
	}
	return jwt.ExpiresWithin(token, d, m.opts.Now())
}

// Save atomically replaces the session with c.
func (m *Manager) Save(ctx context.Context, c Credentials) error {
	if !c.valid() {
		return ErrIncompleteCredentials
	}

	m.writeMu.Lock()
	if err := m.persist(ctx, c); err != nil {
		m.writeMu.Unlock()
		return err
	}
	m.mu.Lock()
	m.creds = c
	m.gen++
	m.mu.Unlock()
	m.writeMu.Unlock()

	m.debugToken("session saved", c.AccessToken)
	m.emit(EventSessionSaved)
	m.notify()
	return nil
}

// Clear drops the session. The cache is cleared before the store is touched,
// so local state is logged out even when the store write fails.
func (m *Manager) Clear(ctx context.Context) error {
	m.writeMu.Lock()
	err := m.clearLocked(ctx)
	m.writeMu.Unlock()

	m.emit(EventSessionCleared)
	m.notify()
	return err
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.mu.Lock()
	m.creds = Credentials{}
	m.gen++
	m.mu.Unlock()

	if err := m.store.Update(ctx, nil, store.SessionKeys...); err != nil {
		m.opts.Logger.Warn().Err(err).Msg("session clear: store delete failed")
		return err
	}
	return nil
}

func (m *Manager) persist(ctx context.Context, c Credentials) error {
	set := map[string]string{
		store.KeyAccessToken:  c.AccessToken,
		store.KeyRefreshToken: c.RefreshToken,
	}
	var del []string
	if c.TenantID != "" {
		set[store.KeyTenantID] = c.TenantID
	} else {
		del = append(del, store.KeyTenantID)
	}
	if c.UserEmail != "" {
		set[store.KeyUserEmail] = c.UserEmail
	} else {
		del = append(del, store.KeyUserEmail)
	}
	return m.store.Update(ctx, set, del...)
}

// Refresh obtains a new access token. Concurrent callers share one network
// call and its outcome. Cancelling ctx abandons only this caller's wait.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.flightMu.Lock()
	if f := m.flight; f != nil {
		m.flightMu.Unlock()
		m.emit(EventRefreshCoalesced)
		return await(ctx, f)
	}
	f := &flight{done: make(chan struct{})}
	m.flight = f
	m.flightMu.Unlock()

	go m.run(context.WithoutCancel(ctx), f)
	return await(ctx, f)
}

// RefreshIfStale refreshes unless the cached access token already differs
// from used, in which case another caller refreshed in the meantime and the
// current token is returned without a network call.
func (m *Manager) RefreshIfStale(ctx context.Context, used string) (string, error) {
	if current, ok := m.AccessToken(); ok && current != used {
		return current, nil
	}
	return m.Refresh(ctx)
}

func await(ctx context.Context, f *flight) (string, error) {
	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, f *flight) {
	token, err := m.refresh(ctx)

	// Waiters wake only after the slot is free, so a retry starts a new flight.
	m.flightMu.Lock()
	f.token, f.err = token, err
	if m.flight == f {
		m.flight = nil
	}
	m.flightMu.Unlock()
	close(f.done)
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.creds
	gen := m.gen
	m.mu.RUnlock()

	if current.RefreshToken == "" {
		return "", ErrNoSession
	}

	m.emit(EventRefreshStarted)
	m.debugToken("refresh started", current.RefreshToken)

	ctx, cancel := context.WithTimeout(ctx, m.opts.RefreshTimeout)
	defer cancel()

	res, err := m.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			m.writeMu.Lock()
			cleared := m.gen == gen
			if cleared {
				_ = m.clearLocked(context.WithoutCancel(ctx))
			}
			m.writeMu.Unlock()

			m.emit(EventRefreshRejected)
			if !cleared {
				// The rejected token already belonged to a replaced session.
				m.opts.Logger.Info().Err(err).Msg("refresh token rejected after session changed")
				if token, ok := m.AccessToken(); ok {
					return token, nil
				}
				return "", ErrNoSession
			}
			m.opts.Logger.Info().Err(err).Msg("refresh token rejected; session cleared")
			m.emit(EventSessionCleared)
			m.notify()
			return "", err
		}
		m.opts.Logger.Warn().Err(err).Msg("refresh failed")
		m.emit(EventRefreshFailed)
		return "", err
	}
	if res.AccessToken == "" {
		m.emit(EventRefreshFailed)
		return "", fmt.Errorf("refresh response carried no access token")
	}

	next := current
	next.AccessToken = res.AccessToken
	if res.RefreshToken != "" {
		next.RefreshToken = res.RefreshToken
	}
	if res.TenantID != "" {
		next.TenantID = res.TenantID
	}
	if res.UserEmail != "" {
		next.UserEmail = res.UserEmail
	}

	m.writeMu.Lock()
	if m.gen != gen {
		// Logged out or replaced by a new login while the call was in flight.
		m.writeMu.Unlock()
		m.emit(EventRefreshFailed)
		if token, ok := m.AccessToken(); ok {
			return token, nil
		}
		return "", ErrNoSession
	}
	if err := m.persist(ctx, next); err != nil {
		_ = m.clearLocked(ctx)
		m.writeMu.Unlock()

		m.opts.Logger.Error().Err(err).Msg("refreshed credentials could not be stored; session cleared")
		m.emit(EventRefreshFailed)
		m.emit(EventSessionCleared)
		m.notify()
		return "", err
	}
	m.mu.Lock()
	m.creds = next
	m.mu.Unlock()
	m.writeMu.Unlock()

	m.debugToken("refresh succeeded", next.AccessToken)
	m.emit(EventRefreshSucceeded)
	if next.TenantID != current.TenantID {
		m.notify()
	}
	return next.AccessToken, nil
}

func (m *Manager) emit(e Event) {
	if m.opts.OnEvent != nil {
		m.opts.OnEvent(e)
	}
}

func (m *Manager) notify() {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(m.State())
	}
}

func (m *Manager) debugToken(msg, token string) {
	if !m.opts.LogTokenPrefixes {
		return
	}
	m.opts.Logger.Debug().Str("token_prefix", redact.TokenPrefix(token)).Msg(msg)
}
