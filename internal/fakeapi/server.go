package fakeapi

import (
	"crypto/rand"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/middleware"
)

// Account seeds a user.
type Account struct {
	Email     string
	Password  string
	Name      string
	CompanyID string
	// TwoFactorCode enables 2FA with this fixed code when non-empty.
	TwoFactorCode string
	// RequireDeviceVerification makes unknown fingerprints verify first.
	RequireDeviceVerification bool
	// DeviceChallengeAsError answers an unknown device with 403
	// DEVICE_VERIFICATION_REQUIRED instead of a 200 flag.
	DeviceChallengeAsError bool
}

// Options configure a [Server].
type Options struct {
	AccessTTL time.Duration
	Logger    zerolog.Logger
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	issuer *jwt.Issuer
	logger zerolog.Logger

	mu            sync.Mutex
	users         map[string]*user
	refresh       map[string]string // refresh token -> email
	access        map[string]string // live access token -> email
	pending2FA    map[string]string // email -> fingerprint
	pendingDevice map[string]pendingDevice
	resets        map[string]string // reset token -> email
	lastDevToken  map[string]string // email -> last device token sent
	lastReset     map[string]string // email -> last reset token sent

	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
	logoutCalls  atomic.Int64
	resendCalls  atomic.Int64

	refreshDelay  atomic.Int64
	rejectRefresh atomic.Bool
	failLogout    atomic.Bool
}

type user struct {
	Account
	id        string
	twoFactor bool
	devices   map[string]*device // fingerprint -> device
	history   []historyEntry
}

type device struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

type historyEntry struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	IP         string    `json:"ip,omitempty"`
	DeviceName string    `json:"deviceName,omitempty"`
	Success    bool      `json:"success"`
}

type pendingDevice struct {
	email       string
	fingerprint string
	name        string
}

// New returns a Server with a random HS256 signing key.
func New(opts Options) (*Server, error) {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	iss, err := jwt.NewIssuer(jwt.IssuerConfig{
		AccessTTL:     opts.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    key,
		Issuer:        "fakeapi",
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		issuer:        iss,
		logger:        opts.Logger,
		users:         make(map[string]*user),
		refresh:       make(map[string]string),
		access:        make(map[string]string),
		pending2FA:    make(map[string]string),
		pendingDevice: make(map[string]pendingDevice),
		resets:        make(map[string]string),
		lastDevToken:  make(map[string]string),
		lastReset:     make(map[string]string),
	}, nil
}

// AddAccount seeds an account.
func (s *Server) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[a.Email] = &user{
		Account:   a,
		id:        newID(),
		twoFactor: a.TwoFactorCode != "",
		devices:   make(map[string]*device),
	}
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/verify-2fa", s.handleVerify2FA)
	r.Post("/auth/verify-device", s.handleVerifyDevice)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/forgot-password", s.handleForgotPassword)
	r.Post("/auth/reset-password", s.handleResetPassword)
	r.Post("/auth/resend-verification", s.handleResendVerification)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBearer(middleware.VerifierFunc(s.verify)))
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/me", s.handleMe)
		r.Get("/auth/login-history", s.handleLoginHistory)
		r.Get("/auth/trusted-devices", s.handleTrustedDevices)
		r.Delete("/auth/trusted-devices/{id}", s.handleRevokeDevice)
		r.Post("/auth/2fa/enable", s.handleEnable2FA)
		r.Post("/auth/2fa/disable", s.handleDisable2FA)
		r.Get("/business/ping", s.handlePing)
		r.Post("/business/echo", s.handleEcho)
	})
	return r
}

// RefreshCalls returns how many refresh requests were received.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// LoginCalls returns how many login requests were received.
func (s *Server) LoginCalls() int64 { return s.loginCalls.Load() }

// LogoutCalls returns how many logout requests were received.
func (s *Server) LogoutCalls() int64 { return s.logoutCalls.Load() }

// ResendCalls returns how many resend-verification requests were received.
func (s *Server) ResendCalls() int64 { return s.resendCalls.Load() }

// SetRefreshDelay delays every refresh response by d.
func (s *Server) SetRefreshDelay(d time.Duration) { s.refreshDelay.Store(int64(d)) }

// RejectRefresh makes every refresh answer 401.
func (s *Server) RejectRefresh(v bool) { s.rejectRefresh.Store(v) }

// FailLogout makes logout answer 500.
func (s *Server) FailLogout(v bool) { s.failLogout.Store(v) }

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// LiveRefreshTokens returns how many refresh tokens are currently valid.
func (s *Server) LiveRefreshTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

// DeviceToken returns the last device-verification token sent to email.
func (s *Server) DeviceToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDevToken[email]
}

// ResetToken returns the last password-reset token sent to email.
func (s *Server) ResetToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReset[email]
}

var errUnknownToken = errors.New("unknown access token")

func (s *Server) verify(token string) (*jwt.Claims, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, ok := s.access[token]
	s.mu.Unlock()
	if !ok {
		return nil, errUnknownToken
	}
	return claims, nil
}

// issueLocked mints a token pair for u. Caller holds s.mu.
func (s *Server) issueLocked(u *user) (string, string, error) {
	access, err := s.issuer.Issue(u.id, u.Email, u.CompanyID, 0)
	if err != nil {
		return "", "", err
	}
	refresh := newID()
	s.access[access] = u.Email
	s.refresh[refresh] = u.Email
	return access, refresh, nil
}

func newID() string {
	return ulid.Make().String()
}
