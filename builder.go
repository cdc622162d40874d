package goAuthClient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/device"
	"github.com/MrEthical07/goAuthClient/internal/api"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/limiters"
	"github.com/MrEthical07/goAuthClient/internal/logging"
	"github.com/MrEthical07/goAuthClient/internal/rate"
	"github.com/MrEthical07/goAuthClient/internal/stores"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/transport"
)

const restoreTimeout = 5 * time.Second

// Builder assembles a [Client]. A Builder can be built once.
type Builder struct {
	config Config

	store     store.Store
	redis     redis.UniversalClient
	base      http.RoundTripper
	logger    *zerolog.Logger
	logOutput io.Writer
	attrs     device.AttributeSource
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets API.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithStore uses st as the credential store, overriding Storage.Backend.
func (b *Builder) WithStore(st store.Store) *Builder {
	b.store = st
	return b
}

// WithRedis uses client for the redis backend and for cooldown windows
// shared between processes. The caller keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sends every request through the transport of hc. Its
// Timeout is ignored; attempts are bounded by API.AttemptTimeout.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	if hc != nil {
		b.base = hc.Transport
	}
	return b
}

// WithLogger sets the logger. It takes precedence over WithLogOutput.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithLogOutput builds a logger from Config.Log writing to w. Without
// WithLogger or WithLogOutput the client does not log.
func (b *Builder) WithLogOutput(w io.Writer) *Builder {
	b.logOutput = w
	return b
}

// WithDeviceAttributes overrides the host attributes the device fingerprint
// is derived from.
func (b *Builder) WithDeviceAttributes(src device.AttributeSource) *Builder {
	b.attrs = src
	return b
}

// WithAuditSink sets the audit sink. Audit.Enabled must be set as well.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for challenge expiry and memory cooldowns.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the config, wires the components and restores any stored
// session. A session that cannot be restored leaves the client logged out.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.now == nil {
		b.now = time.Now
	}

	// -------- LOGGER --------
	logger := logging.Nop()
	switch {
	case b.logger != nil:
		logger = *b.logger
	case b.logOutput != nil:
		l, err := logging.New(cfg.Log.Level, cfg.Log.Format, b.logOutput)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		logger = l
	}

	c := &Client{
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- CREDENTIAL STORE --------
	rdb := b.redis
	switch {
	case b.store != nil:
		c.store = b.store
		c.customStore = true
	case cfg.Storage.Backend == StorageRedis:
		if rdb == nil {
			if cfg.Storage.Redis.Addr == "" {
				return nil, fmt.Errorf("%w: redis backend requires WithRedis or Storage.Redis.Addr", ErrInvalidConfig)
			}
			c.ownedRedis = redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr,
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			rdb = c.ownedRedis
		}
		c.store = store.NewRedisStore(rdb, cfg.Storage.Redis.Prefix, cfg.Storage.Redis.Namespace)
	case cfg.Storage.Backend == StorageFile:
		c.store = store.NewFileStore(cfg.Storage.FilePath)
	default:
		c.store = store.NewMemoryStore()
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = internalaudit.NewLoggerSink(logger)
	}
	c.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	// -------- SESSION + TRANSPORT --------
	refresher := timedRefresher{
		next: session.RefresherFunc(func(ctx context.Context, refreshToken string) (session.RefreshedTokens, error) {
			return c.api.Refresh(ctx, refreshToken)
		}),
		metrics: c.metrics,
	}
	c.sessions = session.NewManager(c.store, refresher, session.Options{
		RefreshTimeout:   cfg.Session.RefreshTimeout,
		Logger:           logger.With().Str("component", "session").Logger(),
		LogTokenPrefixes: cfg.Log.Diagnostics,
		OnEvent:          c.onSessionEvent,
		OnStateChange:    func(session.State) { c.publish() },
		Now:              b.now,
	})

	base := b.base
	if base == nil {
		base = http.DefaultTransport
	}
	c.gate = transport.New(c.sessions, base, transport.Options{
		AttemptTimeout: cfg.API.AttemptTimeout,
		RefreshBefore:  cfg.Session.RefreshBefore,
		OnEvent:        c.onGateEvent,
		Logger:         logger.With().Str("component", "transport").Logger(),
	})
	c.httpClient = c.gate.Client()

	c.api = api.New(api.Options{
		BaseURL:        cfg.API.BaseURL,
		Public:         &http.Client{Transport: base},
		Authorized:     c.httpClient,
		AttemptTimeout: cfg.API.AttemptTimeout,
		Logger:         logger.With().Str("component", "api").Logger(),
	})

	// -------- DEVICE + LOGIN STATE --------
	c.devices = device.NewProvider(c.store, b.attrs, device.Options{
		Logger:         logger.With().Str("component", "device").Logger(),
		LogFingerprint: cfg.Log.Diagnostics,
	})
	c.challenges = stores.NewChallengeStore(b.now)

	var window rate.Window = rate.NewMemoryWindow(b.now)
	if rdb != nil {
		window = rate.NewRedisWindow(rdb, cfg.Storage.Redis.Prefix+":cooldown")
	}
	cooldown := limiters.CooldownConfig{
		Enabled:  cfg.Account.ResendCooldown > 0,
		Cooldown: cfg.Account.ResendCooldown,
	}
	c.resendLimiter = limiters.NewCooldownLimiter(window, "resend", cooldown)
	c.forgotLimiter = limiters.NewCooldownLimiter(window, "forgot", cooldown)

	// -------- RESTORE --------
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	if err := c.sessions.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("stored session unavailable; starting logged out")
	}

	b.built = true
	return c, nil
}
