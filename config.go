package goAuthClient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/MrEthical07/goAuthClient/internal/logging"
)

// Config holds every tunable of a [Client]. Values come from
// [DefaultConfig], a YAML file and GOAUTH_* environment variables.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Login   LoginConfig   `yaml:"login"`
	Storage StorageConfig `yaml:"storage"`
	Account AccountConfig `yaml:"account"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the authentication backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url" env:"GOAUTH_API_BASE_URL"`
	// AttemptTimeout bounds every single HTTP attempt, including each half
	// of a retried request.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"GOAUTH_API_ATTEMPT_TIMEOUT" env-default:"15s"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes token refresh.
type SessionConfig struct {
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"GOAUTH_SESSION_REFRESH_TIMEOUT" env-default:"30s"`
	// RefreshBefore refreshes before sending when the access token expires
	// within this window. Zero relies on 401 handling only.
	RefreshBefore time.Duration `yaml:"refresh_before" env:"GOAUTH_SESSION_REFRESH_BEFORE" env-default:"0s"`
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig tunes the login state machine.
type LoginConfig struct {
	ChallengeTTL         time.Duration `yaml:"challenge_ttl" env:"GOAUTH_LOGIN_CHALLENGE_TTL" env-default:"10m"`
	MaxTwoFactorAttempts int           `yaml:"max_two_factor_attempts" env:"GOAUTH_LOGIN_MAX_TWO_FACTOR_ATTEMPTS" env-default:"5"`
	// DeviceName overrides the "Manufacturer Model" name sent at login.
	DeviceName string `yaml:"device_name" env:"GOAUTH_LOGIN_DEVICE_NAME"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageFile   = "file"
)

// StorageConfig selects the credential store backend.
type StorageConfig struct {
	Backend  string      `yaml:"backend" env:"GOAUTH_STORAGE_BACKEND" env-default:"memory"`
	Redis    RedisConfig `yaml:"redis"`
	FilePath string      `yaml:"file_path" env:"GOAUTH_STORAGE_FILE_PATH"`
}

// RedisConfig is used when no client is passed to [Builder.WithRedis].
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"GOAUTH_REDIS_ADDR"`
	Password string `yaml:"password" env:"GOAUTH_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"GOAUTH_REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"GOAUTH_REDIS_PREFIX" env-default:"gac"`
	// Namespace separates credential sets sharing one Redis, e.g. profiles.
	Namespace string `yaml:"namespace" env:"GOAUTH_REDIS_NAMESPACE" env-default:"default"`
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig tunes account-recovery helpers.
type AccountConfig struct {
	// ResendCooldown is the minimum gap between two resend or forgot-password
	// requests for the same address. Zero disables the cooldown.
	ResendCooldown    time.Duration `yaml:"resend_cooldown" env:"GOAUTH_ACCOUNT_RESEND_COOLDOWN" env-default:"60s"`
	LoginHistoryLimit int           `yaml:"login_history_limit" env:"GOAUTH_ACCOUNT_LOGIN_HISTORY_LIMIT" env-default:"20"`
}

/*
====================================
AUDIT / METRICS / LOG CONFIG
====================================
*/

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"GOAUTH_AUDIT_ENABLED" env-default:"false"`
	BufferSize int  `yaml:"buffer_size" env:"GOAUTH_AUDIT_BUFFER_SIZE" env-default:"1024"`
	DropIfFull bool `yaml:"drop_if_full" env:"GOAUTH_AUDIT_DROP_IF_FULL" env-default:"true"`
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"GOAUTH_METRICS_ENABLED" env-default:"false"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"GOAUTH_METRICS_LATENCY" env-default:"false"`
}

// LogConfig controls the logger built by [Builder.WithLogOutput].
// Diagnostics also applies to a logger passed to [Builder.WithLogger].
type LogConfig struct {
	Level  string `yaml:"level" env:"GOAUTH_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"GOAUTH_LOG_FORMAT" env-default:"json"`
	// Diagnostics logs token prefixes and device fingerprints at debug
	// level. Keep it off outside development.
	Diagnostics bool `yaml:"diagnostics" env:"GOAUTH_LOG_DIAGNOSTICS" env-default:"false"`
}

// DefaultConfig returns the defaults. API.BaseURL must still be set.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			AttemptTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			RefreshTimeout: 30 * time.Second,
		},
		Login: LoginConfig{
			ChallengeTTL:         10 * time.Minute,
			MaxTwoFactorAttempts: 5,
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
			Redis: RedisConfig{
				Prefix:    "gac",
				Namespace: "default",
			},
		},
		Account: AccountConfig{
			ResendCooldown:    60 * time.Second,
			LoginHistoryLimit: 20,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Log: LogConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatJSON,
		},
	}
}

// LoadConfig reads the config with [ReadConfig] and validates it.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadConfig reads path (YAML) when given, then overlays GOAUTH_*
// environment variables. Unset fields take their defaults. The result is not
// validated.
func ReadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config from env: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}

	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("API.BaseURL must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.AttemptTimeout <= 0 {
		return invalid("API.AttemptTimeout must be > 0")
	}
	if c.Session.RefreshTimeout <= 0 {
		return invalid("Session.RefreshTimeout must be > 0")
	}
	if c.Session.RefreshBefore < 0 {
		return invalid("Session.RefreshBefore must be >= 0")
	}
	if c.Login.ChallengeTTL <= 0 {
		return invalid("Login.ChallengeTTL must be > 0")
	}
	if c.Login.MaxTwoFactorAttempts < 1 {
		return invalid("Login.MaxTwoFactorAttempts must be >= 1")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if c.Storage.FilePath == "" {
			return invalid("Storage.FilePath is required for the file backend")
		}
	default:
		return invalid("unknown Storage.Backend %q", c.Storage.Backend)
	}
	if c.Storage.Redis.DB < 0 {
		return invalid("Storage.Redis.DB must be >= 0")
	}

	if c.Account.ResendCooldown < 0 {
		return invalid("Account.ResendCooldown must be >= 0")
	}
	if c.Account.LoginHistoryLimit < 0 {
		return invalid("Account.LoginHistoryLimit must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalid("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("%v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return invalid("unknown Log.Format %q", c.Log.Format)
	}
	return nil
}
