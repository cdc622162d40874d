package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/internal/redact"
	"github.com/MrEthical07/goAuthClient/store"
)

// ErrHashUnavailable signals that the digest primitive cannot be used.
var ErrHashUnavailable = errors.New("fingerprint hash unavailable")

// Namespace scopes name-based fallback fingerprints.
var Namespace = uuid.MustParse("8f0d4a52-3c1e-5b7a-9d2f-6e4c1b0a7f35")

// Attributes are the device identifiers a fingerprint is derived from.
type Attributes struct {
	HardwareID   string
	Manufacturer string
	Model        string
	Brand        string
	Device       string
}

// AttributeSource supplies the current device attributes.
type AttributeSource interface {
	Attributes() (Attributes, error)
}

// StaticAttributes is an [AttributeSource] that always returns itself.
type StaticAttributes Attributes

func (s StaticAttributes) Attributes() (Attributes, error) {
	return Attributes(s), nil
}

// Hasher digests the canonical attribute string.
type Hasher func(canonical string) (string, error)

// SHA256Hex is the default [Hasher].
func SHA256Hex(canonical string) (string, error) {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// Canonical encodes attrs in their fixed order, each field as
// "<byte length>:<value>", so no two attribute sets share an encoding.
func Canonical(attrs Attributes) string {
	var b strings.Builder
	for _, f := range []string{
		attrs.HardwareID,
		attrs.Manufacturer,
		attrs.Model,
		attrs.Brand,
		attrs.Device,
	} {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return b.String()
}

// Derive computes the fingerprint for attrs with SHA-256.
func Derive(attrs Attributes) string {
	fp, _ := SHA256Hex(Canonical(attrs))
	return fp
}

// DeriveWith computes the fingerprint with hasher, falling back to a
// name-based UUID when hasher fails.
func DeriveWith(attrs Attributes, hasher Hasher) string {
	canonical := Canonical(attrs)
	if hasher != nil {
		if fp, err := hasher(canonical); err == nil && fp != "" {
			return fp
		}
	}
	return uuid.NewSHA1(Namespace, []byte(canonical)).String()
}

// Options configure a [Provider].
type Options struct {
	Hasher Hasher
	Logger zerolog.Logger
	// LogFingerprint logs full fingerprints at debug level. Off by default.
	LogFingerprint bool
}

// Provider returns the persisted fingerprint, creating it on first use.
type Provider struct {
	store  store.Store
	source AttributeSource
	hasher Hasher
	logger zerolog.Logger
	debug  bool

	mu     sync.Mutex
	cached string
}

// NewProvider creates a [Provider]. A nil source uses [HostAttributes].
func NewProvider(st store.Store, source AttributeSource, opts Options) *Provider {
	if source == nil {
		source = HostAttributes{}
	}
	if opts.Hasher == nil {
		opts.Hasher = SHA256Hex
	}
	return &Provider{
		store:  st,
		source: source,
		hasher: opts.Hasher,
		logger: opts.Logger,
		debug:  opts.LogFingerprint,
	}
}

// GetOrCreateFingerprint returns the stored fingerprint or derives, persists,
// and returns a new one.
//
// Storage failures do not fail the call: derivation is deterministic, so the
// value returned is the one that would have been stored.
func (p *Provider) GetOrCreateFingerprint(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	stored, ok, err := p.store.Get(ctx, store.KeyDeviceFingerprint)
	if err != nil {
		p.logger.Warn().Err(err).Msg("device fingerprint read failed; deriving")
	}
	if err == nil && ok && stored != "" {
		p.cached = stored
		return stored, nil
	}

	attrs, err := p.source.Attributes()
	if err != nil {
		return "", err
	}
	fp := DeriveWith(attrs, p.hasher)

	if err := p.store.Put(ctx, store.KeyDeviceFingerprint, fp); err != nil {
		p.logger.Warn().Err(err).Msg("device fingerprint persist failed")
	} else {
		p.cached = fp
	}

	if p.debug {
		p.logger.Debug().Str("fingerprint", fp).Msg("device fingerprint created")
	} else {
		p.logger.Debug().Str("fingerprint", redact.TokenPrefix(fp)).Msg("device fingerprint created")
	}
	return fp, nil
}

// DeviceName returns a human-readable "Manufacturer Model" label.
func (p *Provider) DeviceName() string {
	attrs, err := p.source.Attributes()
	if err != nil {
		return "unknown device"
	}
	name := strings.TrimSpace(attrs.Manufacturer + " " + attrs.Model)
	if name == "" {
		return "unknown device"
	}
	return name
}
