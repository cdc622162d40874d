package stores

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrChallengeNotFound = errors.New("login challenge not found")
	ErrChallengeExpired  = errors.New("login challenge expired")
	ErrChallengeExceeded = errors.New("login challenge attempts exceeded")
	ErrChallengeSealing  = errors.New("login challenge sealing failed")
)

// ChallengeKind identifies what the pending challenge waits for.
type ChallengeKind uint8

const (
	ChallengeTwoFactor ChallengeKind = iota + 1
	ChallengeDeviceVerification
)

func (k ChallengeKind) String() string {
	switch k {
	case ChallengeTwoFactor:
		return "two_factor"
	case ChallengeDeviceVerification:
		return "device_verification"
	default:
		return "unknown"
	}
}

// Challenge is the non-secret view of a pending challenge.
type Challenge struct {
	Email          string
	Kind           ChallengeKind
	ChallengeToken string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Attempts       int
}

type challengeRecord struct {
	Challenge
	key    []byte
	nonce  []byte
	sealed []byte
}

func (r *challengeRecord) wipe() {
	for _, b := range [][]byte{r.key, r.nonce, r.sealed} {
		for i := range b {
			b[i] = 0
		}
	}
	r.key, r.nonce, r.sealed = nil, nil, nil
}

// ChallengeStore holds the single pending challenge. It is safe for
// concurrent use.
type ChallengeStore struct {
	mu      sync.Mutex
	current *challengeRecord
	now     func() time.Time
}

// NewChallengeStore returns an empty store. A nil now uses time.Now.
func NewChallengeStore(now func() time.Time) *ChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &ChallengeStore{now: now}
}

// Begin replaces any pending challenge with a new one for email. password is
// sealed and only recoverable through OpenPassword.
func (s *ChallengeStore) Begin(email, password string, kind ChallengeKind, challengeToken string, ttl time.Duration) (Challenge, error) {
	rec := &challengeRecord{
		Challenge: Challenge{
			Email:          email,
			Kind:           kind,
			ChallengeToken: challengeToken,
		},
	}
	if err := rec.seal([]byte(password)); err != nil {
		return Challenge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	s.discardLocked()
	s.current = rec
	return rec.Challenge, nil
}

// Current returns the pending challenge. An expired challenge is discarded
// and reported as ErrChallengeExpired.
func (s *ChallengeStore) Current() (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked()
	if err != nil {
		return Challenge{}, err
	}
	return rec.Challenge, nil
}

// OpenPassword returns the sealed password of the pending challenge. Callers
// should zero the returned slice when done.
func (s *ChallengeStore) OpenPassword() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(rec.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeSealing, err)
	}
	plain, err := aead.Open(nil, rec.nonce, rec.sealed, []byte(rec.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeSealing, err)
	}
	return plain, nil
}

// RecordFailure counts a wrong answer. When maxAttempts is reached the
// challenge is discarded and exceeded is true.
func (s *ChallengeStore) RecordFailure(maxAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked()
	if err != nil {
		return false, err
	}
	rec.Attempts++
	if maxAttempts > 0 && rec.Attempts >= maxAttempts {
		s.discardLocked()
		return true, nil
	}
	return false, nil
}

// Discard drops the pending challenge, if any.
func (s *ChallengeStore) Discard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.current != nil
	s.discardLocked()
	return had
}

func (s *ChallengeStore) liveLocked() (*challengeRecord, error) {
	rec := s.current
	if rec == nil {
		return nil, ErrChallengeNotFound
	}
	if !s.now().Before(rec.ExpiresAt) {
		s.discardLocked()
		return nil, ErrChallengeExpired
	}
	return rec, nil
}

func (s *ChallengeStore) discardLocked() {
	if s.current != nil {
		s.current.wipe()
		s.current = nil
	}
}

func (r *challengeRecord) seal(password []byte) error {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeSealing, err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeSealing, err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeSealing, err)
	}
	r.key = key
	r.nonce = nonce
	r.sealed = aead.Seal(nil, nonce, password, []byte(r.Email))
	return nil
}
