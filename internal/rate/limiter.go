package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window grants each key at most once per ttl.
type Window interface {
	// Acquire reports whether key was granted. When it was not, remaining is
	// how long until it can be granted again.
	Acquire(ctx context.Context, key string, ttl time.Duration) (granted bool, remaining time.Duration, err error)
	// Release forgets key so the next Acquire is granted.
	Release(ctx context.Context, key string) error
}

// MemoryWindow is a process-local [Window].
type MemoryWindow struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemoryWindow returns an empty window. A nil now uses time.Now.
func NewMemoryWindow(now func() time.Time) *MemoryWindow {
	if now == nil {
		now = time.Now
	}
	return &MemoryWindow{until: make(map[string]time.Time), now: now}
}

func (w *MemoryWindow) Acquire(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if until, ok := w.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}
	w.until[key] = now.Add(ttl)

	// Drop stale keys opportunistically.
	for k, until := range w.until {
		if !now.Before(until) {
			delete(w.until, k)
		}
	}
	return true, 0, nil
}

func (w *MemoryWindow) Release(_ context.Context, key string) error {
	w.mu.Lock()
	delete(w.until, key)
	w.mu.Unlock()
	return nil
}

// RedisWindow is a [Window] shared through Redis.
type RedisWindow struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisWindow returns a window keyed under prefix.
func NewRedisWindow(redisClient redis.UniversalClient, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "gac:cd"
	}
	return &RedisWindow{redis: redisClient, prefix: prefix}
}

func (w *RedisWindow) key(k string) string {
	return w.prefix + ":" + k
}

func (w *RedisWindow) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := w.redis.SetNX(ctx, w.key(key), 1, ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := w.redis.PTTL(ctx, w.key(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

func (w *RedisWindow) Release(ctx context.Context, key string) error {
	if err := w.redis.Del(ctx, w.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
