package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gac"

// RedisStore keeps values in Redis under "<prefix>:<namespace>:<key>".
//
// The namespace separates credential sets that share one Redis instance,
// for example several CLI profiles.
//
//	Performance: one round-trip per call; GetMany is one MGET and Update a
//	single MULTI/EXEC.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	namespace string
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to "gac" and
// an empty namespace to "default".
func NewRedisStore(client redis.UniversalClient, prefix, namespace string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if namespace == "" {
		namespace = "default"
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		namespace: namespace,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + s.namespace + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, true, nil
}

// GetMany reads keys with a single MGET, which Redis executes atomically.
func (s *RedisStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	vals, err := s.redis.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, set map[string]string, del ...string) error {
	if len(set) == 0 && len(del) == 0 {
		return nil
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(del) > 0 {
			keys := make([]string, 0, len(del))
			for _, k := range del {
				keys = append(keys, s.key(k))
			}
			pipe.Del(ctx, keys...)
		}
		for k, v := range set {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
