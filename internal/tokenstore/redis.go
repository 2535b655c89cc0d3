package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by RedisStorage.
const DefaultRedisPrefix = "apporte:"

// RedisStorage keeps values in Redis so several hosts (CI runners, dispatch
// kiosks) can share one session.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithPrefix overrides DefaultRedisPrefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisStorage) {
		r.prefix = prefix
	}
}

// WithTTL expires stored values after ttl. Zero keeps them until removed.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStorage) {
		r.ttl = ttl
	}
}

// NewRedisStorage wraps an existing client. The caller owns the client.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisOption) *RedisStorage {
	r := &RedisStorage{
		client: client,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the value stored under key.
func (r *RedisStorage) Load(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", r.prefix+key, err)
	}
	return value, true, nil
}

// Save stores value under key with the configured TTL.
func (r *RedisStorage) Save(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.prefix+key, err)
	}
	return nil
}

// Remove deletes key.
func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.prefix+key, err)
	}
	return nil
}

// Name returns "redis".
func (r *RedisStorage) Name() string {
	return "redis"
}
