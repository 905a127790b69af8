package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisWrapper guards a Redis client with a circuit breaker. When Redis is
// down the wrapper fails fast instead of letting every session operation wait
// out a connection timeout.
type RedisWrapper struct {
	client  *redis.Client
	breaker *Breaker
}

// NewRedisWrapper wraps client with a breaker using DefaultSettings.
func NewRedisWrapper(client *redis.Client, logger *zap.Logger) *RedisWrapper {
	return &RedisWrapper{
		client:  client,
		breaker: New("redis", DefaultSettings(), logger),
	}
}

// redis.Nil means "key absent", not "Redis unhealthy"; it must not count
// against the breaker.
func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.breaker.Execute(ctx, func() error {
		return rw.client.Ping(ctx).Err()
	})
}

// Get returns the value of key. Absent keys surface as redis.Nil without
// counting against the breaker.
func (rw *RedisWrapper) Get(ctx context.Context, key string) (string, error) {
	var val string
	var getErr error
	err := rw.breaker.Execute(ctx, func() error {
		val, getErr = rw.client.Get(ctx, key).Result()
		return ignoreNil(getErr)
	})
	if err != nil {
		return "", err
	}
	return val, getErr
}

func (rw *RedisWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return rw.breaker.Execute(ctx, func() error {
		return rw.client.Set(ctx, key, value, expiration).Err()
	})
}

// SetNX sets the key only if absent, returning whether it was set. Backs the
// per-session active-run lock.
func (rw *RedisWrapper) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	var ok bool
	err := rw.breaker.Execute(ctx, func() error {
		var innerErr error
		ok, innerErr = rw.client.SetNX(ctx, key, value, expiration).Result()
		return innerErr
	})
	return ok, err
}

func (rw *RedisWrapper) Del(ctx context.Context, keys ...string) error {
	return rw.breaker.Execute(ctx, func() error {
		return rw.client.Del(ctx, keys...).Err()
	})
}

func (rw *RedisWrapper) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return rw.breaker.Execute(ctx, func() error {
		return rw.client.Expire(ctx, key, expiration).Err()
	})
}

// Open reports whether the breaker is currently rejecting requests.
func (rw *RedisWrapper) Open() bool {
	return rw.breaker.State() == StateOpen
}

// Client exposes the underlying Redis client for operations the wrapper does
// not cover.
func (rw *RedisWrapper) Client() *redis.Client {
	return rw.client
}

func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}
