package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWrappedRedis(t *testing.T) (*RedisWrapper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rw := NewRedisWrapper(client, zap.NewNop())
	t.Cleanup(func() { rw.Close() })
	return rw, mr
}

func TestRedisWrapperSetGet(t *testing.T) {
	rw, _ := newWrappedRedis(t)
	ctx := context.Background()

	require.NoError(t, rw.Set(ctx, "k", "v", time.Minute))
	val, err := rw.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestRedisWrapperGetMissingKey(t *testing.T) {
	rw, _ := newWrappedRedis(t)

	_, err := rw.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, redis.Nil)
	// A miss is not a failure; the breaker stays closed.
	assert.Equal(t, StateClosed, rw.breaker.State())
}

func TestRedisWrapperSetNX(t *testing.T) {
	rw, _ := newWrappedRedis(t)
	ctx := context.Background()

	ok, err := rw.SetNX(ctx, "lock", "run-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rw.SetNX(ctx, "lock", "run-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX on a held lock must not acquire")

	require.NoError(t, rw.Del(ctx, "lock"))
	ok, err = rw.SetNX(ctx, "lock", "run-3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisWrapperTripsWhenRedisDown(t *testing.T) {
	rw, mr := newWrappedRedis(t)
	ctx := context.Background()
	mr.Close()

	for i := 0; i < int(DefaultSettings().FailureThreshold); i++ {
		assert.Error(t, rw.Set(ctx, "k", "v", time.Minute))
	}
	assert.True(t, rw.Open())

	// Fail fast now: the call is rejected before reaching Redis.
	err := rw.Ping(ctx)
	assert.ErrorIs(t, err, ErrOpen)
}
