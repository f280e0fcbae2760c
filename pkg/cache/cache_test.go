package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func setupRedisCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c, err := NewRedisCache(RedisConfig{Client: client, MaxFailures: 2, ResetTimeout: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:1", session{UserID: 1, Role: "guard"}, time.Minute))

	var got session
	require.NoError(t, c.Get(ctx, "session:1", &got))
	assert.Equal(t, session{UserID: 1, Role: "guard"}, got)

	t.Run("expires with ttl", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		err := c.Get(ctx, "session:1", &got)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Sets)
}

func TestRedisCache_Delete(t *testing.T) {
	_, c := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", true, time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var v bool
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestRedisCache_Validation(t *testing.T) {
	_, c := setupRedisCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", true, time.Minute), ErrInvalidKey)
	assert.ErrorIs(t, c.Set(ctx, "k", true, 0), ErrInvalidTTL)
	assert.Error(t, c.Set(ctx, strings.Repeat("k", 513), true, time.Minute))
	assert.Error(t, c.Get(ctx, "k", nil))
}

func TestRedisCache_CircuitOpensWhenRedisIsDown(t *testing.T) {
	mr, c := setupRedisCache(t)
	ctx := context.Background()

	mr.Close()

	for i := 0; i < 2; i++ {
		err := c.Set(ctx, "k", true, time.Minute)
		require.Error(t, err)
	}

	err := c.Set(ctx, "k", true, time.Minute)
	assert.True(t, errors.Is(err, ErrCacheUnavailable))
	assert.True(t, c.Stats().CircuitOpen)
}

func TestRedisCache_MissDoesNotTripBreaker(t *testing.T) {
	_, c := setupRedisCache(t)
	ctx := context.Background()

	var v bool
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, c.Get(ctx, "absent", &v), ErrCacheMiss)
	}
	assert.False(t, c.Stats().CircuitOpen)
}

func TestNewRedisCache_RequiresClient(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{})
	assert.Error(t, err)
}

func TestInMemoryCache(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "a", session{UserID: 7}, time.Minute))

		var got session
		require.NoError(t, c.Get(ctx, "a", &got))
		assert.Equal(t, int64(7), got.UserID)
	})

	t.Run("expired entries miss", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", true, time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		var v bool
		assert.ErrorIs(t, c.Get(ctx, "short", &v), ErrCacheMiss)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "b", 1, time.Minute))
		require.NoError(t, c.Delete(ctx, "b"))

		var v int
		assert.ErrorIs(t, c.Get(ctx, "b", &v), ErrCacheMiss)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
	})
}
