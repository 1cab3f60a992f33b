package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimitStore(t *testing.T) (*RateLimitStore, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	store := NewRateLimitStore(client)
	store.now = func() time.Time { return clock }
	return store, mr, &clock
}

func TestRateLimitStore_Allow(t *testing.T) {
	store, _, _ := newTestRateLimitStore(t)
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			result, err := store.Allow(ctx, "user1:wallets_mutation", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, 3, result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "user1:wallets_mutation", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "user2:wallets_mutation", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 4, result.Remaining)
	})

	t.Run("reset at end of window", func(t *testing.T) {
		result, err := store.Allow(ctx, "ip:auth_login", 10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), result.ResetAt.UTC())
	})
}

func TestRateLimitStore_NewWindowResetsCount(t *testing.T) {
	store, _, clock := newTestRateLimitStore(t)
	ctx := context.Background()
	key := "ip:users_register"

	_, err := store.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)

	result, err := store.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	*clock = clock.Add(time.Minute)

	result, err = store.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimitStore_KeysExpire(t *testing.T) {
	store, mr, _ := newTestRateLimitStore(t)

	_, err := store.Allow(context.Background(), "ip:auth_login", 5, time.Minute)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 61*time.Second, mr.TTL(keys[0]))

	mr.FastForward(62 * time.Second)
	assert.Empty(t, mr.Keys())
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	store, mr, _ := newTestRateLimitStore(t)
	mr.Close()

	_, err := store.Allow(context.Background(), "ip:auth_login", 5, time.Minute)
	assert.ErrorContains(t, err, "redis rate limit incr")
}
