package redis

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*IdempotencyCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyCache(client), mr
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := "5f0c2c1e-8c39-4f8e-9b0e-3f7f3c2a1d10:fund:req-001"
	value := []byte(`{"key":"k","wallet":{"balance":"19200"}}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, mr.Exists(idempotencyPrefix+key))
}

func TestIdempotencyCache_ClaimIsExclusive(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := cache.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyPending, result)
	assert.Equal(t, 30*time.Second, mr.TTL(idempotencyPrefix+"k"))
}

func TestIdempotencyCache_SetReplacesClaim(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "k", []byte("result"), time.Hour))

	result, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), result)
	assert.Equal(t, time.Hour, mr.TTL(idempotencyPrefix+"k"))

	ok, err := cache.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "a recorded key cannot be claimed again")
}

func TestIdempotencyCache_ReleaseFreesKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, cache.Release(ctx, "k"))

	ok, err := cache.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	result, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestIdempotencyCache_RedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "redis idempotency get")
	assert.ErrorContains(t, cache.Set(context.Background(), "k", []byte("v"), time.Minute), "redis idempotency set")
	_, err = cache.Claim(context.Background(), "k", time.Minute)
	assert.ErrorContains(t, err, "redis idempotency claim")
	assert.ErrorContains(t, cache.Release(context.Background(), "k"), "redis idempotency release")
}
