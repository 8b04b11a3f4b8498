package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/potwatch/potwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorePing(t *testing.T) {
	s, _ := newTestRedisStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, AccessTokenKey("user_1"))
	require.NoError(t, err)
	assert.False(t, ok, "missing key should not be found")

	require.NoError(t, s.Put(ctx, AccessTokenKey("user_1"), "access", 0))

	value, ok, err := s.Get(ctx, AccessTokenKey("user_1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access", value)

	require.NoError(t, s.Delete(ctx, AccessTokenKey("user_1")))
	_, ok, err = s.Get(ctx, AccessTokenKey("user_1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, AccessTokenKey("user_1"), "access", 30*time.Minute))
	require.NoError(t, s.Put(ctx, RefreshTokenKey("user_1"), "refresh", 0))

	mr.FastForward(31 * time.Minute)

	_, ok, err := s.Get(ctx, AccessTokenKey("user_1"))
	require.NoError(t, err)
	assert.False(t, ok, "access token should expire with its ttl")

	value, ok, err := s.Get(ctx, RefreshTokenKey("user_1"))
	require.NoError(t, err)
	assert.True(t, ok, "refresh token has no expiry")
	assert.Equal(t, "refresh", value)
}
