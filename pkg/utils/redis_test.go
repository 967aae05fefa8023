package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOpenRedis(t *testing.T) {
	mr, _ := newTestRedis(t)

	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	_, err = OpenRedis(context.Background(), RedisConfig{})
	assert.ErrorContains(t, err, "redis addr is required")
}

func TestWindowLimiter_Allow(t *testing.T) {
	_, rdb := newTestRedis(t)

	l, err := NewWindowLimiter(rdb, "select", 2, time.Minute)
	require.NoError(t, err)
	now := time.Unix(1_700_000_040, 0)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "agent-1")
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, err := l.Allow(ctx, "agent-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// other subjects have their own window
	ok, err = l.Allow(ctx, "Agent-2 ")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = l.Allow(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowLimiter_KeyExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)

	l, err := NewWindowLimiter(rdb, "select", 5, time.Minute)
	require.NoError(t, err)
	l.now = func() time.Time { return time.Unix(1_700_000_040, 0) }

	_, err = l.Allow(context.Background(), "agent-1")
	require.NoError(t, err)

	key := "select:agent-1:28333334"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestNewWindowLimiter_Validates(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := NewWindowLimiter(nil, "x", 1, time.Minute)
	assert.Error(t, err)
	_, err = NewWindowLimiter(rdb, "x", 0, time.Minute)
	assert.Error(t, err)
	_, err = NewWindowLimiter(rdb, "x", 1, time.Millisecond)
	assert.Error(t, err)

	l, err := NewWindowLimiter(rdb, "x", 1, time.Minute)
	require.NoError(t, err)
	_, err = l.Allow(context.Background(), "  ")
	assert.ErrorContains(t, err, "subject is required")
}
