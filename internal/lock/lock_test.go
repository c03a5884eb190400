package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l := NewRedisLocker(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "weather-etl:ingest", ttl)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestRedisLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t, time.Minute)

	release, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("weather-etl:ingest"))
	assert.Equal(t, time.Minute, mr.TTL("weather-etl:ingest"))

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("weather-etl:ingest"))

	release, err = l.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLocker_ExpiredLockIsNotStolen(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t, time.Second)

	release, err := l.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	next, err := l.Acquire(ctx)
	require.NoError(t, err)

	// The first run's release must leave the second run's lock alone.
	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("weather-etl:ingest"))

	require.NoError(t, next(ctx))
	assert.False(t, mr.Exists("weather-etl:ingest"))
}

func TestRedisLocker_Unreachable(t *testing.T) {
	l, mr := newLocker(t, time.Minute)
	mr.Close()

	_, err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}
