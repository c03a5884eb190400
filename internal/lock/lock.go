// Package lock guards against two ingestion runs writing the staging
// collection at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-etl/internal/logger"
)

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("another ingestion run holds the lock")

// Release gives the lock back. It is safe to call after the lock expired.
type Release func(ctx context.Context) error

// Locker hands out an exclusive run lock.
type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

// Noop never blocks. Used when no lock backend is configured.
type Noop struct{}

func (Noop) Acquire(context.Context) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript deletes the key only if it still holds our token, so a run
// whose lock expired cannot release a lock taken over by a later run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock: SET NX PX to acquire and a
// compare-and-delete script to release. The TTL bounds how long a crashed
// run can block the next one.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (key %s)", ErrLocked, l.key)
	}
	logger.Debugf("acquired lock %s for %s", l.key, l.ttl)

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		if n == 0 {
			logger.Warnf("lock %s expired before the run finished", l.key)
		}
		return nil
	}, nil
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
