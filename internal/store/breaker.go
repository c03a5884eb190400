package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/weather"
)

// BreakerStore stops sending writes to a store that keeps failing.
// Once maxConsecutive writes fail in a row, remaining upserts fail fast
// until the breaker half-opens after the reset timeout.
type BreakerStore struct {
	inner   weather.Store
	circuit *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner. A maxConsecutive of zero disables the breaker
// and returns inner unchanged.
func NewBreakerStore(inner weather.Store, maxConsecutive uint32, reset time.Duration) weather.Store {
	if maxConsecutive == 0 {
		return inner
	}
	if reset <= 0 {
		reset = 2 * time.Minute
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "staging-writes",
		MaxRequests: 1,
		Timeout:     reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxConsecutive
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit %s: %s -> %s", name, from, to)
		},
	})

	return &BreakerStore{inner: inner, circuit: cb}
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

func (b *BreakerStore) EnsureIndexes(ctx context.Context) error {
	return b.inner.EnsureIndexes(ctx)
}

func (b *BreakerStore) Upsert(ctx context.Context, rec weather.WeatherRecord) (weather.WriteOp, error) {
	result, err := b.circuit.Execute(func() (interface{}, error) {
		return b.inner.Upsert(ctx, rec)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return weather.WriteNoop, fmt.Errorf("write not attempted: %w", err)
		}
		return weather.WriteNoop, err
	}

	op, ok := result.(weather.WriteOp)
	if !ok {
		return weather.WriteNoop, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return op, nil
}
