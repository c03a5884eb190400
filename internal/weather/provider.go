package weather

import (
	"context"
)

// Fetcher retrieves one raw forecast payload from an upstream API.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (Payload, error)
}

// Store is the contract the staging store (Mongo, or the in-memory one) must satisfy.
type Store interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// EnsureIndexes creates the cursor and uniqueness indexes if missing.
	EnsureIndexes(ctx context.Context) error
	// Upsert inserts rec or replaces the document with the same ID.
	// The stored updated_at must end up strictly greater than any previous value for that ID.
	Upsert(ctx context.Context, rec WeatherRecord) (WriteOp, error)
}
