package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-etl/internal/weather"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("no weather record for id")
)

// MemoryStore is a concurrency-safe in-memory staging store.
// It applies the same upsert and cursor rules as MongoStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: record id
	data map[string]weather.WeatherRecord

	// fault injection
	pingErr   error
	writeHook func(weather.WeatherRecord) error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]weather.WeatherRecord),
	}
}

// SetPingError makes Ping fail with err until reset with nil.
func (s *MemoryStore) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// SetWriteHook installs a function consulted before every write; a non-nil
// return rejects the write.
func (s *MemoryStore) SetWriteHook(hook func(weather.WeatherRecord) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeHook = hook
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

func (s *MemoryStore) EnsureIndexes(context.Context) error {
	return nil
}

// Upsert stores rec under rec.ID. On replace, ingested_at is preserved and
// updated_at is bumped past the previous value if the clock did not advance.
func (s *MemoryStore) Upsert(ctx context.Context, rec weather.WeatherRecord) (weather.WriteOp, error) {
	if err := ctx.Err(); err != nil {
		return weather.WriteNoop, err
	}
	if rec.ID == "" {
		return weather.WriteNoop, errors.New("record id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeHook != nil {
		if err := s.writeHook(rec); err != nil {
			return weather.WriteNoop, err
		}
	}

	prev, ok := s.data[rec.ID]
	if !ok {
		s.data[rec.ID] = rec
		return weather.WriteInserted, nil
	}

	if !prev.IngestedAt.IsZero() {
		rec.IngestedAt = prev.IngestedAt
	}
	if !rec.UpdatedAt.After(prev.UpdatedAt) {
		rec.UpdatedAt = prev.UpdatedAt.Add(time.Millisecond)
	}
	s.data[rec.ID] = rec
	return weather.WriteModified, nil
}

// Get returns the record stored under id.
func (s *MemoryStore) Get(id string) (weather.WeatherRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return weather.WeatherRecord{}, ErrNotFound
	}
	return rec, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// All returns every record ordered by city, then dt.
func (s *MemoryStore) All() []weather.WeatherRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.WeatherRecord, 0, len(s.data))
	for _, rec := range s.data {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].City != result[j].City {
			return result[i].City < result[j].City
		}
		return result[i].DT.Before(result[j].DT)
	})
	return result
}
