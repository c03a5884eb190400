package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-etl/internal/logger"
)

// Service runs one fetch -> normalize -> upsert pass against a staging store.
type Service struct {
	store   Store
	fetcher Fetcher
	now     func() time.Time
	newID   func() string
}

// NewService creates a new Service.
func NewService(store Store, fetcher Fetcher) *Service {
	return &Service{
		store:   store,
		fetcher: fetcher,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// WithClock replaces the processing clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest performs one run. A non-nil error is batch-fatal and means no
// summary should be reported; per-record failures are in the returned report.
func (s *Service) Ingest(ctx context.Context) (BatchReport, error) {
	runID := s.newID()
	report := BatchReport{RunID: runID, StartedAt: s.now()}
	fail := func(err error) (BatchReport, error) {
		report.FinishedAt = s.now()
		return report, err
	}

	if s.store == nil || s.fetcher == nil {
		return fail(fmt.Errorf("ingest: store and fetcher must be configured"))
	}

	if err := s.store.Ping(ctx); err != nil {
		return fail(&ConnectionError{Err: err})
	}
	if err := s.store.EnsureIndexes(ctx); err != nil {
		return fail(&ConnectionError{Err: fmt.Errorf("ensure indexes: %w", err)})
	}

	logger.Infof("run %s: fetching from %s", runID, s.fetcher.Name())
	payload, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fail(err)
	}

	batch, err := Normalize(payload, NormalizeOptions{
		Provider: s.fetcher.Name(),
		RunID:    runID,
		Now:      s.now,
	})
	if err != nil {
		return fail(err)
	}
	logger.Debugf("run %s: payload for %q has %d entries", runID, batch.City, batch.Len())

	for out := range batch.Outcomes() {
		report.Fetched++

		if out.Err != nil {
			logger.Skipf("run %s: skipping %v", runID, out.Err)
			report.Skipped = append(report.Skipped, out.Err)
			continue
		}

		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		rec := out.Record
		op, err := s.store.Upsert(ctx, rec)
		if err != nil {
			werr := &WriteError{ID: rec.ID, City: rec.City, RawTimestamp: rec.RawTimestamp, Err: err}
			logger.Skipf("run %s: skipping %v", runID, werr)
			report.Skipped = append(report.Skipped, werr)
			continue
		}

		switch op {
		case WriteInserted:
			report.Inserted++
		case WriteModified:
			report.Modified++
		}
		logger.Debugf("run %s: %s %s", runID, op, rec.ID)
	}

	report.FinishedAt = s.now()
	return report, nil
}
