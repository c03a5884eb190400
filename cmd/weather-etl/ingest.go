package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-etl/internal/config"
	"github.com/i474232898/weather-etl/internal/lock"
	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/metrics"
	"github.com/i474232898/weather-etl/internal/store"
	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/internal/weather/providers"
)

const cleanupTimeout = 10 * time.Second

func newIngestCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one fetch, normalize and upsert pass",
		Long: "Fetches the configured forecast endpoint once, normalizes every entry and upserts it " +
			"into the staging collection, then prints fetched=<N>, upserted/modified=<M>.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			validate := cfg.ValidateIngest
			if dryRun {
				validate = cfg.ValidateDryRun
			}
			if err := validate(); err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, dryRun, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "normalize into an in-memory store instead of MongoDB")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.AppConfig, dryRun bool, out io.Writer) error {
	// Shared HTTP client for the single outbound call.
	httpClient := &http.Client{Timeout: cfg.Source.HTTPTimeout}
	fetcher := providers.NewWeatherbitFetcher(httpClient, cfg.Source.URL, cfg.Source.APIKey, cfg.Source.City)

	var locker lock.Locker = lock.Noop{}
	if cfg.Lock.Addr != "" && !dryRun {
		rl := lock.NewRedisLocker(redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.Addr,
			Password: cfg.Lock.Password,
		}), cfg.Lock.Key, cfg.Lock.TTL)
		defer rl.Close()
		locker = rl
	}
	release, err := locker.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	st, closeStore, err := openStore(ctx, cfg, dryRun)
	if err != nil {
		return err
	}
	defer closeStore()

	rec := metrics.NewRecorder()
	report, err := weather.NewService(st, fetcher).Ingest(ctx)
	if err != nil {
		rec.ObserveFailure(report, err)
		pushMetrics(rec, cfg.Metrics.PushgatewayURL)
		return fmt.Errorf("run %s aborted: %w", report.RunID, err)
	}
	rec.ObserveRun(report)
	pushMetrics(rec, cfg.Metrics.PushgatewayURL)

	if n := len(report.Skipped); n > 0 {
		logger.Warnf("run %s: %d of %d entries skipped (field=%d write=%d)", report.RunID, n, report.Fetched,
			report.SkippedBy(weather.ErrField), report.SkippedBy(weather.ErrWrite))
	}
	logger.Infof("run %s: inserted=%d modified=%d in %s", report.RunID, report.Inserted, report.Modified,
		report.FinishedAt.Sub(report.StartedAt))
	return weather.Report(out, report)
}

// openStore returns the staging store and a func that closes it. The Mongo
// client is disconnected on every exit path through the returned func.
func openStore(ctx context.Context, cfg *config.AppConfig, dryRun bool) (weather.Store, func(), error) {
	if dryRun {
		logger.Infof("dry run: writing to an in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
	defer cancel()
	ms, err := store.ConnectMongo(connectCtx, cfg.Store.MongoURI(), cfg.Store.Database, cfg.Store.Collection, cfg.Store.Timeout)
	if err != nil {
		return nil, nil, &weather.ConnectionError{Err: err}
	}

	closeStore := func() {
		dctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := ms.Disconnect(dctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
	return store.NewBreakerStore(ms, cfg.Store.MaxConsecutiveFailures, 0), closeStore, nil
}

func pushMetrics(rec *metrics.Recorder, url string) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := rec.Push(ctx, url); err != nil {
		logger.Warnf("%v", err)
	}
}
