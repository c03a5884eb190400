// Package metrics records per-run ingestion counters and pushes them to a
// Prometheus Pushgateway at the end of the run.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/weather"
)

const jobName = "weather_etl"

// Recorder holds the metrics of one ingestion run in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	fetched     prometheus.Counter
	written     *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge

	failed bool
}

// NewRecorder creates a Recorder with all series registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_etl_records_fetched_total",
			Help: "Forecast entries received from the API.",
		}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_records_written_total",
			Help: "Records written to the staging collection by operation.",
		}, []string{"op"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_records_skipped_total",
			Help: "Entries not written, by reason.",
		}, []string{"reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_runs_total",
			Help: "Ingestion runs by result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weather_etl_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weather_etl_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}

	r.registry.MustRegister(r.fetched, r.written, r.skipped, r.runs, r.lastSuccess, r.duration)

	// Pre-create label values so a quiet run still exports zeros.
	for _, op := range []weather.WriteOp{weather.WriteInserted, weather.WriteModified} {
		r.written.WithLabelValues(op.String())
	}
	for _, reason := range []string{"field", "write"} {
		r.skipped.WithLabelValues(reason)
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records a completed run. Per-record failures do not make a run fail.
func (r *Recorder) ObserveRun(report weather.BatchReport) {
	r.fetched.Add(float64(report.Fetched))
	r.written.WithLabelValues(weather.WriteInserted.String()).Add(float64(report.Inserted))
	r.written.WithLabelValues(weather.WriteModified.String()).Add(float64(report.Modified))
	r.skipped.WithLabelValues("field").Add(float64(report.SkippedBy(weather.ErrField)))
	r.skipped.WithLabelValues("write").Add(float64(report.SkippedBy(weather.ErrWrite)))
	r.runs.WithLabelValues("success").Inc()

	if !report.FinishedAt.IsZero() {
		r.lastSuccess.Set(float64(report.FinishedAt.Unix()))
		r.duration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	logger.Debugf("metrics: run %s recorded", report.RunID)
}

// ObserveFailure records a batch-fatal run. A later Push only sends the run
// counter and duration, so the gateway keeps the last success timestamp.
func (r *Recorder) ObserveFailure(report weather.BatchReport, err error) {
	r.failed = true
	r.fetched.Add(float64(report.Fetched))
	r.runs.WithLabelValues("failure").Inc()
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		r.duration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	logger.Debugf("metrics: run %s failed: %v", report.RunID, err)
}

// Push sends the run's metrics to the Pushgateway at url. A completed run
// replaces the job's metric group (PUT); a failed run only adds the run
// counter and duration (POST) and leaves every other series as it was.
func (r *Recorder) Push(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("pushgateway url is empty")
	}
	pusher := push.New(url, jobName)
	var err error
	if r.failed {
		err = pusher.Collector(r.runs).Collector(r.duration).AddContext(ctx)
	} else {
		err = pusher.Gatherer(r.registry).PushContext(ctx)
	}
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
