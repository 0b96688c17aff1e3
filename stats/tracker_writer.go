package stats

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/rlkit/trainflow/tracker"
)

// maxTrackerFailures is the number of consecutive logging failures after
// which the writer stops talking to the tracker.
const maxTrackerFailures = 3

// TrackerWriter forwards aggregated stats to an experiment tracker. The run
// starts lazily on the first flush. Tracker failures never interrupt
// training: the writer logs them and disables itself after repeated
// errors.
type TrackerWriter struct {
	client    tracker.Client
	runName   string
	runConfig map[string]any
	logger    *zap.Logger

	mu       sync.Mutex
	run      tracker.Run
	disabled bool
	failures int
}

var (
	_ StatsWriter = (*TrackerWriter)(nil)
	_ io.Closer   = (*TrackerWriter)(nil)
)

// NewTrackerWriter bridges stats to client. runConfig is the flattened run
// options recorded when the run starts.
func NewTrackerWriter(client tracker.Client, runName string, runConfig map[string]any, logger *zap.Logger) *TrackerWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackerWriter{
		client:    client,
		runName:   runName,
		runConfig: runConfig,
		logger:    logger.With(zap.String("component", "stats_tracker")),
	}
}

// WriteStats logs the category's aggregated values, keyed
// "<category>/<stat>" so categories sharing the run stay distinguishable.
func (w *TrackerWriter) WriteStats(category string, values map[string]StatsSummary, step int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disabled || w.client == nil {
		return
	}

	ctx := context.Background()
	if w.run == nil {
		run, err := w.client.StartRun(ctx, tracker.RunConfig{
			Name:   w.runName,
			Config: w.runConfig,
		})
		if err != nil {
			w.logger.Warn("start tracked run failed, disabling tracker writer", zap.Error(err))
			w.disabled = true
			return
		}
		w.run = run
	}

	metrics := make(map[string]float64, len(values))
	for key, summary := range values {
		if summary.Num() == 0 {
			continue
		}
		metrics[category+"/"+key] = summary.AggregatedValue()
	}
	if len(metrics) == 0 {
		return
	}

	if err := w.run.LogMetrics(ctx, step, metrics); err != nil {
		w.failures++
		w.logger.Warn("log metrics failed",
			zap.Error(err),
			zap.Int("consecutive_failures", w.failures),
		)
		if w.failures >= maxTrackerFailures {
			w.logger.Warn("tracker writer disabled after repeated failures")
			w.disabled = true
		}
		return
	}
	w.failures = 0
}

// Close finishes the tracked run (when one started) and closes the client.
func (w *TrackerWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client == nil {
		return nil
	}

	var errs []error
	if w.run != nil {
		if err := w.run.Finish(context.Background(), tracker.StatusFinished); err != nil {
			errs = append(errs, err)
		}
		w.run = nil
	}
	errs = append(errs, w.client.Close())
	return errors.Join(errs...)
}
