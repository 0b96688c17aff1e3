package stats

import (
	"go.uber.org/zap"

	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/tracker"
)

// defaultHiddenKeys are bookkeeping stats that would only add noise to
// tensorboard charts.
var defaultHiddenKeys = []string{"Is Training", "Step"}

// DefaultWriters builds the writer set every run gets when no plugin
// overrides it: tensorboard events under the run's write path, prometheus
// gauges on the default registerer, console progress lines, and an
// experiment-tracker bridge configured from the environment.
//
// A misconfigured tracker degrades the set instead of failing the run: the
// tracker writer is skipped with a warning and the remaining writers are
// returned.
func DefaultWriters(opts *settings.RunOptions, logger *zap.Logger) ([]StatsWriter, error) {
	if opts == nil {
		return nil, settings.ErrNilRunOptions
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	writePath := opts.Checkpoint.WritePath()
	writers := []StatsWriter{
		NewTensorboardWriter(writePath, !opts.Checkpoint.Resume, defaultHiddenKeys, logger),
		NewGaugeWriter(nil, logger),
		NewConsoleWriter(logger),
	}

	client, err := tracker.NewFromEnv(writePath, logger)
	if err != nil {
		logger.Warn("experiment tracker unavailable, stats will not be tracked", zap.Error(err))
		return writers, nil
	}

	runConfig, err := settings.Flatten(opts)
	if err != nil {
		return nil, err
	}
	writers = append(writers, NewTrackerWriter(client, opts.Checkpoint.RunID, runConfig, logger))
	return writers, nil
}
