package plugins

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/stats"
)

// ResolveStatsWriters builds the writer set for a run. With nothing
// registered under StatsWriterKey it warns and returns the default writers
// as the entire result. Otherwise it walks the entry points in registration
// order and accumulates their writers; the defaults appear only insofar as
// the builtin "default" entry point is among them. A failing entry point
// (load error, factory error, panic, nil writer) is logged and skipped, so
// one broken plugin never costs the run more than its own telemetry.
func (r *Registry) ResolveStatsWriters(opts *settings.RunOptions) ([]stats.StatsWriter, error) {
	logger := r.log()

	if !r.HasNamespace(StatsWriterKey) {
		logger.Warn("no stats writer plugin entry points registered, using default writers only",
			zap.String("namespace", StatsWriterKey),
		)
		return stats.DefaultWriters(opts, logger)
	}

	writers := []stats.StatsWriter{}
	for _, ep := range r.EntryPoints(StatsWriterKey) {
		logger.Debug("initializing stats writer plugin", zap.String("entry_point", ep.Name))

		contributed, err := invokeEntryPoint(ep, opts, logger)
		if err != nil {
			logger.Error("stats writer plugin failed, skipping it",
				zap.String("entry_point", ep.Name),
				zap.Error(err),
				zap.Stack("stack"),
			)
			continue
		}

		kept := 0
		for _, w := range contributed {
			if w == nil {
				logger.Error("stats writer plugin returned a nil writer",
					zap.String("entry_point", ep.Name),
				)
				continue
			}
			writers = append(writers, w)
			kept++
		}
		logger.Debug("stats writer plugin initialized",
			zap.String("entry_point", ep.Name),
			zap.Int("writers", kept),
		)
	}
	return writers, nil
}

// invokeEntryPoint loads and invokes one entry point, converting a panic in
// either step into an error.
func invokeEntryPoint(ep EntryPoint, opts *settings.RunOptions, logger *zap.Logger) (writers []stats.StatsWriter, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			writers = nil
			err = fmt.Errorf("plugin panicked: %v", rec)
		}
	}()

	factory, err := ep.Loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load factory: %w", err)
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	writers, err = factory(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("invoke factory: %w", err)
	}
	return writers, nil
}

func (r *Registry) log() *zap.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}
