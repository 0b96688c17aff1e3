package stats

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Stat names the console writer treats specially.
const (
	cumulativeRewardKey = "Environment/Cumulative Reward"
	isTrainingKey       = "Is Training"
	selfPlayELOKey      = "Self-play/ELO"
)

// ConsoleWriter prints human-readable training progress through the
// structured logger.
type ConsoleWriter struct {
	logger    *zap.Logger
	startTime time.Time
}

var (
	_ StatsWriter    = (*ConsoleWriter)(nil)
	_ PropertyWriter = (*ConsoleWriter)(nil)
)

// NewConsoleWriter builds a writer reporting elapsed time relative to now.
func NewConsoleWriter(logger *zap.Logger) *ConsoleWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleWriter{
		logger:    logger.With(zap.String("component", "stats_console")),
		startTime: time.Now(),
	}
}

// WriteStats logs one progress line. Categories reporting a cumulative
// reward get the reward/ELO form; everything else gets a plain listing of
// stat means.
func (c *ConsoleWriter) WriteStats(category string, values map[string]StatsSummary, step int64) {
	elapsed := time.Since(c.startTime).Seconds()

	if reward, ok := values[cumulativeRewardKey]; ok {
		isTraining := false
		if flag, ok := values[isTrainingKey]; ok && flag.AggregatedValue() > 0 {
			isTraining = true
		}

		fields := []zap.Field{
			zap.String("category", category),
			zap.Int64("step", step),
			zap.Float64("time_elapsed", elapsed),
			zap.Float64("mean_reward", reward.Mean()),
			zap.Float64("std_reward", reward.StdDev()),
			zap.Bool("is_training", isTraining),
		}
		if elo, ok := values[selfPlayELOKey]; ok {
			fields = append(fields, zap.Float64("elo", elo.AggregatedValue()))
		}
		c.logger.Info("training progress", fields...)
		return
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := []zap.Field{
		zap.String("category", category),
		zap.Int64("step", step),
	}
	for _, key := range keys {
		fields = append(fields, zap.Float64(key, values[key].Mean()))
	}
	c.logger.Info("stats", fields...)
}

// AddProperty logs the run configuration when hyperparameters arrive.
func (c *ConsoleWriter) AddProperty(category string, property PropertyType, value any) {
	if property != PropertyHyperparameters {
		return
	}
	c.logger.Info("hyperparameters",
		zap.String("category", category),
		zap.Any("config", value),
	)
}
