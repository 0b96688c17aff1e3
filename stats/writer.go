package stats

// StatsWriter consumes one category's aggregated stats at a training step.
// Reporters for different behaviors flush from their own goroutines, so
// implementations must be safe for concurrent use. Writers holding
// resources additionally implement io.Closer; the Board closes them.
type StatsWriter interface {
	WriteStats(category string, values map[string]StatsSummary, step int64)
}

// PropertyWriter is implemented by writers that care about run-level
// properties (hyperparameters, self-play metadata). Properties are
// forwarded immediately rather than buffered.
type PropertyWriter interface {
	AddProperty(category string, property PropertyType, value any)
}
