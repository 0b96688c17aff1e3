// Package stats buffers per-behavior training statistics and fans them out
// to pluggable writers.
//
// Trainers report through a Reporter bound to their behavior name; at each
// summary boundary WriteStats snapshots the buffered samples into
// StatsSummary values and hands them to every StatsWriter on the Board.
// Built-in writers cover tensorboard-style event files, Prometheus gauges,
// console progress lines, and experiment trackers; external writers come in
// through the plugins package.
//
// Usage:
//
//	board := stats.NewBoard(logger, writers...)
//	reporter := board.Reporter("Walker")
//	reporter.Add("Environment/Cumulative Reward", 1.5)
//	reporter.WriteStats(step)
package stats
