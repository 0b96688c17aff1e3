// Package trainflow provides a top-level convenience entry point for wiring
// training stats reporting with minimal boilerplate.
//
// Usage:
//
//	import "github.com/rlkit/trainflow"
//
//	opts, err := trainflow.LoadRunOptions("config.yaml")
//	board, err := trainflow.NewBoard(opts, logger)
//	env := board.Reporter("Environment")
//	env.Add("Cumulative Reward", 1.5)
//	env.WriteStats(1000)
//
// This is a thin wrapper around [plugins.Default] and [stats.NewBoard]; use
// the underlying packages directly when you need a private registry or a
// hand-picked writer set.
package trainflow

import (
	"go.uber.org/zap"

	"github.com/rlkit/trainflow/plugins"
	_ "github.com/rlkit/trainflow/plugins/builtin"
	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/stats"
)

// Version is the library version, also reported by the trainflow CLI.
const Version = "0.3.0"

// LoadRunOptions reads run options from a YAML file.
func LoadRunOptions(path string) (*settings.RunOptions, error) {
	return settings.Load(path)
}

// ResolveStatsWriters resolves stats writers from the default plugin
// registry. With no third-party entry points registered this yields the
// built-in writer set.
func ResolveStatsWriters(opts *settings.RunOptions, logger *zap.Logger) ([]stats.StatsWriter, error) {
	if opts == nil {
		return nil, settings.ErrNilRunOptions
	}
	reg := plugins.Default()
	reg.SetLogger(logger)
	return reg.ResolveStatsWriters(opts)
}

// NewBoard resolves stats writers and attaches them to a fresh board.
func NewBoard(opts *settings.RunOptions, logger *zap.Logger) (*stats.Board, error) {
	writers, err := ResolveStatsWriters(opts, logger)
	if err != nil {
		return nil, err
	}
	return stats.NewBoard(logger, writers...), nil
}
