// Package settings defines the run options that configure a training run:
// per-behavior trainer settings with hyperparameters, checkpointing, and the
// engine/environment/backend sections shared by every behavior.
//
// Run options load from YAML over a full set of defaults, so a minimal file
// only states what it changes. Flatten converts a RunOptions value into the
// flat, JSON-safe key/value map handed to experiment trackers.
//
// Usage:
//
//	opts, err := settings.Load("run.yaml")
//	if err != nil { ... }
//	config, err := settings.Flatten(opts)
package settings
