package settings

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Exporter exposes the key/value pairs a settings type contributes to a
// flattened run configuration. Keys use the snake_case yaml names. Each type
// lists its fields explicitly; nothing is discovered through reflection.
type Exporter interface {
	Export() map[string]any
}

// Compile-time checks that every flattened section stays an Exporter.
var (
	_ Exporter = (*BehaviorSettings)(nil)
	_ Exporter = Hyperparameters{}
	_ Exporter = EngineSettings{}
	_ Exporter = EnvSettings{}
	_ Exporter = BackendSettings{}
)

// Export returns the behavior's own settings, without the nested
// hyperparameters (Flatten merges those separately).
func (b *BehaviorSettings) Export() map[string]any {
	return map[string]any{
		"trainer_type":        b.TrainerType,
		"max_steps":           b.MaxSteps,
		"time_horizon":        b.TimeHorizon,
		"summary_freq":        b.SummaryFreq,
		"keep_checkpoints":    b.KeepCheckpoints,
		"checkpoint_interval": b.CheckpointInterval,
		"threaded":            b.Threaded,
	}
}

// Export returns the hyperparameter key/value pairs.
func (h Hyperparameters) Export() map[string]any {
	return map[string]any{
		"learning_rate":          h.LearningRate,
		"learning_rate_schedule": h.LearningRateSchedule,
		"batch_size":             h.BatchSize,
		"buffer_size":            h.BufferSize,
		"beta":                   h.Beta,
		"epsilon":                h.Epsilon,
		"lambd":                  h.Lambd,
		"num_epoch":              h.NumEpoch,
	}
}

// Export returns the engine settings key/value pairs.
func (e EngineSettings) Export() map[string]any {
	return map[string]any{
		"width":              e.Width,
		"height":             e.Height,
		"quality_level":      e.QualityLevel,
		"time_scale":         e.TimeScale,
		"target_frame_rate":  e.TargetFrameRate,
		"capture_frame_rate": e.CaptureFrameRate,
		"no_graphics":        e.NoGraphics,
	}
}

// Export returns the environment settings key/value pairs.
func (e EnvSettings) Export() map[string]any {
	return map[string]any{
		"env_path":  e.EnvPath,
		"num_envs":  e.NumEnvs,
		"num_areas": e.NumAreas,
		"base_port": e.BasePort,
		"seed":      e.Seed,
	}
}

// Export returns the backend settings key/value pairs.
func (b BackendSettings) Export() map[string]any {
	return map[string]any{
		"device":      b.Device,
		"num_threads": b.NumThreads,
	}
}

// flattenedSections lists the global settings sections Flatten appends after
// the behaviors, in order, with the prefix their keys carry.
var flattenedSections = []string{"engine_settings", "env_settings", "backend_settings"}

// Flatten extracts a flat key/value view of the run options for experiment
// trackers.
//
// Behaviors are visited in sorted name order; for each one the
// hyperparameters are merged first, then the behavior's own settings. Keys
// carry no behavior prefix, so when two behaviors disagree on a value the
// later (lexicographically greater) behavior wins. The three global sections
// follow, each key prefixed with the section name and an underscore
// (engine_settings_, env_settings_, backend_settings_). The result passes
// through Sanitize, so every value is JSON-safe.
func Flatten(opts *RunOptions) (map[string]any, error) {
	if opts == nil {
		return nil, ErrNilRunOptions
	}

	extracted := make(map[string]any)

	names := make([]string, 0, len(opts.Behaviors))
	for name := range opts.Behaviors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		behavior := opts.Behaviors[name]
		if behavior == nil {
			continue
		}
		for key, value := range behavior.Hyperparameters.Export() {
			extracted[key] = value
		}
		for key, value := range behavior.Export() {
			extracted[key] = value
		}
	}

	for _, section := range flattenedSections {
		var exporter Exporter
		switch section {
		case "engine_settings":
			exporter = opts.Engine
		case "env_settings":
			exporter = opts.Env
		case "backend_settings":
			exporter = opts.Backend
		}
		for key, value := range exporter.Export() {
			extracted[section+"_"+key] = value
		}
	}

	return Sanitize(extracted), nil
}

// Sanitize returns a copy of values where everything the JSON encoder
// rejects (NaN or infinite floats, channels, functions, cycles) is replaced
// by its fmt %v string form. The returned map always marshals cleanly.
func Sanitize(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		if jsonSafe(value) {
			out[key] = value
		} else {
			out[key] = fmt.Sprintf("%v", value)
		}
	}
	return out
}

func jsonSafe(v any) bool {
	_, err := json.Marshal(v)
	return err == nil
}
