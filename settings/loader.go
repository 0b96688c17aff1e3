package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads run options from a YAML file. The file is decoded over
// DefaultRunOptions, so absent keys keep their defaults. A missing file is
// an error: a training run must not silently fall back to defaults when the
// operator mistyped a path.
func Load(path string) (*RunOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run options: %w", err)
	}
	opts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse run options %s: %w", path, err)
	}
	return opts, nil
}

// Parse decodes run options from YAML bytes over the defaults.
func Parse(data []byte) (*RunOptions, error) {
	opts := DefaultRunOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("unmarshal run options: %w", err)
	}
	if opts.Behaviors == nil {
		opts.Behaviors = make(map[string]*BehaviorSettings)
	}
	if opts.EnvironmentParameters == nil {
		opts.EnvironmentParameters = make(map[string]float64)
	}
	return opts, nil
}

// MustLoad loads run options or panics. Intended for examples and tooling.
func MustLoad(path string) *RunOptions {
	opts, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("load run options: %v", err))
	}
	return opts
}
