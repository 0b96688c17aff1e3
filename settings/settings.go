package settings

import (
	"errors"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for run options handling.
var (
	ErrNilRunOptions     = errors.New("settings: run options must not be nil")
	ErrInvalidRunOptions = errors.New("settings: invalid run options")
)

// RunOptions is the root configuration for a training run.
type RunOptions struct {
	// Behaviors maps a behavior name to its trainer settings.
	Behaviors map[string]*BehaviorSettings `yaml:"behaviors"`
	// Checkpoint controls run identity, result paths, and resumption.
	Checkpoint CheckpointSettings `yaml:"checkpoint_settings"`
	// Engine configures the simulation engine.
	Engine EngineSettings `yaml:"engine_settings"`
	// Env configures environment processes.
	Env EnvSettings `yaml:"env_settings"`
	// Backend configures the training backend.
	Backend BackendSettings `yaml:"backend_settings"`
	// EnvironmentParameters holds named curriculum constants.
	EnvironmentParameters map[string]float64 `yaml:"environment_parameters"`
}

// BehaviorSettings configures the trainer for a single behavior.
type BehaviorSettings struct {
	TrainerType        string          `yaml:"trainer_type"`
	MaxSteps           int64           `yaml:"max_steps"`
	TimeHorizon        int             `yaml:"time_horizon"`
	SummaryFreq        int64           `yaml:"summary_freq"`
	KeepCheckpoints    int             `yaml:"keep_checkpoints"`
	CheckpointInterval int64           `yaml:"checkpoint_interval"`
	Threaded           bool            `yaml:"threaded"`
	Hyperparameters    Hyperparameters `yaml:"hyperparameters"`
}

// Hyperparameters holds the trainer hyperparameters for one behavior.
type Hyperparameters struct {
	LearningRate         float64 `yaml:"learning_rate"`
	LearningRateSchedule string  `yaml:"learning_rate_schedule"`
	BatchSize            int     `yaml:"batch_size"`
	BufferSize           int     `yaml:"buffer_size"`
	Beta                 float64 `yaml:"beta"`
	Epsilon              float64 `yaml:"epsilon"`
	Lambd                float64 `yaml:"lambd"`
	NumEpoch             int     `yaml:"num_epoch"`
}

// CheckpointSettings controls run identity and result storage.
type CheckpointSettings struct {
	RunID          string `yaml:"run_id"`
	ResultsDir     string `yaml:"results_dir"`
	InitializeFrom string `yaml:"initialize_from"`
	Resume         bool   `yaml:"resume"`
	Force          bool   `yaml:"force"`
	Inference      bool   `yaml:"inference"`
}

// WritePath returns the directory all run artifacts are written under.
func (c CheckpointSettings) WritePath() string {
	return filepath.Join(c.ResultsDir, c.RunID)
}

// EngineSettings configures the simulation engine.
type EngineSettings struct {
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	QualityLevel     int     `yaml:"quality_level"`
	TimeScale        float64 `yaml:"time_scale"`
	TargetFrameRate  int     `yaml:"target_frame_rate"`
	CaptureFrameRate int     `yaml:"capture_frame_rate"`
	NoGraphics       bool    `yaml:"no_graphics"`
}

// EnvSettings configures the environment processes driving training.
type EnvSettings struct {
	EnvPath  string `yaml:"env_path"`
	NumEnvs  int    `yaml:"num_envs"`
	NumAreas int    `yaml:"num_areas"`
	BasePort int    `yaml:"base_port"`
	Seed     int    `yaml:"seed"`
}

// BackendSettings configures the training backend.
type BackendSettings struct {
	Device     string `yaml:"device"`
	NumThreads int    `yaml:"num_threads"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultRunOptions returns run options with every section at its default.
func DefaultRunOptions() *RunOptions {
	return &RunOptions{
		Behaviors:             make(map[string]*BehaviorSettings),
		Checkpoint:            DefaultCheckpointSettings(),
		Engine:                DefaultEngineSettings(),
		Env:                   DefaultEnvSettings(),
		Backend:               DefaultBackendSettings(),
		EnvironmentParameters: make(map[string]float64),
	}
}

// DefaultBehaviorSettings returns the default trainer settings for a behavior.
func DefaultBehaviorSettings() *BehaviorSettings {
	return &BehaviorSettings{
		TrainerType:        "ppo",
		MaxSteps:           500_000,
		TimeHorizon:        64,
		SummaryFreq:        50_000,
		KeepCheckpoints:    5,
		CheckpointInterval: 500_000,
		Hyperparameters:    DefaultHyperparameters(),
	}
}

// DefaultHyperparameters returns the default trainer hyperparameters.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		LearningRate:         3e-4,
		LearningRateSchedule: "linear",
		BatchSize:            1024,
		BufferSize:           10240,
		Beta:                 5e-3,
		Epsilon:              0.2,
		Lambd:                0.95,
		NumEpoch:             3,
	}
}

// DefaultCheckpointSettings returns the default checkpoint settings.
func DefaultCheckpointSettings() CheckpointSettings {
	return CheckpointSettings{
		RunID:      "trainflow",
		ResultsDir: "results",
	}
}

// DefaultEngineSettings returns the default engine settings.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Width:            84,
		Height:           84,
		QualityLevel:     5,
		TimeScale:        20,
		TargetFrameRate:  -1,
		CaptureFrameRate: 60,
	}
}

// DefaultEnvSettings returns the default environment settings.
func DefaultEnvSettings() EnvSettings {
	return EnvSettings{
		NumEnvs:  1,
		NumAreas: 1,
		BasePort: 5005,
		Seed:     -1,
	}
}

// DefaultBackendSettings returns the default backend settings.
func DefaultBackendSettings() BackendSettings {
	return BackendSettings{
		Device:     "cpu",
		NumThreads: -1,
	}
}

// UnmarshalYAML decodes a behavior entry over the defaults, so a partial
// behavior block keeps default values for everything it does not mention.
func (b *BehaviorSettings) UnmarshalYAML(value *yaml.Node) error {
	type plain BehaviorSettings
	merged := plain(*DefaultBehaviorSettings())
	if err := value.Decode(&merged); err != nil {
		return err
	}
	*b = BehaviorSettings(merged)
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the run options for values no run can proceed with.
// All problems are reported at once via errors.Join.
func (o *RunOptions) Validate() error {
	if o == nil {
		return ErrNilRunOptions
	}

	var errs []error
	if o.Checkpoint.RunID == "" {
		errs = append(errs, fmt.Errorf("%w: checkpoint_settings.run_id must not be empty", ErrInvalidRunOptions))
	}
	if o.Env.NumEnvs <= 0 {
		errs = append(errs, fmt.Errorf("%w: env_settings.num_envs must be positive, got %d", ErrInvalidRunOptions, o.Env.NumEnvs))
	}
	for name, behavior := range o.Behaviors {
		if behavior == nil {
			errs = append(errs, fmt.Errorf("%w: behavior %q has no settings", ErrInvalidRunOptions, name))
			continue
		}
		if behavior.SummaryFreq <= 0 {
			errs = append(errs, fmt.Errorf("%w: behavior %q summary_freq must be positive, got %d", ErrInvalidRunOptions, name, behavior.SummaryFreq))
		}
		if behavior.MaxSteps <= 0 {
			errs = append(errs, fmt.Errorf("%w: behavior %q max_steps must be positive, got %d", ErrInvalidRunOptions, name, behavior.MaxSteps))
		}
	}
	return errors.Join(errs...)
}
