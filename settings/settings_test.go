package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRunOptions(t *testing.T) {
	opts := DefaultRunOptions()
	require.NotNil(t, opts)

	assert.NotNil(t, opts.Behaviors)
	assert.Empty(t, opts.Behaviors)
	assert.Equal(t, "trainflow", opts.Checkpoint.RunID)
	assert.Equal(t, "results", opts.Checkpoint.ResultsDir)
	assert.False(t, opts.Checkpoint.Resume)
	assert.Equal(t, 1, opts.Env.NumEnvs)
	assert.Equal(t, 5005, opts.Env.BasePort)
	assert.Equal(t, float64(20), opts.Engine.TimeScale)
	assert.Equal(t, "cpu", opts.Backend.Device)
}

func TestDefaultBehaviorSettings(t *testing.T) {
	b := DefaultBehaviorSettings()
	require.NotNil(t, b)

	assert.Equal(t, "ppo", b.TrainerType)
	assert.Equal(t, int64(500_000), b.MaxSteps)
	assert.Equal(t, int64(50_000), b.SummaryFreq)
	assert.Equal(t, 3e-4, b.Hyperparameters.LearningRate)
	assert.Equal(t, 1024, b.Hyperparameters.BatchSize)
	assert.Equal(t, "linear", b.Hyperparameters.LearningRateSchedule)
}

func TestCheckpointSettings_WritePath(t *testing.T) {
	tests := []struct {
		name       string
		resultsDir string
		runID      string
		want       string
	}{
		{name: "default layout", resultsDir: "results", runID: "walker-01", want: filepath.Join("results", "walker-01")},
		{name: "absolute results dir", resultsDir: "/var/lib/trainflow", runID: "r1", want: filepath.Join("/var/lib/trainflow", "r1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CheckpointSettings{ResultsDir: tt.resultsDir, RunID: tt.runID}
			assert.Equal(t, tt.want, c.WritePath())
		})
	}
}

func TestRunOptions_Validate(t *testing.T) {
	valid := func() *RunOptions {
		opts := DefaultRunOptions()
		opts.Behaviors["Walker"] = DefaultBehaviorSettings()
		return opts
	}

	tests := []struct {
		name    string
		mutate  func(*RunOptions)
		wantErr bool
	}{
		{name: "valid", mutate: func(*RunOptions) {}},
		{name: "empty run id", mutate: func(o *RunOptions) { o.Checkpoint.RunID = "" }, wantErr: true},
		{name: "zero num envs", mutate: func(o *RunOptions) { o.Env.NumEnvs = 0 }, wantErr: true},
		{name: "nil behavior", mutate: func(o *RunOptions) { o.Behaviors["Broken"] = nil }, wantErr: true},
		{name: "non-positive summary freq", mutate: func(o *RunOptions) { o.Behaviors["Walker"].SummaryFreq = 0 }, wantErr: true},
		{name: "non-positive max steps", mutate: func(o *RunOptions) { o.Behaviors["Walker"].MaxSteps = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid()
			tt.mutate(opts)
			err := opts.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRunOptions)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunOptions_Validate_NilReceiver(t *testing.T) {
	var opts *RunOptions
	assert.ErrorIs(t, opts.Validate(), ErrNilRunOptions)
}

func TestRunOptions_Validate_CollectsAllProblems(t *testing.T) {
	opts := DefaultRunOptions()
	opts.Checkpoint.RunID = ""
	opts.Env.NumEnvs = 0

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run_id")
	assert.Contains(t, err.Error(), "num_envs")
}
