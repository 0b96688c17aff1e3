package settings

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genRunOptions(rt *rapid.T) *RunOptions {
	opts := DefaultRunOptions()

	numBehaviors := rapid.IntRange(0, 4).Draw(rt, "numBehaviors")
	for i := 0; i < numBehaviors; i++ {
		name := rapid.StringMatching(`[A-Z][a-z]{2,8}`).Draw(rt, fmt.Sprintf("behavior_%d", i))
		b := DefaultBehaviorSettings()
		b.MaxSteps = int64(rapid.IntRange(1, 10_000_000).Draw(rt, fmt.Sprintf("maxSteps_%d", i)))
		b.Hyperparameters.LearningRate = rapid.Float64Range(1e-6, 1).Draw(rt, fmt.Sprintf("lr_%d", i))
		b.Hyperparameters.BatchSize = rapid.IntRange(1, 8192).Draw(rt, fmt.Sprintf("batch_%d", i))
		opts.Behaviors[name] = b
	}

	opts.Checkpoint.RunID = rapid.StringMatching(`[a-z0-9-]{1,16}`).Draw(rt, "runID")
	opts.Checkpoint.Resume = rapid.Bool().Draw(rt, "resume")
	opts.Engine.TimeScale = rapid.Float64Range(0.01, 100).Draw(rt, "timeScale")
	opts.Env.NumEnvs = rapid.IntRange(1, 64).Draw(rt, "numEnvs")
	opts.Env.Seed = rapid.IntRange(-1, 1<<30).Draw(rt, "seed")
	opts.Backend.Device = rapid.SampledFrom([]string{"cpu", "cuda", "mps"}).Draw(rt, "device")

	return opts
}

// Property: flattening the same run options twice yields identical maps.
func TestProperty_Flatten_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		opts := genRunOptions(rt)

		first, err := Flatten(opts)
		require.NoError(t, err)
		second, err := Flatten(opts)
		require.NoError(t, err)

		require.Equal(t, first, second)
	})
}

// Property: every flattened value survives the JSON encoder.
func TestProperty_Flatten_SerializerSafe(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		opts := genRunOptions(rt)

		flat, err := Flatten(opts)
		require.NoError(t, err)

		for key, value := range flat {
			_, err := json.Marshal(value)
			require.NoError(t, err, "value for %s must marshal", key)
		}
		_, err = json.Marshal(flat)
		require.NoError(t, err)
	})
}

// Property: section keys always carry their section prefix and every
// section key is present regardless of the drawn values.
func TestProperty_Flatten_SectionKeysComplete(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		opts := genRunOptions(rt)

		flat, err := Flatten(opts)
		require.NoError(t, err)

		for key := range opts.Engine.Export() {
			require.Contains(t, flat, "engine_settings_"+key)
		}
		for key := range opts.Env.Export() {
			require.Contains(t, flat, "env_settings_"+key)
		}
		for key := range opts.Backend.Export() {
			require.Contains(t, flat, "backend_settings_"+key)
		}
	})
}
