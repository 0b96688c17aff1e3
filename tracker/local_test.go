package tracker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newLocalClient(t *testing.T) *LocalClient {
	t.Helper()

	client, err := OpenLocal(filepath.Join(t.TempDir(), "runs.db"), "testproj", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLocalClient_RunLifecycle(t *testing.T) {
	client := newLocalClient(t)
	ctx := context.Background()

	run, err := client.StartRun(ctx, RunConfig{
		Name:   "walker-01",
		Config: map[string]any{"learning_rate": 0.001, "trainer_type": "ppo"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID())

	info, err := client.GetRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Equal(t, "testproj", info.Project)
	assert.Equal(t, "walker-01", info.Name)
	assert.False(t, info.StartTime.IsZero())
	assert.True(t, info.EndTime.IsZero())

	require.NoError(t, run.LogMetrics(ctx, 100, map[string]float64{
		"Environment/Cumulative Reward": 1.5,
		"Policy/Learning Rate":          0.001,
	}))
	require.NoError(t, run.LogMetrics(ctx, 200, map[string]float64{
		"Environment/Cumulative Reward": 2.5,
	}))

	points, err := client.RunMetrics(ctx, run.ID(), "Environment/Cumulative Reward")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(100), points[0].Step)
	assert.InDelta(t, 1.5, points[0].Value, 1e-9)
	assert.Equal(t, int64(200), points[1].Step)
	assert.InDelta(t, 2.5, points[1].Value, 1e-9)

	require.NoError(t, run.Finish(ctx, StatusFinished))

	info, err = client.GetRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, info.Status)
	assert.False(t, info.EndTime.IsZero())
}

func TestLocalClient_ListRuns(t *testing.T) {
	client := newLocalClient(t)
	ctx := context.Background()

	first, err := client.StartRun(ctx, RunConfig{Name: "first"})
	require.NoError(t, err)
	second, err := client.StartRun(ctx, RunConfig{Name: "second"})
	require.NoError(t, err)
	other, err := client.StartRun(ctx, RunConfig{Project: "elsewhere", Name: "third"})
	require.NoError(t, err)

	runs, err := client.ListRuns(ctx, "testproj")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ids := []string{runs[0].RunID, runs[1].RunID}
	assert.ElementsMatch(t, []string{first.ID(), second.ID()}, ids)

	all, err := client.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	elsewhere, err := client.ListRuns(ctx, "elsewhere")
	require.NoError(t, err)
	require.Len(t, elsewhere, 1)
	assert.Equal(t, other.ID(), elsewhere[0].RunID)
}

func TestLocalClient_GetRunNotFound(t *testing.T) {
	client := newLocalClient(t)

	_, err := client.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLocalRun_FinishUnknownRun(t *testing.T) {
	client := newLocalClient(t)

	run := &localRun{client: client, id: "vanished"}
	err := run.Finish(context.Background(), StatusFailed)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLocalClient_MetricsKeyFilter(t *testing.T) {
	client := newLocalClient(t)
	ctx := context.Background()

	run, err := client.StartRun(ctx, RunConfig{Name: "filtered"})
	require.NoError(t, err)
	require.NoError(t, run.LogMetrics(ctx, 1, map[string]float64{
		"Environment/Cumulative Reward": 1.0,
		"Losses/Policy Loss":            0.5,
	}))

	reward, err := client.RunMetrics(ctx, run.ID(), "Environment/Cumulative Reward")
	require.NoError(t, err)
	require.Len(t, reward, 1)
	assert.Equal(t, "Environment/Cumulative Reward", reward[0].Key)

	all, err := client.RunMetrics(ctx, run.ID(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLocalRun_EmptyMetricsSkipped(t *testing.T) {
	client := newLocalClient(t)
	ctx := context.Background()

	run, err := client.StartRun(ctx, RunConfig{Name: "quiet"})
	require.NoError(t, err)
	require.NoError(t, run.LogMetrics(ctx, 1, nil))

	points, err := client.RunMetrics(ctx, run.ID(), "")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestOpenLocal_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	client, err := OpenLocal(path, "testproj", logger)
	require.NoError(t, err)
	run, err := client.StartRun(ctx, RunConfig{Name: "persistent"})
	require.NoError(t, err)
	require.NoError(t, run.Finish(ctx, StatusFinished))
	require.NoError(t, client.Close())

	reopened, err := OpenLocal(path, "testproj", logger)
	require.NoError(t, err)
	defer reopened.Close()

	info, err := reopened.GetRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, info.Status)
}
