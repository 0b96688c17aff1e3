package builtin

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/tracker"
)

func TestInit_RegistersDefaultEntryPoint(t *testing.T) {
	require.True(t, plugins.Default().HasNamespace(plugins.StatsWriterKey))

	var ep *plugins.EntryPoint
	for _, candidate := range plugins.Default().EntryPoints(plugins.StatsWriterKey) {
		if candidate.Name == EntryPointName {
			ep = &candidate
			break
		}
	}
	require.NotNil(t, ep, "the %q entry point must be registered", EntryPointName)

	factory, err := ep.Loader.Load()
	require.NoError(t, err)
	require.NotNil(t, factory)

	t.Setenv(tracker.EnvTrackerURL, "")
	opts := settings.DefaultRunOptions()
	opts.Checkpoint.ResultsDir = t.TempDir()

	writers, err := factory(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, writers, 4)

	for _, w := range writers {
		if closer, ok := w.(io.Closer); ok {
			require.NoError(t, closer.Close())
		}
	}
}
