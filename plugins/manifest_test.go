package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rlkit/trainflow/settings"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stats.plugin.yaml", `
namespace: trainflow.stats_writer
entry_points:
  - name: redis
    factory: redis
  - name: dashboard
    factory: websocket
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, StatsWriterKey, m.Namespace)
	require.Len(t, m.EntryPoints, 2)
	assert.Equal(t, ManifestEntry{Name: "redis", Factory: "redis"}, m.EntryPoints[0])
	assert.Equal(t, ManifestEntry{Name: "dashboard", Factory: "websocket"}, m.EntryPoints[1])
}

func TestLoadManifest_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stats.plugin.json",
		`{"namespace": "trainflow.stats_writer", "entry_points": [{"name": "redis", "factory": "redis"}]}`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, StatsWriterKey, m.Namespace)
	require.Len(t, m.EntryPoints, 1)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadManifest(filepath.Join(dir, "absent.plugin.yaml"))
		assert.ErrorContains(t, err, "read manifest")
	})

	t.Run("garbage yaml", func(t *testing.T) {
		path := writeFile(t, dir, "bad.plugin.yaml", "entry_points: [\n")
		_, err := LoadManifest(path)
		assert.ErrorContains(t, err, "parse manifest")
	})

	t.Run("missing namespace", func(t *testing.T) {
		path := writeFile(t, dir, "anon.plugin.yaml", "entry_points:\n  - name: x\n    factory: y\n")
		_, err := LoadManifest(path)
		assert.ErrorContains(t, err, "namespace must not be empty")
	})
}

func TestRegisterFactory_Validation(t *testing.T) {
	assert.ErrorContains(t, RegisterFactory("", stubFactory()), "must not be empty")
	assert.ErrorIs(t, RegisterFactory(nextTestName("factory"), nil), ErrNilFactory)

	name := nextTestName("factory")
	require.NoError(t, RegisterFactory(name, stubFactory()))
	assert.ErrorIs(t, RegisterFactory(name, stubFactory()), ErrDuplicateFactory)

	assert.Panics(t, func() { MustRegisterFactory(name, stubFactory()) })
}

func TestApplyManifest(t *testing.T) {
	factory := nextTestName("factory")
	MustRegisterFactory(factory, stubFactory("m1"))

	reg := NewRegistry(zaptest.NewLogger(t))
	namespace := nextTestName("test.namespace")

	err := reg.ApplyManifest(&Manifest{
		Namespace: namespace,
		EntryPoints: []ManifestEntry{
			{Name: "good", Factory: factory},
			{Name: "anonymous", Factory: ""},
		},
	})
	assert.ErrorContains(t, err, "factory name must not be empty")

	eps := reg.EntryPoints(namespace)
	require.Len(t, eps, 1, "the valid entry registers despite its sibling failing")

	fn, err := eps[0].Loader.Load()
	require.NoError(t, err)
	writers, err := fn(settings.DefaultRunOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, writerIDs(t, writers))

	assert.ErrorContains(t, reg.ApplyManifest(nil), "must not be nil")
}

func TestApplyManifest_UnlinkedFactoryFailsAtLoad(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	namespace := nextTestName("test.namespace")

	require.NoError(t, reg.ApplyManifest(&Manifest{
		Namespace:   namespace,
		EntryPoints: []ManifestEntry{{Name: "ghost", Factory: nextTestName("unlinked")}},
	}))

	eps := reg.EntryPoints(namespace)
	require.Len(t, eps, 1, "registration succeeds; only loading fails")

	_, err := eps[0].Loader.Load()
	assert.ErrorIs(t, err, ErrFactoryNotLinked)
}

func TestDiscoverManifests(t *testing.T) {
	factory := nextTestName("factory")
	MustRegisterFactory(factory, stubFactory("d1"))
	namespace := nextTestName("test.namespace")

	dir := t.TempDir()
	writeFile(t, dir, "good.plugin.yaml",
		"namespace: "+namespace+"\nentry_points:\n  - name: redis\n    factory: "+factory+"\n")
	writeFile(t, dir, "broken.plugin.yaml", "entry_points: [\n")
	writeFile(t, dir, "README.txt", "not a manifest")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.plugin.yaml"), 0o755)) // directories are skipped

	reg := NewRegistry(zaptest.NewLogger(t))
	err := reg.DiscoverManifests(context.Background(), []string{
		dir,
		filepath.Join(dir, "does-not-exist"),
	})
	require.NoError(t, err, "broken manifests are logged and skipped")

	eps := reg.EntryPoints(namespace)
	require.Len(t, eps, 1)
	assert.Equal(t, "redis", eps[0].Name)

	// A second pass re-registers the same entry and surfaces the duplicate.
	err = reg.DiscoverManifests(context.Background(), []string{dir})
	assert.ErrorIs(t, err, ErrDuplicateEntryPoint)
}

func TestDiscoverManifests_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.plugin.yaml", "namespace: ns\nentry_points: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := NewRegistry(zaptest.NewLogger(t))
	assert.ErrorIs(t, reg.DiscoverManifests(ctx, []string{dir}), context.Canceled)
}
