package otelwriter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/stats"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ScopeMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name == meterName {
			return sm
		}
	}
	t.Fatalf("no metrics recorded under scope %s", meterName)
	return metricdata.ScopeMetrics{}
}

func findMetric(t *testing.T, sm metricdata.ScopeMetrics, name string) metricdata.Gauge[float64] {
	t.Helper()
	for _, m := range sm.Metrics {
		if m.Name == name {
			gauge, ok := m.Data.(metricdata.Gauge[float64])
			require.True(t, ok, "metric %s is not a float64 gauge", name)
			return gauge
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return metricdata.Gauge[float64]{}
}

func TestWriter_RecordsGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	w := NewWriter(mp, zaptest.NewLogger(t))
	w.WriteStats("Environment", map[string]stats.StatsSummary{
		"Cumulative Reward": {FullDist: []float64{1, 3}},
		"Untouched":         {},
	}, 100)

	sm := collect(t, reader)
	gauge := findMetric(t, sm, "trainflow.stats.cumulative_reward")
	require.Len(t, gauge.DataPoints, 1)

	dp := gauge.DataPoints[0]
	assert.InDelta(t, 2.0, dp.Value, 1e-9)

	category, ok := dp.Attributes.Value(attribute.Key("category"))
	require.True(t, ok)
	assert.Equal(t, "Environment", category.AsString())
	stat, ok := dp.Attributes.Value(attribute.Key("stat"))
	require.True(t, ok)
	assert.Equal(t, "Cumulative Reward", stat.AsString())

	for _, m := range sm.Metrics {
		assert.NotEqual(t, "trainflow.stats.untouched", m.Name, "empty summaries record nothing")
	}
}

func TestWriter_SameCategorySeparateAttributes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	w := NewWriter(mp, zaptest.NewLogger(t))
	w.WriteStats("Environment", map[string]stats.StatsSummary{
		"Reward": {FullDist: []float64{1}},
	}, 1)
	w.WriteStats("Policy", map[string]stats.StatsSummary{
		"Reward": {FullDist: []float64{9}},
	}, 1)

	gauge := findMetric(t, collect(t, reader), "trainflow.stats.reward")
	assert.Len(t, gauge.DataPoints, 2, "one point per category attribute set")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cumulative Reward", "cumulative_reward"},
		{"Self-play/ELO", "self-play/elo"},
		{"Losses/Value Loss", "losses/value_loss"},
		{"learning.rate", "learning.rate"},
		{"weird☃key", "weird_key"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "sanitizeName(%q)", tt.in)
	}
}

func TestInit_RegistersEntryPointAndFactory(t *testing.T) {
	var found bool
	for _, ep := range plugins.Default().EntryPoints(plugins.StatsWriterKey) {
		if ep.Name == "otel" {
			found = true
			fn, err := ep.Loader.Load()
			require.NoError(t, err)
			writers, err := fn(nil, zaptest.NewLogger(t))
			require.NoError(t, err)
			require.Len(t, writers, 1)
			assert.IsType(t, (*Writer)(nil), writers[0])
		}
	}
	assert.True(t, found, `the "otel" entry point must self-register`)

	reg := plugins.NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, reg.ApplyManifest(&plugins.Manifest{
		Namespace:   plugins.StatsWriterKey,
		EntryPoints: []plugins.ManifestEntry{{Name: "otel", Factory: "otel"}},
	}))
	_, err := reg.EntryPoints(plugins.StatsWriterKey)[0].Loader.Load()
	assert.NoError(t, err, `the "otel" manifest factory must be linked`)
}
