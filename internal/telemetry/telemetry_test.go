package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

// saveAndRestoreGlobalProviders snapshots the current global OTel providers
// and restores them via t.Cleanup so tests don't leak state.
func saveAndRestoreGlobalProviders(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func TestInit_Disabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p, err := Init(context.Background(), DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Nil(t, p.tp, "TracerProvider should be nil when disabled")
	assert.Nil(t, p.mp, "MeterProvider should be nil when disabled")
}

func TestInit_Enabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	cfg := Config{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		ServiceName: "trainflow-test",
		Insecure:    true,
		SampleRatio: 0.5,
	}

	p, err := Init(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotNil(t, p.tp, "TracerProvider should be set when enabled")
	assert.NotNil(t, p.mp, "MeterProvider should be set when enabled")

	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tpIsSDK, "global TracerProvider should be *sdktrace.TracerProvider")
	assert.True(t, mpIsSDK, "global MeterProvider should be *sdkmetric.MeterProvider")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestProviders_Shutdown_Nil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProviders_Shutdown_Noop(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p, err := Init(context.Background(), Config{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProviders_Shutdown_Real(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	cfg := Config{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		ServiceName: "trainflow-shutdown-test",
		Insecure:    true,
		SampleRatio: 1.0,
	}

	p, err := Init(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p.tp)
	require.NotNil(t, p.mp)

	// The exporter may return connection-refused because no collector is
	// running; Shutdown only has to finish within the deadline without
	// panicking.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NotPanics(t, func() {
		_ = p.Shutdown(ctx)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "trainflow", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	t.Setenv(EnvServiceName, "")
	t.Setenv(EnvInsecure, "")
	t.Setenv(EnvSampleRatio, "")

	cfg := ConfigFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultConfig(), cfg)

	t.Setenv(EnvEndpoint, "collector:4317")
	t.Setenv(EnvServiceName, "trainer")
	t.Setenv(EnvInsecure, "false")
	t.Setenv(EnvSampleRatio, "0.25")

	cfg = ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, "trainer", cfg.ServiceName)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, 0.25, cfg.SampleRatio)

	// Malformed optional values keep the defaults.
	t.Setenv(EnvInsecure, "not-a-bool")
	t.Setenv(EnvSampleRatio, "not-a-float")
	cfg = ConfigFromEnv()
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestBuildVersion(t *testing.T) {
	// Test binaries report "(devel)", so buildVersion falls back to "dev".
	assert.Equal(t, "dev", buildVersion())
}
