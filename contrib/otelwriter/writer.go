// Package otelwriter records training stats through the OpenTelemetry
// metric API, so runs show up in whatever backend the host's meter provider
// exports to.
//
// Importing the package activates it: init registers the "otel" entry point
// in the default plugin registry (and the matching manifest factory), the
// same way installing a plugin package used to.
package otelwriter

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/stats"
)

// meterName identifies this instrumentation scope.
const meterName = "trainflow/contrib/otelwriter"

const instrumentPrefix = "trainflow.stats."

// Writer mirrors aggregated stats into OTel gauges, one instrument per stat
// name with category and stat attributes.
type Writer struct {
	meter  metric.Meter
	logger *zap.Logger

	mu     sync.Mutex
	gauges map[string]metric.Float64Gauge
}

var _ stats.StatsWriter = (*Writer)(nil)

// NewWriter builds a writer on mp, or on the globally registered provider
// when mp is nil.
func NewWriter(mp metric.MeterProvider, logger *zap.Logger) *Writer {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		meter:  mp.Meter(meterName),
		logger: logger.With(zap.String("component", "stats_otel")),
		gauges: make(map[string]metric.Float64Gauge),
	}
}

// WriteStats records every non-empty stat on its gauge.
func (w *Writer) WriteStats(category string, values map[string]stats.StatsSummary, step int64) {
	ctx := context.Background()
	for key, summary := range values {
		if summary.Num() == 0 {
			continue
		}

		gauge, err := w.gauge(key)
		if err != nil {
			w.logger.Warn("create gauge",
				zap.String("stat", key),
				zap.Error(err),
			)
			continue
		}
		gauge.Record(ctx, summary.AggregatedValue(), metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("stat", key),
		))
	}
}

func (w *Writer) gauge(key string) (metric.Float64Gauge, error) {
	name := instrumentPrefix + sanitizeName(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	if g, ok := w.gauges[name]; ok {
		return g, nil
	}
	g, err := w.meter.Float64Gauge(name,
		metric.WithDescription("Aggregated training stat at the last reported step."),
	)
	if err != nil {
		return nil, err
	}
	w.gauges[name] = g
	return g, nil
}

// sanitizeName maps a stat key onto the instrument-name alphabet
// ([A-Za-z0-9_.-/], no spaces), lowercased for metric-name conventions.
func sanitizeName(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '_', r == '.', r == '-', r == '/':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func factory(_ *settings.RunOptions, logger *zap.Logger) ([]stats.StatsWriter, error) {
	return []stats.StatsWriter{NewWriter(nil, logger)}, nil
}

func init() {
	plugins.MustRegister(plugins.StatsWriterKey, plugins.EntryPoint{
		Name:   "otel",
		Loader: plugins.StaticFactory(factory),
	})
	plugins.MustRegisterFactory("otel", factory)
}
