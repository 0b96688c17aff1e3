package stats

import (
	"errors"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// GaugeWriter mirrors the latest stats into Prometheus gauges so a scrape
// endpoint can watch training without tailing event files.
type GaugeWriter struct {
	lastValue    *prometheus.GaugeVec
	minValue     *prometheus.GaugeVec
	maxValue     *prometheus.GaugeVec
	samplesTotal *prometheus.CounterVec
	logger       *zap.Logger

	mu     sync.Mutex
	ranges map[string]minMax
}

type minMax struct {
	min float64
	max float64
}

var _ StatsWriter = (*GaugeWriter)(nil)

// NewGaugeWriter registers the trainflow_stats_* metric family with reg
// (the default registerer when nil). Building a second writer against the
// same registerer shares the existing collectors instead of panicking.
func NewGaugeWriter(reg prometheus.Registerer, logger *zap.Logger) *GaugeWriter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	labels := []string{"category", "stat"}
	return &GaugeWriter{
		lastValue: registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trainflow",
			Subsystem: "stats",
			Name:      "last_value",
			Help:      "Aggregated value of the stat at the last reported step.",
		}, labels)),
		minValue: registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trainflow",
			Subsystem: "stats",
			Name:      "min_value",
			Help:      "Smallest aggregated value seen for the stat.",
		}, labels)),
		maxValue: registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trainflow",
			Subsystem: "stats",
			Name:      "max_value",
			Help:      "Largest aggregated value seen for the stat.",
		}, labels)),
		samplesTotal: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trainflow",
			Subsystem: "stats",
			Name:      "samples_total",
			Help:      "Total number of samples reported for the stat.",
		}, labels)),
		logger: logger.With(zap.String("component", "stats_gauge")),
		ranges: make(map[string]minMax),
	}
}

// registerOrReuse registers c, sharing the already-registered collector on
// re-registration. Genuinely conflicting collectors still panic, matching
// promauto's contract.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// WriteStats updates the gauges for every non-empty stat in the category.
func (g *GaugeWriter) WriteStats(category string, values map[string]StatsSummary, step int64) {
	for key, summary := range values {
		if summary.Num() == 0 {
			continue
		}

		value := summary.AggregatedValue()
		r := g.track(category+"/"+key, value)

		labels := prometheus.Labels{"category": category, "stat": key}
		g.lastValue.With(labels).Set(value)
		g.minValue.With(labels).Set(r.min)
		g.maxValue.With(labels).Set(r.max)
		g.samplesTotal.With(labels).Add(float64(summary.Num()))
	}

	g.logger.Debug("gauges updated",
		zap.String("category", category),
		zap.Int64("step", step),
		zap.Int("stats", len(values)),
	)
}

func (g *GaugeWriter) track(id string, value float64) minMax {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.ranges[id]
	if !ok {
		r = minMax{min: value, max: value}
	} else {
		r.min = math.Min(r.min, value)
		r.max = math.Max(r.max, value)
	}
	g.ranges[id] = r
	return r
}
