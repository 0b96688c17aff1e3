package stats

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Board owns the writer set and the per-category reporters. One Board
// serves a whole training run.
type Board struct {
	logger *zap.Logger

	mu        sync.RWMutex
	writers   []StatsWriter
	reporters map[string]*Reporter
}

// NewBoard builds a Board over the given writers. A nil logger falls back
// to a noop logger.
func NewBoard(logger *zap.Logger, writers ...StatsWriter) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		logger:    logger.With(zap.String("component", "stats_board")),
		writers:   append([]StatsWriter(nil), writers...),
		reporters: make(map[string]*Reporter),
	}
}

// AddWriter appends a writer; it sees only stats written after this call.
func (b *Board) AddWriter(w StatsWriter) {
	if w == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writers = append(b.writers, w)
}

// Reporter returns the reporter bound to category, creating it on first
// use. Calls for the same category share one reporter.
func (b *Board) Reporter(category string) *Reporter {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.reporters[category]
	if !ok {
		r = &Reporter{
			board:    b,
			category: category,
			buffer:   make(map[string]StatsSummary),
		}
		b.reporters[category] = r
	}
	return r
}

// Close closes every writer implementing io.Closer, joining their errors.
func (b *Board) Close() error {
	var errs []error
	for _, w := range b.snapshotWriters() {
		if closer, ok := w.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (b *Board) snapshotWriters() []StatsWriter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]StatsWriter(nil), b.writers...)
}

// Reporter buffers samples for one category until WriteStats flushes them
// to the Board's writers. Safe for concurrent use.
type Reporter struct {
	board    *Board
	category string

	mu     sync.Mutex
	buffer map[string]StatsSummary
}

// Add buffers a sample under the Average aggregation.
func (r *Reporter) Add(key string, value float64) {
	r.AddWithAggregation(key, value, Average)
}

// AddWithAggregation buffers a sample and records how the stat collapses at
// the next flush. The latest aggregation method wins for the whole buffer.
func (r *Reporter) AddWithAggregation(key string, value float64, agg AggregationMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.buffer[key]
	s.FullDist = append(s.FullDist, value)
	s.Aggregation = agg
	r.buffer[key] = s
}

// Set replaces the stat's buffer with this single sample under MostRecent,
// for gauge-like stats where only the latest value matters.
func (r *Reporter) Set(key string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer[key] = StatsSummary{
		FullDist:    []float64{value},
		Aggregation: MostRecent,
	}
}

// AddProperty forwards a run-level property to every writer that accepts
// properties. Properties bypass the buffer.
func (r *Reporter) AddProperty(property PropertyType, value any) {
	for _, w := range r.board.snapshotWriters() {
		pw, ok := w.(PropertyWriter)
		if !ok {
			continue
		}
		r.board.dispatch(func() {
			pw.AddProperty(r.category, property, value)
		})
	}
}

// Summary returns a copy of the stat's buffered distribution, or an empty
// summary when nothing is buffered.
func (r *Reporter) Summary(key string) StatsSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.buffer[key]
	if !ok {
		return EmptyStatsSummary()
	}
	return StatsSummary{
		FullDist:    append([]float64(nil), s.FullDist...),
		Aggregation: s.Aggregation,
	}
}

// WriteStats snapshots every buffered stat, fans the summaries out to all
// writers, and clears the buffer. A panicking writer loses only its own
// output; the remaining writers still run.
func (r *Reporter) WriteStats(step int64) {
	r.mu.Lock()
	values := r.buffer
	r.buffer = make(map[string]StatsSummary)
	r.mu.Unlock()

	for _, w := range r.board.snapshotWriters() {
		w := w
		r.board.dispatch(func() {
			w.WriteStats(r.category, values, step)
		})
	}
}

func (b *Board) dispatch(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("stats writer panicked", zap.Any("recover", rec))
		}
	}()
	fn()
}
