package stats

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TensorboardWriter persists stats as append-only JSONL event files, one
// directory per category under the run's write path, the layout dashboard
// tooling tails.
type TensorboardWriter struct {
	baseDir       string
	clearPastData bool
	hiddenKeys    map[string]struct{}
	logger        *zap.Logger

	mu       sync.Mutex
	files    map[string]*eventFile
	prepared map[string]struct{}
}

type eventFile struct {
	f *os.File
	w *bufio.Writer
}

var (
	_ StatsWriter    = (*TensorboardWriter)(nil)
	_ PropertyWriter = (*TensorboardWriter)(nil)
	_ io.Closer      = (*TensorboardWriter)(nil)
)

// NewTensorboardWriter writes event files under baseDir. With clearPastData
// set, stale event files in a category directory are removed the first time
// that category is touched. Stats named in hiddenKeys are skipped.
func NewTensorboardWriter(baseDir string, clearPastData bool, hiddenKeys []string, logger *zap.Logger) *TensorboardWriter {
	if logger == nil {
		logger = zap.NewNop()
	}

	hidden := make(map[string]struct{}, len(hiddenKeys))
	for _, key := range hiddenKeys {
		hidden[key] = struct{}{}
	}

	return &TensorboardWriter{
		baseDir:       baseDir,
		clearPastData: clearPastData,
		hiddenKeys:    hidden,
		logger:        logger.With(zap.String("component", "stats_tensorboard")),
		files:         make(map[string]*eventFile),
		prepared:      make(map[string]struct{}),
	}
}

// event is one JSONL record in an event file.
type event struct {
	WallTime float64    `json:"wall_time"`
	Step     int64      `json:"step"`
	Tag      string     `json:"tag"`
	Value    float64    `json:"value"`
	Dist     *distStats `json:"dist,omitempty"`
}

// distStats carries the distribution behind a Histogram-aggregated stat.
type distStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// WriteStats appends one record per visible stat to the category's event
// file.
func (t *TensorboardWriter) WriteStats(category string, values map[string]StatsSummary, step int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ef, err := t.categoryFile(category)
	if err != nil {
		t.logger.Warn("open event file",
			zap.String("category", category),
			zap.Error(err),
		)
		return
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if _, hidden := t.hiddenKeys[key]; hidden {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	enc := json.NewEncoder(ef.w)
	wallTime := float64(time.Now().UnixNano()) / 1e9
	for _, key := range keys {
		summary := values[key]
		ev := event{
			WallTime: wallTime,
			Step:     step,
			Tag:      key,
			Value:    summary.AggregatedValue(),
		}
		if summary.Aggregation == Histogram {
			ev.Dist = &distStats{
				Min:   summary.Min(),
				Max:   summary.Max(),
				Mean:  summary.Mean(),
				Std:   summary.StdDev(),
				Count: summary.Num(),
			}
		}
		if err := enc.Encode(ev); err != nil {
			t.logger.Warn("encode event",
				zap.String("category", category),
				zap.String("tag", key),
				zap.Error(err),
			)
		}
	}

	if err := ef.w.Flush(); err != nil {
		t.logger.Warn("flush event file",
			zap.String("category", category),
			zap.Error(err),
		)
	}
}

// AddProperty writes the hyperparameters snapshot as an indented JSON file
// next to the category's event files. Other property types are ignored.
func (t *TensorboardWriter) AddProperty(category string, property PropertyType, value any) {
	if property != PropertyHyperparameters {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dir, err := t.categoryDir(category)
	if err != nil {
		t.logger.Warn("prepare category directory",
			zap.String("category", category),
			zap.Error(err),
		)
		return
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.logger.Warn("encode hyperparameters",
			zap.String("category", category),
			zap.Error(err),
		)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "hyperparameters.json"), data, 0o644); err != nil {
		t.logger.Warn("write hyperparameters",
			zap.String("category", category),
			zap.Error(err),
		)
	}
}

// Close flushes and closes all open event files, joining errors.
func (t *TensorboardWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for category, ef := range t.files {
		if err := ef.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", category, err))
		}
		if err := ef.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", category, err))
		}
	}
	t.files = make(map[string]*eventFile)
	return errors.Join(errs...)
}

// categoryDir creates the category directory on first touch, clearing stale
// event files when the writer was built for a fresh run. Caller holds t.mu.
func (t *TensorboardWriter) categoryDir(category string) (string, error) {
	dir := filepath.Join(t.baseDir, category)
	if _, ok := t.prepared[category]; ok {
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if t.clearPastData {
		stale, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
		if err != nil {
			return "", fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, path := range stale {
			if err := os.Remove(path); err != nil {
				t.logger.Warn("remove stale event file",
					zap.String("path", path),
					zap.Error(err),
				)
			}
		}
		if len(stale) > 0 {
			t.logger.Info("cleared past event files",
				zap.String("category", category),
				zap.Int("removed", len(stale)),
			)
		}
	}

	t.prepared[category] = struct{}{}
	return dir, nil
}

// categoryFile opens the category's event file on first use. Caller holds
// t.mu.
func (t *TensorboardWriter) categoryFile(category string) (*eventFile, error) {
	if ef, ok := t.files[category]; ok {
		return ef, nil
	}

	dir, err := t.categoryDir(category)
	if err != nil {
		return nil, err
	}

	name := filepath.Join(dir, fmt.Sprintf("events-%d.jsonl", time.Now().UnixNano()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	ef := &eventFile{f: f, w: bufio.NewWriter(f)}
	t.files[category] = ef
	return ef, nil
}
