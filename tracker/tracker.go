package tracker

import (
	"context"
	"errors"
	"time"
)

// DefaultProject groups runs that never set an explicit project.
const DefaultProject = "trainflow"

// ErrRunNotFound reports an operation against a run ID the backend has no
// record of.
var ErrRunNotFound = errors.New("tracker: run not found")

// RunStatus is the live or terminal state of a tracked run.
type RunStatus string

const (
	StatusRunning  RunStatus = "RUNNING"
	StatusFinished RunStatus = "FINISHED"
	StatusFailed   RunStatus = "FAILED"
	StatusKilled   RunStatus = "KILLED"
)

// RunConfig describes a run at start time. Config carries the flattened,
// serializer-safe run options.
type RunConfig struct {
	Project string
	Name    string
	Tags    map[string]string
	Config  map[string]any
}

// RunInfo is the backend's view of a run.
type RunInfo struct {
	RunID     string
	Project   string
	Name      string
	Status    RunStatus
	StartTime time.Time
	EndTime   time.Time
}

// MetricPoint is one recorded metric value.
type MetricPoint struct {
	Key       string
	Step      int64
	Value     float64
	Timestamp time.Time
}

// Client starts runs against one tracking backend.
type Client interface {
	StartRun(ctx context.Context, cfg RunConfig) (Run, error)
	Close() error
}

// Run is a live training run accepting metrics until finished.
type Run interface {
	ID() string
	LogMetrics(ctx context.Context, step int64, values map[string]float64) error
	Finish(ctx context.Context, status RunStatus) error
}
