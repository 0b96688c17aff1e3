package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rlkit/trainflow/internal/database"
)

// RunRecord is the persisted form of a tracked run.
type RunRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Project   string `gorm:"size:128;index"`
	Name      string `gorm:"size:255"`
	Status    string `gorm:"size:32"`
	Config    []byte
	StartTime time.Time
	EndTime   time.Time
}

func (RunRecord) TableName() string { return "runs" }

// MetricRecord is one persisted metric value.
type MetricRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"size:64;index"`
	Key       string `gorm:"size:255"`
	Value     float64
	Step      int64
	Timestamp time.Time
}

func (MetricRecord) TableName() string { return "metrics" }

func (rec RunRecord) info() RunInfo {
	return RunInfo{
		RunID:     rec.ID,
		Project:   rec.Project,
		Name:      rec.Name,
		Status:    RunStatus(rec.Status),
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
	}
}

// LocalClient records runs in a gorm-backed store, typically the sqlite
// file under the results directory. It also serves the query side used by
// the runs subcommand.
type LocalClient struct {
	db      *gorm.DB
	pool    *database.Pool
	project string
	logger  *zap.Logger
}

var _ Client = (*LocalClient)(nil)

// NewLocalClient wraps an existing gorm DB. The caller keeps ownership of
// the connection; Close is then a no-op.
func NewLocalClient(db *gorm.DB, project string, logger *zap.Logger) *LocalClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if project == "" {
		project = DefaultProject
	}
	return &LocalClient{
		db:      db,
		project: project,
		logger:  logger.With(zap.String("component", "tracker_local")),
	}
}

// OpenLocal opens (creating if needed) the sqlite run store at path and
// migrates the runs and metrics tables. The returned client owns the
// connection.
func OpenLocal(path, project string, logger *zap.Logger) (*LocalClient, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("tracker: create store directory: %w", err)
		}
	}

	cfg := database.DefaultConfig()
	cfg.DSN = path

	pool, err := database.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("tracker: open local store: %w", err)
	}
	if err := pool.DB().AutoMigrate(&RunRecord{}, &MetricRecord{}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("tracker: migrate local store: %w", err)
	}

	client := NewLocalClient(pool.DB(), project, logger)
	client.pool = pool
	return client, nil
}

// StartRun inserts a RUNNING run row and returns a handle for it.
func (c *LocalClient) StartRun(ctx context.Context, cfg RunConfig) (Run, error) {
	project := cfg.Project
	if project == "" {
		project = c.project
	}

	configJSON, err := json.Marshal(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("tracker: encode run config: %w", err)
	}

	rec := RunRecord{
		ID:        uuid.NewString(),
		Project:   project,
		Name:      cfg.Name,
		Status:    string(StatusRunning),
		Config:    configJSON,
		StartTime: time.Now().UTC(),
	}
	if err := c.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("tracker: create run: %w", err)
	}

	c.logger.Info("run started",
		zap.String("run_id", rec.ID),
		zap.String("project", project),
	)
	return &localRun{client: c, id: rec.ID}, nil
}

// Close closes the underlying pool when this client opened it.
func (c *LocalClient) Close() error {
	if c.pool != nil {
		return c.pool.Close()
	}
	return nil
}

// ListRuns returns runs newest first, filtered by project when non-empty.
func (c *LocalClient) ListRuns(ctx context.Context, project string) ([]RunInfo, error) {
	q := c.db.WithContext(ctx).Model(&RunRecord{}).Order("start_time DESC")
	if project != "" {
		q = q.Where("project = ?", project)
	}

	var records []RunRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("tracker: list runs: %w", err)
	}

	infos := make([]RunInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, rec.info())
	}
	return infos, nil
}

// GetRun looks up one run by ID.
func (c *LocalClient) GetRun(ctx context.Context, runID string) (*RunInfo, error) {
	var rec RunRecord
	err := c.db.WithContext(ctx).First(&rec, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: get run: %w", err)
	}

	info := rec.info()
	return &info, nil
}

// RunMetrics returns a run's metric points ordered by step, filtered to one
// key when non-empty.
func (c *LocalClient) RunMetrics(ctx context.Context, runID, key string) ([]MetricPoint, error) {
	q := c.db.WithContext(ctx).Where("run_id = ?", runID).Order("step ASC")
	if key != "" {
		q = q.Where("key = ?", key)
	}

	var records []MetricRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("tracker: query metrics: %w", err)
	}

	points := make([]MetricPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, MetricPoint{
			Key:       rec.Key,
			Step:      rec.Step,
			Value:     rec.Value,
			Timestamp: rec.Timestamp,
		})
	}
	return points, nil
}

type localRun struct {
	client *LocalClient
	id     string
}

var _ Run = (*localRun)(nil)

func (r *localRun) ID() string { return r.id }

// LogMetrics batch-inserts one row per key.
func (r *localRun) LogMetrics(ctx context.Context, step int64, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]MetricRecord, 0, len(values))
	for key, value := range values {
		records = append(records, MetricRecord{
			RunID:     r.id,
			Key:       key,
			Value:     value,
			Step:      step,
			Timestamp: now,
		})
	}

	if err := r.client.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("tracker: insert metrics: %w", err)
	}
	return nil
}

// Finish marks the run's terminal status and end time.
func (r *localRun) Finish(ctx context.Context, status RunStatus) error {
	res := r.client.db.WithContext(ctx).Model(&RunRecord{}).
		Where("id = ?", r.id).
		Updates(map[string]any{
			"status":   string(status),
			"end_time": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("tracker: finish run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.id)
	}

	r.client.logger.Info("run finished",
		zap.String("run_id", r.id),
		zap.String("status", string(status)),
	)
	return nil
}
