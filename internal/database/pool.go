package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Sentinel errors for the database layer.
var (
	ErrUnsupportedDriver = errors.New("database: unsupported driver")
	ErrPoolClosed        = errors.New("database: pool is closed")
)

// Config selects the driver and tunes the connection pool.
type Config struct {
	// Driver is one of sqlite, postgres, mysql.
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string; for sqlite it is the
	// database file path.
	DSN string `yaml:"dsn"`

	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DefaultConfig returns pool settings suited to the run-history workload:
// short bursts of inserts from a single training process.
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Pool wraps a gorm handle with its underlying sql.DB pool.
type Pool struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// Open connects to the configured database and applies the pool settings.
func Open(cfg Config, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Driver, err)
	}

	pool, err := Wrap(db, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return pool, nil
}

// Wrap builds a Pool around an existing gorm handle and applies the pool
// settings. Used directly by tests that inject a mock connection.
func Wrap(db *gorm.DB, cfg Config, logger *zap.Logger) (*Pool, error) {
	if db == nil {
		return nil, fmt.Errorf("database: db must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &Pool{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "db_pool")),
	}, nil
}

// DB returns the gorm handle.
func (p *Pool) DB() *gorm.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// Ping checks the database connection.
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Stats returns the connection pool statistics.
func (p *Pool) Stats() sql.DBStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sqlDB.Stats()
}

// WithTransaction runs fn inside a transaction bound to ctx.
func (p *Pool) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	db := p.db
	p.mu.RUnlock()

	return db.WithContext(ctx).Transaction(fn)
}

// Close closes the underlying connection pool. Safe to call twice.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Info("closing database pool")

	return p.sqlDB.Close()
}
