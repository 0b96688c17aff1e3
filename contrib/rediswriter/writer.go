// Package rediswriter publishes training stats to Redis: a hash per
// category for dashboards that poll, and a pub/sub event per flush for
// dashboards that subscribe. It publishes the manifest factory "redis",
// configured from the TRAINFLOW_REDIS_* environment.
package rediswriter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rlkit/trainflow/internal/tlsutil"
	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/stats"
)

// Environment variables the "redis" manifest factory reads.
const (
	EnvAddr      = "TRAINFLOW_REDIS_ADDR"
	EnvPassword  = "TRAINFLOW_REDIS_PASSWORD"
	EnvDB        = "TRAINFLOW_REDIS_DB"
	EnvChannel   = "TRAINFLOW_REDIS_CHANNEL"
	EnvKeyPrefix = "TRAINFLOW_REDIS_KEY_PREFIX"
	EnvTTL       = "TRAINFLOW_REDIS_TTL"
	EnvTLS       = "TRAINFLOW_REDIS_TLS"
)

const (
	defaultChannel   = "trainflow:stats"
	defaultKeyPrefix = "trainflow:stats"

	connectTimeout = 5 * time.Second
	writeTimeout   = 5 * time.Second
)

// Options configures the Redis writer.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Channel receives one JSON event per flush; KeyPrefix scopes the
	// per-category hashes. TTL, when set, expires a category hash that
	// long after its last update.
	Channel   string
	KeyPrefix string
	TTL       time.Duration

	// TLS connects with the hardened client TLS configuration.
	TLS bool
}

// Writer mirrors aggregated stats into Redis.
type Writer struct {
	client  *redis.Client
	channel string
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
}

var (
	_ stats.StatsWriter = (*Writer)(nil)
	_ io.Closer         = (*Writer)(nil)
)

// NewWriter connects to Redis and verifies the connection.
func NewWriter(opts Options, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Channel == "" {
		opts.Channel = defaultChannel
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}

	redisOpts := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		redisOpts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rediswriter: connect to %s: %w", opts.Addr, err)
	}

	return &Writer{
		client:  client,
		channel: opts.Channel,
		prefix:  opts.KeyPrefix,
		ttl:     opts.TTL,
		logger:  logger.With(zap.String("component", "stats_redis")),
	}, nil
}

// statsEvent is the pub/sub payload published per flush.
type statsEvent struct {
	Category string             `json:"category"`
	Step     int64              `json:"step"`
	Stats    map[string]float64 `json:"stats"`
}

func (w *Writer) hashKey(category string) string {
	return w.prefix + ":" + category
}

// WriteStats updates the category hash and publishes the flush event in one
// pipeline. Redis failures are logged, never surfaced to the training loop.
func (w *Writer) WriteStats(category string, values map[string]stats.StatsSummary, step int64) {
	event := statsEvent{
		Category: category,
		Step:     step,
		Stats:    make(map[string]float64, len(values)),
	}
	fields := make(map[string]any, len(values))
	for key, summary := range values {
		if summary.Num() == 0 {
			continue
		}
		value := summary.AggregatedValue()
		fields[key] = value
		event.Stats[key] = value
	}
	if len(fields) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Warn("encode stats event", zap.String("category", category), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	key := w.hashKey(category)
	pipe := w.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	if w.ttl > 0 {
		pipe.Expire(ctx, key, w.ttl)
	}
	pipe.Publish(ctx, w.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		w.logger.Warn("publish stats to redis",
			zap.String("category", category),
			zap.Error(err),
		)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}

// OptionsFromEnv builds Options from the TRAINFLOW_REDIS_* variables.
// EnvAddr is required; DB and TTL must parse when set.
func OptionsFromEnv() (Options, error) {
	addr := os.Getenv(EnvAddr)
	if addr == "" {
		return Options{}, fmt.Errorf("rediswriter: %s is not set", EnvAddr)
	}

	opts := Options{
		Addr:      addr,
		Password:  os.Getenv(EnvPassword),
		Channel:   os.Getenv(EnvChannel),
		KeyPrefix: os.Getenv(EnvKeyPrefix),
	}
	if raw := os.Getenv(EnvDB); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return Options{}, fmt.Errorf("rediswriter: parse %s: %w", EnvDB, err)
		}
		opts.DB = db
	}
	if raw := os.Getenv(EnvTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Options{}, fmt.Errorf("rediswriter: parse %s: %w", EnvTTL, err)
		}
		opts.TTL = ttl
	}
	if raw := os.Getenv(EnvTLS); raw != "" {
		useTLS, err := strconv.ParseBool(raw)
		if err != nil {
			return Options{}, fmt.Errorf("rediswriter: parse %s: %w", EnvTLS, err)
		}
		opts.TLS = useTLS
	}
	return opts, nil
}

func init() {
	plugins.MustRegisterFactory("redis", func(_ *settings.RunOptions, logger *zap.Logger) ([]stats.StatsWriter, error) {
		opts, err := OptionsFromEnv()
		if err != nil {
			return nil, err
		}
		w, err := NewWriter(opts, logger)
		if err != nil {
			return nil, err
		}
		return []stats.StatsWriter{w}, nil
	})
}
