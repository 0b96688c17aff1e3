package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rlkit/trainflow/internal/tlsutil"
)

// HTTPOptions configures the remote tracking client.
type HTTPOptions struct {
	BaseURL string
	APIKey  string
	Project string
	Timeout time.Duration

	// Client-side throttle so a tight training loop cannot flood the
	// tracking server.
	RequestsPerSecond float64
	Burst             int
}

// HTTPClient posts runs and metrics to a remote tracking server.
type HTTPClient struct {
	opts    HTTPOptions
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the tracking server at opts.BaseURL.
func NewHTTPClient(opts HTTPOptions, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Project == "" {
		opts.Project = DefaultProject
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}

	return &HTTPClient{
		opts:    opts,
		http:    tlsutil.SecureHTTPClient(opts.Timeout),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		logger:  logger.With(zap.String("component", "tracker_http")),
	}
}

type createRunRequest struct {
	RunID   string            `json:"run_id"`
	Project string            `json:"project"`
	Name    string            `json:"name"`
	Tags    map[string]string `json:"tags,omitempty"`
	Config  map[string]any    `json:"config,omitempty"`
}

// StartRun registers a run with the server. The run ID is generated client
// side so metrics can be attributed even if the create response is lost.
func (c *HTTPClient) StartRun(ctx context.Context, cfg RunConfig) (Run, error) {
	project := cfg.Project
	if project == "" {
		project = c.opts.Project
	}

	runID := uuid.NewString()
	payload := createRunRequest{
		RunID:   runID,
		Project: project,
		Name:    cfg.Name,
		Tags:    cfg.Tags,
		Config:  cfg.Config,
	}
	if err := c.post(ctx, "/api/v1/runs", payload); err != nil {
		return nil, fmt.Errorf("tracker: start run: %w", err)
	}

	c.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("project", project),
	)
	return &httpRun{client: c, id: runID}, nil
}

// Close releases idle connections. In-flight requests are unaffected.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.opts.BaseURL, "/") + path
	ctx, span := otel.Tracer("trainflow/tracker").Start(ctx, "POST "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(http.MethodPost),
			semconv.URLFull(url),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

type httpRun struct {
	client *HTTPClient
	id     string
}

var _ Run = (*httpRun)(nil)

func (r *httpRun) ID() string { return r.id }

type logMetricsRequest struct {
	Step   int64              `json:"step"`
	Values map[string]float64 `json:"values"`
}

func (r *httpRun) LogMetrics(ctx context.Context, step int64, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}
	payload := logMetricsRequest{Step: step, Values: values}
	if err := r.client.post(ctx, "/api/v1/runs/"+r.id+"/metrics", payload); err != nil {
		return fmt.Errorf("tracker: log metrics: %w", err)
	}
	return nil
}

type finishRunRequest struct {
	Status RunStatus `json:"status"`
}

func (r *httpRun) Finish(ctx context.Context, status RunStatus) error {
	if err := r.client.post(ctx, "/api/v1/runs/"+r.id+"/finish", finishRunRequest{Status: status}); err != nil {
		return fmt.Errorf("tracker: finish run: %w", err)
	}
	r.client.logger.Info("run finished",
		zap.String("run_id", r.id),
		zap.String("status", string(status)),
	)
	return nil
}
