// Package wswriter broadcasts training stats to WebSocket subscribers for
// live dashboards. The Writer is an http.Handler; mount it on a mux or let
// the "websocket" manifest factory serve it on TRAINFLOW_WS_ADDR.
package wswriter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/rlkit/trainflow/internal/server"
	"github.com/rlkit/trainflow/plugins"
	"github.com/rlkit/trainflow/settings"
	"github.com/rlkit/trainflow/stats"
)

// EnvAddr is the listen address the "websocket" manifest factory binds.
const EnvAddr = "TRAINFLOW_WS_ADDR"

const (
	// subscriberBuffer bounds how far a subscriber may fall behind before
	// it is dropped.
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Writer fans stats out to connected WebSocket clients. Each subscriber has
// its own send queue and write loop, so WebSocket writes never run
// concurrently on one connection.
type Writer struct {
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	server *server.Manager
	closed bool
}

var (
	_ stats.StatsWriter = (*Writer)(nil)
	_ http.Handler      = (*Writer)(nil)
	_ io.Closer         = (*Writer)(nil)
)

// NewWriter builds a broadcaster with no subscribers.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		logger: logger.With(zap.String("component", "stats_ws")),
		subs:   make(map[*subscriber]struct{}),
	}
}

// statsEvent is the JSON message subscribers receive per flush.
type statsEvent struct {
	Category string             `json:"category"`
	Step     int64              `json:"step"`
	Time     time.Time          `json:"time"`
	Stats    map[string]float64 `json:"stats"`
}

// ServeHTTP upgrades the request and streams stats events until the client
// disconnects or the writer closes.
func (w *Writer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		w.logger.Warn("accept subscriber", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberBuffer)}
	if !w.add(sub) {
		_ = conn.Close(websocket.StatusGoingAway, "stats writer closed")
		return
	}
	defer w.remove(sub)

	// Subscribers only listen; CloseRead discards inbound frames and
	// cancels the context once the connection dies.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case payload := <-sub.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Writer) add(sub *subscriber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.subs[sub] = struct{}{}
	w.logger.Debug("subscriber connected", zap.Int("subscribers", len(w.subs)))
	return true
}

func (w *Writer) remove(sub *subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.subs, sub)
}

// SubscriberCount reports how many clients are connected.
func (w *Writer) SubscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// WriteStats broadcasts the flush to every subscriber. A subscriber whose
// queue is full is disconnected rather than allowed to stall the others.
func (w *Writer) WriteStats(category string, values map[string]stats.StatsSummary, step int64) {
	event := statsEvent{
		Category: category,
		Step:     step,
		Time:     time.Now().UTC(),
		Stats:    make(map[string]float64, len(values)),
	}
	for key, summary := range values {
		if summary.Num() == 0 {
			continue
		}
		event.Stats[key] = summary.AggregatedValue()
	}
	if len(event.Stats) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Warn("encode stats event", zap.String("category", category), zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for sub := range w.subs {
		select {
		case sub.send <- payload:
		default:
			w.logger.Warn("dropping slow subscriber")
			go sub.conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
		}
	}
}

// Serve starts an HTTP server for the writer on addr in the background.
func (w *Writer) Serve(addr string) error {
	cfg := server.DefaultConfig()
	cfg.Addr = addr
	mgr := server.NewManager(w, cfg, w.logger)
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("wswriter: %w", err)
	}

	w.mu.Lock()
	w.server = mgr
	w.mu.Unlock()
	return nil
}

// Addr returns the bound address when Serve started a listener, "" otherwise.
func (w *Writer) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.server == nil {
		return ""
	}
	return w.server.Addr()
}

// Close disconnects all subscribers with a normal closure and stops the
// self-served listener when there is one.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	subs := make([]*subscriber, 0, len(w.subs))
	for sub := range w.subs {
		subs = append(subs, sub)
	}
	mgr := w.server
	w.mu.Unlock()

	// Hijacked WebSocket connections are invisible to the HTTP server's
	// shutdown, so the subscribers go first.
	for _, sub := range subs {
		_ = sub.conn.Close(websocket.StatusNormalClosure, "stats writer closing")
	}
	if mgr != nil {
		return mgr.Shutdown(context.Background())
	}
	return nil
}

func init() {
	plugins.MustRegisterFactory("websocket", func(_ *settings.RunOptions, logger *zap.Logger) ([]stats.StatsWriter, error) {
		addr := os.Getenv(EnvAddr)
		if addr == "" {
			return nil, fmt.Errorf("wswriter: %s is not set", EnvAddr)
		}

		w := NewWriter(logger)
		if err := w.Serve(addr); err != nil {
			return nil, err
		}
		return []stats.StatsWriter{w}, nil
	})
}
