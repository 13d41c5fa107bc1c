// Package stream pushes committed ledger events to websocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/observability"
	"solana-token-craft/internal/rpc"
)

// Config configures connection keepalive and buffering.
type Config struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a connection may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SendBuffer is the number of queued messages after which a client is dropped.
	SendBuffer int
	// MaxMessageBytes limits inbound client messages.
	MaxMessageBytes int64
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:    30 * time.Second,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBuffer:      256,
		MaxMessageBytes: 4096,
	}
}

// Option configures Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// Hub is a ledger event sink that fans events out to websocket clients.
// Serve it on GET /ws.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	metrics  *observability.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a Hub. A nil config uses DefaultConfig.
func NewHub(config *Config, opts ...Option) *Hub {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	h := &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  zerolog.Nop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ledger.EventSink.
func (h *Hub) Name() string {
	return "stream"
}

// Publish implements ledger.EventSink. It never blocks on a client: a client
// whose buffer is full is disconnected.
func (h *Hub) Publish(_ context.Context, e *domain.Event) error {
	msg, err := json.Marshal(rpc.Notification{
		JSONRPC: rpc.Version,
		Method:  "event",
		Params:  rpc.NewEventView(e),
	})
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.matches(e) {
			continue
		}
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Str("remote", c.remote).Msg("dropping slow stream client")
		h.metrics.RecordDropped()
		h.remove(c)
	}
	return nil
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close(websocket.CloseGoingAway)
	}
	h.metrics.SetSubscribers(0)
	return nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(conn, r.RemoteAddr, h.cfg.SendBuffer)
	if !h.add(c) {
		c.close(websocket.CloseGoingAway)
		return
	}
	h.logger.Debug().Str("remote", c.remote).Msg("stream client connected")

	go c.writeLoop(h.cfg)
	c.readLoop(h.cfg)

	h.remove(c)
	h.logger.Debug().Str("remote", c.remote).Msg("stream client disconnected")
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.SetSubscribers(len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetSubscribers(n)
	}
	c.close(websocket.CloseNormalClosure)
}
