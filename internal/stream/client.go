package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/rpc"
)

// Filter selects the events a client receives. Empty fields match anything.
type Filter struct {
	Mint    string `json:"mint,omitempty"`
	Account string `json:"account,omitempty"`
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e *domain.Event) bool {
	if f.Mint != "" && e.Mint != f.Mint {
		return false
	}
	if f.Account != "" && !e.Touches(f.Account) {
		return false
	}
	return true
}

// client is one websocket connection. Only writeLoop writes data frames.
type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte

	mu         sync.Mutex
	filter     Filter
	subscribed bool

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, remote string, buffer int) *client {
	if buffer <= 0 {
		buffer = 1
	}
	return &client{
		conn:   conn,
		remote: remote,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *client) matches(e *domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed && c.filter.Matches(e)
}

// enqueue queues msg without blocking. It reports false when the buffer is full.
func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close(code int) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

// readLoop handles subscribe and unsubscribe requests until the connection fails.
func (c *client) readLoop(cfg Config) {
	c.conn.SetReadLimit(cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		reply, err := json.Marshal(c.handle(message))
		if err != nil {
			return
		}
		if !c.enqueue(reply) {
			return
		}
	}
}

func (c *client) handle(message []byte) *rpc.Response {
	var req rpc.Request
	if err := json.Unmarshal(message, &req); err != nil {
		return &rpc.Response{JSONRPC: rpc.Version, Error: &rpc.Error{Code: rpc.CodeParseError, Message: err.Error()}}
	}
	resp := &rpc.Response{JSONRPC: rpc.Version, ID: req.ID}

	switch req.Method {
	case "subscribe":
		var f Filter
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &f); err != nil {
				resp.Error = &rpc.Error{Code: rpc.CodeInvalidParams, Message: err.Error()}
				return resp
			}
		}
		c.mu.Lock()
		c.filter, c.subscribed = f, true
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		c.filter, c.subscribed = Filter{}, false
		c.mu.Unlock()
	default:
		resp.Error = &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "method not found: " + req.Method}
		return resp
	}

	resp.Result = json.RawMessage(`true`)
	return resp
}

// writeLoop sends queued messages and keepalive pings.
func (c *client) writeLoop(cfg Config) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close(websocket.CloseGoingAway)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.close(websocket.CloseGoingAway)
				return
			}
		}
	}
}
