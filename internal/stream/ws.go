// Package stream provides a reconnecting WebSocket client for live market
// data sources.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket timeouts
const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsPingInterval     = 30 * time.Second
	wsReconnectMin     = 1 * time.Second
	wsReconnectMax     = 30 * time.Second
)

// WSConfig holds WebSocket connection settings
type WSConfig struct {
	URL          string
	Headers      http.Header
	PingDisabled bool          // Set true if server sends pings
	PingInterval time.Duration // Custom ping interval (0 = default 30s)
	ReadTimeout  time.Duration // Custom read timeout (0 = default 60s)
}

// WSHandler defines callbacks for WebSocket events
type WSHandler struct {
	// OnConnect is called after connection is established (optional)
	OnConnect func(conn *websocket.Conn) error

	// OnSubscribe is called to subscribe to channels (optional)
	OnSubscribe func(conn *websocket.Conn) error

	// OnMessage processes each incoming message
	OnMessage func(conn *websocket.Conn, msg []byte) error
}

// WSClient manages a WebSocket connection with auto-reconnect and
// exponential backoff. It never busy-loops: failed connections wait
// between 1s and 30s, doubling on every consecutive failure.
type WSClient struct {
	config  WSConfig
	handler WSHandler
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewWSClient creates a new WebSocket client
func NewWSClient(config WSConfig, handler WSHandler, logger *slog.Logger) *WSClient {
	// Apply defaults
	if config.PingInterval == 0 {
		config.PingInterval = wsPingInterval
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = wsReadTimeout
	}

	return &WSClient{
		config:  config,
		handler: handler,
		logger:  logger,
	}
}

// Run starts the WebSocket connection with auto-reconnect.
// Blocks until the context is cancelled.
func (c *WSClient) Run(ctx context.Context) error {
	reconnectDelay := wsReconnectMin

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := c.connect(ctx)
		if err == nil {
			reconnectDelay = wsReconnectMin
			continue
		}

		// Don't log if shutting down
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Warn("WebSocket disconnected, reconnecting",
			"error", err,
			"delay", reconnectDelay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}

		// Exponential backoff
		reconnectDelay *= 2
		if reconnectDelay > wsReconnectMax {
			reconnectDelay = wsReconnectMax
		}
	}
}

// connect establishes a single WebSocket connection
func (c *WSClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, c.config.Headers)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	c.logger.Info("WebSocket connected", "url", c.config.URL)

	conn.SetPongHandler(func(string) error { return nil })

	if c.handler.OnConnect != nil {
		if err := c.handler.OnConnect(conn); err != nil {
			return fmt.Errorf("onConnect failed: %w", err)
		}
	}

	if c.handler.OnSubscribe != nil {
		if err := c.handler.OnSubscribe(conn); err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	return c.readLoop(ctx, conn)
}

// readLoop handles reading messages and sending pings
func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	messages := make(chan []byte, 100)
	readErr := make(chan error, 1)

	// Reader goroutine
	go func() {
		defer close(messages)
		for {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				select {
				case readErr <- err:
				default:
				}
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Ping ticker (if enabled)
	var pingChan <-chan time.Time
	if !c.config.PingDisabled {
		pingTicker := time.NewTicker(c.config.PingInterval)
		defer pingTicker.Stop()
		pingChan = pingTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			return fmt.Errorf("read error: %w", err)

		case msg := <-messages:
			if c.handler.OnMessage == nil {
				continue
			}
			if err := c.handler.OnMessage(conn, msg); err != nil {
				c.logger.Debug("OnMessage error", "error", err)
			}

		case <-pingChan:
			c.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		}
	}
}

// WriteJSON sends a JSON message (thread-safe)
func (c *WSClient) WriteJSON(conn *websocket.Conn, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
