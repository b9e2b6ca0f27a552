package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 10 * time.Second

// StreamHandler upgrades /v1/stream and forwards engine tick updates to the
// client until it disconnects.
type StreamHandler struct {
	data     MarketData
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewStreamHandler(data MarketData, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		data: data,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboard is served from arbitrary origins in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "stream"),
	}
}

func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.data.Subscribe()
	defer cancel()

	// Reader goroutine exists only to detect the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info("stream client connected", "remote", c.ClientIP())

	for {
		select {
		case <-done:
			h.logger.Info("stream client disconnected", "remote", c.ClientIP())
			return
		case <-c.Request.Context().Done():
			return
		case update := <-updates:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				h.logger.Warn("stream write failed", "remote", c.ClientIP(), "error", err)
				return
			}
		}
	}
}
