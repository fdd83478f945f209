package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 << 10 // clients have nothing to say; anything bigger is abuse
	sendBufferSize = 16
)

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(ctx context.Context, conn *websocket.Conn, remote string) *client {
	ctx, cancel := context.WithCancel(ctx)
	return &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		remote: remote,
		ctx:    ctx,
		cancel: cancel,
	}
}

// readPump discards incoming messages until the peer goes away. It exists so
// that close frames and pongs are processed.
func (c *client) readPump(logger *slog.Logger) {
	defer c.cancel()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.conn.Read(c.ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				c.ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				logger.Debug("live read ended", slog.String("remote", c.remote), slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump delivers queued events and pings the peer so dead connections
// are noticed.
func (c *client) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case data := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Debug("live write failed", slog.String("remote", c.remote), slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Handler upgrades GET /ws and keeps the connection until either side closes.
type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server's read/write timeouts would otherwise still apply to the
	// hijacked connection and cut it after a few seconds.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	// Default AcceptOptions only allow same-origin upgrades.
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context ends when the handler returns, which is what we want:
	// both pumps stop with the connection.
	c := newClient(r.Context(), conn, r.RemoteAddr)
	if !h.hub.register(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.unregister(c)

	go c.writePump(h.logger)
	c.readPump(h.logger)

	conn.Close(websocket.StatusNormalClosure, "")
}
