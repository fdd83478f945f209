// Package live pushes newly created posts to every connected browser over a
// websocket.
//
// Delivery is best-effort: there is no replay and no acknowledgement. A client
// whose send queue is full misses the event; the page still shows the post on
// its next feed load.
//
// With REDIS_ADDR set, events travel through a Redis channel (RedisRelay) so
// viewers connected to any instance see posts created on every instance.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/model"
)

// EventNewPost is the only event type the server emits.
const EventNewPost = "new_post"

// Event is the JSON message written to clients.
type Event struct {
	Type   string      `json:"type"`
	Post   *model.Post `json:"post,omitempty"`
	SentAt time.Time   `json:"sentAt"`
}

// NewPostEvent wraps a freshly created post.
func NewPostEvent(post model.Post) Event {
	return Event{Type: EventNewPost, Post: &post, SentAt: time.Now().UTC()}
}

// Publisher is what the post service depends on. Both Hub (single instance)
// and RedisRelay (multi-instance) implement it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub tracks the connected clients of this instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Publish fans ev out to local clients.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// broadcast never blocks: a client whose queue is full is skipped.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.metrics.LiveEventDropped()
			h.logger.Debug("live event dropped, client queue full", slog.String("remote", c.remote))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register reports false once the hub is closed.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.LiveClientConnected()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.LiveClientDisconnected()
	}
}

// Close disconnects every client and refuses new ones. Called on shutdown
// before the HTTP server drains, since websocket handlers never return on
// their own.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.cancel()
	}
}
