package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitted/fitted/internal/logging"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/model"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestHub_DeliversNewPostToEveryClient(t *testing.T) {
	hub := NewHub(logging.Discard(), metrics.New())
	srv := httptest.NewServer(NewHandler(hub, logging.Discard()))
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	post := model.Post{ID: "p1", Username: "alice", Content: "PR on deadlift", Date: "2026-10-17"}
	require.NoError(t, hub.Publish(context.Background(), NewPostEvent(post)))

	for _, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var ev Event
		err := wsjson.Read(ctx, conn, &ev)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, EventNewPost, ev.Type)
		require.NotNil(t, ev.Post)
		assert.Equal(t, "PR on deadlift", ev.Post.Content)
		assert.False(t, ev.SentAt.IsZero())
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(logging.Discard(), nil)
	srv := httptest.NewServer(NewHandler(hub, logging.Discard()))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	m := metrics.New()
	hub := NewHub(logging.Discard(), m)

	// A client whose write pump never runs.
	c := newClient(context.Background(), nil, "test")
	require.True(t, hub.register(c))

	for i := 0; i < sendBufferSize+3; i++ {
		require.NoError(t, hub.Publish(context.Background(), NewPostEvent(model.Post{ID: "x"})))
	}

	assert.Len(t, c.send, sendBufferSize)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LiveEventsDropped))
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(logging.Discard(), nil)
	c := newClient(context.Background(), nil, "test")
	require.True(t, hub.register(c))

	hub.Close()

	assert.Error(t, c.ctx.Err(), "existing clients are cancelled")
	assert.False(t, hub.register(newClient(context.Background(), nil, "late")))
}

func TestEventJSONShape(t *testing.T) {
	data, err := json.Marshal(NewPostEvent(model.Post{ID: "p1", Username: "alice"}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "new_post", raw["type"])
	assert.Contains(t, raw, "post")
	assert.Contains(t, raw, "sentAt")
}

// TestRedisRelay needs a real server: REDIS_TEST_ADDR=localhost:6379.
func TestRedisRelay(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set; skipping redis relay test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	hub := NewHub(logging.Discard(), nil)
	c := newClient(context.Background(), nil, "test")
	require.True(t, hub.register(c))

	relay := NewRedisRelay(rdb, hub, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	// Publish until the subscription is live; Run confirms it asynchronously.
	require.Eventually(t, func() bool {
		_ = relay.Publish(context.Background(), NewPostEvent(model.Post{ID: "via-redis"}))
		return len(c.send) > 0
	}, 5*time.Second, 50*time.Millisecond)
}
