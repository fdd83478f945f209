package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitted/fitted/internal/live"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// Services are tested against the real SQLite store in memory: the rules
// here depend on what the store returns (Seq order, edge lists, conflicts),
// and a fake would have to re-implement all of it. Only the outer
// collaborators (media, live channel) are faked.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlite.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Age: 30}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func seedPosts(t *testing.T, db *sqlite.DB, username string, n int) []model.Post {
	t.Helper()
	posts := make([]model.Post, 0, n)
	for i := 0; i < n; i++ {
		p := &model.Post{Username: username, Content: strings.Repeat("x", i+1)}
		require.NoError(t, db.CreatePost(context.Background(), p))
		posts = append(posts, *p)
	}
	return posts
}

// fakeMediaStore keeps saved objects in a map keyed by URL.
type fakeMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
}

var _ media.Store = (*fakeMediaStore)(nil)

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{objects: make(map[string][]byte)}
}

func (f *fakeMediaStore) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "/uploads/" + key
	f.objects[url] = data
	return url, nil
}

func (f *fakeMediaStore) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	delete(f.objects, url)
	return nil
}

// fakeProcessor passes the upload through unchanged, or fails.
type fakeProcessor struct {
	err error
}

func (f fakeProcessor) Process(r io.Reader) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	var buf bytes.Buffer
	_, err := io.Copy(&buf, r)
	return buf.Bytes(), err
}

// fakePublisher records events and optionally fails.
type fakePublisher struct {
	mu     sync.Mutex
	events []live.Event
	err    error
}

var _ live.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) Publish(_ context.Context, ev live.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

var errBoom = errors.New("boom")
