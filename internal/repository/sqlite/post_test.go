package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Age: 30}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user %s: %v", username, err)
	}
	return u
}

func createTestPost(t *testing.T, db *DB, username, content string) *model.Post {
	t.Helper()
	p := &model.Post{Username: username, Content: content}
	if err := db.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreatePost(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	post := &model.Post{Username: "alice", Content: "first!"}
	if err := db.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	if post.ID == "" {
		t.Error("CreatePost() did not set post.ID")
	}
	if post.Seq == 0 {
		t.Error("CreatePost() did not set post.Seq")
	}
	if post.CreatedAt.IsZero() {
		t.Error("CreatePost() did not set post.CreatedAt")
	}
	if post.Date != post.CreatedAt.Format(model.DateLayout) {
		t.Errorf("Date = %q, want %q", post.Date, post.CreatedAt.Format(model.DateLayout))
	}
}

func TestCreatePost_SeqIncreases(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	first := createTestPost(t, db, "alice", "one")
	second := createTestPost(t, db, "alice", "two")

	if second.Seq <= first.Seq {
		t.Errorf("Seq not increasing: first=%d second=%d", first.Seq, second.Seq)
	}
}

func TestCreatePost_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)

	err := db.CreatePost(context.Background(), &model.Post{Username: "ghost", Content: "boo"})
	if err == nil {
		t.Fatal("CreatePost() should fail for an author that does not exist")
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListPosts_Empty(t *testing.T) {
	db := newTestDB(t)

	posts, err := db.ListPosts(context.Background(), repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("ListPosts() returned %d posts, want 0", len(posts))
	}
}

func TestListPosts_InsertionOrderAndOffset(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")
	for i := 1; i <= 25; i++ {
		createTestPost(t, db, "alice", fmt.Sprintf("post %d", i))
	}

	tests := []struct {
		name      string
		opts      repository.ListOptions
		wantCount int
		wantFirst string
	}{
		{"first page", repository.ListOptions{Limit: 10, Offset: 0}, 10, "post 1"},
		{"second page", repository.ListOptions{Limit: 10, Offset: 10}, 10, "post 11"},
		{"last partial page", repository.ListOptions{Limit: 10, Offset: 20}, 5, "post 21"},
		{"past the end", repository.ListOptions{Limit: 10, Offset: 30}, 0, ""},
		{"negative offset clamps to zero", repository.ListOptions{Limit: 3, Offset: -5}, 3, "post 1"},
		{"zero limit returns nothing", repository.ListOptions{Limit: 0}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := db.ListPosts(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("ListPosts() error = %v", err)
			}
			if len(posts) != tt.wantCount {
				t.Fatalf("ListPosts() returned %d posts, want %d", len(posts), tt.wantCount)
			}
			if tt.wantCount > 0 && posts[0].Content != tt.wantFirst {
				t.Errorf("first post = %q, want %q", posts[0].Content, tt.wantFirst)
			}
		})
	}
}

func TestListByAuthors(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")
	createTestUser(t, db, "carol")

	createTestPost(t, db, "alice", "a1")
	createTestPost(t, db, "bob", "b1")
	createTestPost(t, db, "carol", "c1")
	createTestPost(t, db, "alice", "a2")

	posts, err := db.ListByAuthors(context.Background(), []string{"alice", "carol"})
	if err != nil {
		t.Fatalf("ListByAuthors() error = %v", err)
	}

	want := []string{"a1", "c1", "a2"}
	if len(posts) != len(want) {
		t.Fatalf("ListByAuthors() returned %d posts, want %d", len(posts), len(want))
	}
	for i, p := range posts {
		if p.Content != want[i] {
			t.Errorf("posts[%d] = %q, want %q", i, p.Content, want[i])
		}
	}
}

func TestListByAuthors_NoAuthors(t *testing.T) {
	db := newTestDB(t)

	posts, err := db.ListByAuthors(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListByAuthors() error = %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("ListByAuthors(nil) = %v, want empty non-nil slice", posts)
	}
}

func TestCountPostsAndByAuthor(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")
	createTestPost(t, db, "alice", "a1")
	createTestPost(t, db, "alice", "a2")
	createTestPost(t, db, "bob", "b1")

	total, err := db.CountPosts(context.Background())
	if err != nil {
		t.Fatalf("CountPosts() error = %v", err)
	}
	if total != 3 {
		t.Errorf("CountPosts() = %d, want 3", total)
	}

	n, err := db.CountByAuthor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CountByAuthor() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountByAuthor(alice) = %d, want 2", n)
	}
}

// =========================================================================
// SEARCH TESTS
// =========================================================================

func TestSearchPosts_CaseInsensitiveSubstring(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")
	createTestPost(t, db, "alice", "Leg day at the GYM")
	createTestPost(t, db, "alice", "rest day")
	createTestPost(t, db, "alice", "gymnastics later")

	posts, err := db.SearchPosts(context.Background(), "gym")
	if err != nil {
		t.Fatalf("SearchPosts() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("SearchPosts(gym) returned %d posts, want 2", len(posts))
	}
	if posts[0].Content != "Leg day at the GYM" {
		t.Errorf("posts[0] = %q, want insertion order", posts[0].Content)
	}
}

func TestSearchPosts_WildcardsAreLiteral(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")
	createTestPost(t, db, "alice", "100% effort")
	createTestPost(t, db, "alice", "no percent here")

	posts, err := db.SearchPosts(context.Background(), "%")
	if err != nil {
		t.Fatalf("SearchPosts() error = %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("SearchPosts(%%) returned %d posts, want 1", len(posts))
	}
}

func TestPostRank(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	var last *model.Post
	for i := 0; i < 12; i++ {
		last = createTestPost(t, db, "alice", fmt.Sprintf("p%d", i))
	}

	rank, err := db.PostRank(context.Background(), last.Seq)
	if err != nil {
		t.Fatalf("PostRank() error = %v", err)
	}
	if rank != 12 {
		t.Errorf("PostRank(last) = %d, want 12", rank)
	}
}
