package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// newTestDB connects to MONGO_TEST_URI using a throwaway database that is
// dropped when the test ends. Tests skip when no server is configured.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set; skipping mongo integration test")
	}

	name := "fitted_test_" + xid.New().String()
	db, err := Connect(context.Background(), uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.client.Database(name).Drop(context.Background())
		db.Close()
	})
	return db
}

func TestContainsFold_QuotesMetacharacters(t *testing.T) {
	got := containsFold("a.b*")
	assert.Equal(t, `a\.b\*`, got["$regex"])
	assert.Equal(t, "i", got["$options"])
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := &model.User{Username: "alice", Email: "alice@example.com", Age: 30}
	require.NoError(t, db.CreateUser(ctx, alice))

	err := db.CreateUser(ctx, &model.User{Username: "alice", Email: "x@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	got, err := db.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = db.GetUserByUsername(ctx, "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	exists, err := db.ExistsByUsernameOrEmail(ctx, "other", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, db.UpdateProfilePicture(ctx, "alice", "/uploads/a.jpg"))
	found, err := db.SearchUsers(ctx, "LIC")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/uploads/a.jpg", found[0].ProfilePicture)
}

func TestPostsAndFollows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, db.CreateUser(ctx, &model.User{Username: name}))
	}

	var last model.Post
	for i := 0; i < 3; i++ {
		last = model.Post{Username: "bob", Content: "lifting"}
		require.NoError(t, db.CreatePost(ctx, &last))
	}
	assert.Equal(t, int64(3), last.Seq)

	posts, err := db.ListPosts(ctx, repository.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(2), posts[0].Seq)

	rank, err := db.PostRank(ctx, last.Seq)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	following, err := db.ToggleFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, following)

	followers, err := db.Followers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)

	following, err = db.ToggleFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, following)

	n, err := db.CountFollowing(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
