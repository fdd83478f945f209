package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitted/fitted/internal/repository/sqlite"
)

func seedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fitted.db")
	t.Setenv("STORE", "sqlite")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("MEDIA_BACKEND", "local")
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("LOG_FILE", filepath.Join(dir, "seed.log"))
	t.Setenv("JWT_SECRET", "seed-cmd-secret-0123456789")
	t.Setenv("BCRYPT_COST", "4")
	return dbPath
}

func TestRun_SeedsEverything(t *testing.T) {
	dbPath := seedEnv(t)

	code := run(context.Background(), []string{"all", "--users", "3", "--posts", "5", "--follows", "1", "--seed", "7"})
	require.Equal(t, 0, code)

	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	posts, err := db.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), posts)
}

func TestRun_ClosesStoreWhenCommandFails(t *testing.T) {
	seedEnv(t)

	// An empty store has no authors, so the posts command fails after setup.
	code := run(context.Background(), []string{"posts", "--posts", "1"})
	assert.Equal(t, 1, code)

	require.NotNil(t, store)
	_, err := store.SearchUsers(context.Background(), "")
	assert.ErrorContains(t, err, "database is closed")
}
