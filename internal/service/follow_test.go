package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/repository/sqlite"
)

func newTestFollowService(t *testing.T) (*FollowService, *sqlite.DB, *metrics.Metrics) {
	t.Helper()
	db := newTestStore(t)
	m := metrics.New()
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	return NewFollowService(db, db, m, testLogger()), db, m
}

func TestToggle_FollowThenUnfollowRestoresState(t *testing.T) {
	svc, db, m := newTestFollowService(t)
	ctx := context.Background()

	res, err := svc.Toggle(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, res.IsFollowing)
	assert.False(t, res.IsFriends)
	assert.Equal(t, int64(1), res.FollowerCount, "bob's followers")
	assert.Equal(t, int64(1), res.FollowingCount, "alice's following")

	followers, err := db.Followers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)
	following, err := db.Following(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, following)

	res, err = svc.Toggle(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, res.IsFollowing)
	assert.Zero(t, res.FollowerCount)
	assert.Zero(t, res.FollowingCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FollowTogglesTotal.WithLabelValues("follow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FollowTogglesTotal.WithLabelValues("unfollow")))
}

func TestToggle_MutualFollowIsFriends(t *testing.T) {
	svc, _, _ := newTestFollowService(t)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "alice", "bob")
	require.NoError(t, err)
	res, err := svc.Toggle(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, res.IsFriends)

	friends, err := svc.IsFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, friends)

	// Unfollowing breaks the friendship on both sides.
	res, err = svc.Toggle(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, res.IsFriends)
	friends, err = svc.IsFriends(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, friends)
}

func TestToggle_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		actor    string
		target   string
		sentinel error
	}{
		{"anonymous", "", "bob", apperror.ErrUnauthorized},
		{"empty target", "alice", " ", apperror.ErrValidation},
		{"self follow", "alice", "alice", apperror.ErrValidation},
		{"unknown target", "alice", "carol", apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, _ := newTestFollowService(t)
			_, err := svc.Toggle(context.Background(), tt.actor, tt.target)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			n, err := db.CountFollowing(context.Background(), "alice")
			require.NoError(t, err)
			assert.Zero(t, n, "a rejected toggle must not write")
		})
	}
}

func TestIsFollowing_AnonymousAndSelf(t *testing.T) {
	svc, _, _ := newTestFollowService(t)
	ok, err := svc.IsFollowing(context.Background(), "", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsFollowing(context.Background(), "bob", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}
