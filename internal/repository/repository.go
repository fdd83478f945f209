// Package repository declares the storage contracts used by the service
// layer. Two implementations live underneath: sqlite (the default, also
// used by tests) and mongo (the document store).
package repository

import (
	"context"

	"github.com/fitted/fitted/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// ExistsByUsernameOrEmail reports whether either key is already taken.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// UpsertGitHubUser creates or refreshes the account linked to user.GitHubID.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	UpdateProfilePicture(ctx context.Context, username, picture string) error
	// SearchUsers matches q as a case-insensitive substring of the username.
	SearchUsers(ctx context.Context, q string) ([]model.User, error)
}

type PostRepository interface {
	// CreatePost inserts the post and assigns ID, Seq and CreatedAt.
	CreatePost(ctx context.Context, post *model.Post) error
	CountPosts(ctx context.Context) (int64, error)
	// ListPosts returns posts in insertion (Seq) order.
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	ListByAuthors(ctx context.Context, usernames []string) ([]model.Post, error)
	CountByAuthor(ctx context.Context, username string) (int64, error)
	// SearchPosts matches q as a case-insensitive substring of the content.
	SearchPosts(ctx context.Context, q string) ([]model.Post, error)
	// PostRank is the 1-based position of the post with this Seq in the
	// global insertion order.
	PostRank(ctx context.Context, seq int64) (int64, error)
}

// FollowRepository stores follow edges. An edge (follower, followee) is a
// single record, so both users' lists are derived from the same data.
type FollowRepository interface {
	// ToggleFollow removes the edge if present and adds it otherwise, in one
	// atomic store operation. It returns whether the edge exists afterwards.
	ToggleFollow(ctx context.Context, follower, followee string) (bool, error)
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)
	Following(ctx context.Context, username string) ([]string, error)
	Followers(ctx context.Context, username string) ([]string, error)
	CountFollowing(ctx context.Context, username string) (int64, error)
	CountFollowers(ctx context.Context, username string) (int64, error)
}

// Store bundles every repository one backend provides.
type Store interface {
	UserRepository
	PostRepository
	FollowRepository
	Close() error
}
