package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// UserSummary is a search hit: enough to render a result row and link to
// the profile, nothing private.
type UserSummary struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

// SearchService runs case-insensitive substring searches.
type SearchService struct {
	users repository.UserRepository
	posts repository.PostRepository
}

func NewSearchService(users repository.UserRepository, posts repository.PostRepository) *SearchService {
	return &SearchService{users: users, posts: posts}
}

func (s *SearchService) Users(ctx context.Context, q string) ([]UserSummary, error) {
	q, err := keyword(q)
	if err != nil {
		return nil, err
	}

	users, err := s.users.SearchUsers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service/search: users %q: %w", q, err)
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, UserSummary{Username: users[i].Username, ProfilePicture: users[i].Picture()})
	}
	return out, nil
}

// Posts returns matching posts, each tagged with the global feed page it
// appears on so the client can jump there.
func (s *SearchService) Posts(ctx context.Context, q string) ([]model.Post, error) {
	q, err := keyword(q)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.SearchPosts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service/search: posts %q: %w", q, err)
	}

	for i := range posts {
		rank, err := s.posts.PostRank(ctx, posts[i].Seq)
		if err != nil {
			return nil, fmt.Errorf("service/search: ranking post %s: %w", posts[i].ID, err)
		}
		posts[i].Page = pageOf(rank)
	}
	return posts, nil
}

func keyword(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", apperror.ValidationFailed("q", "Search keyword is required")
	}
	return q, nil
}
