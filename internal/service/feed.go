package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// FeedService slices posts into pages.
//
// WHY PAGE ON Seq?
// Two posts can share a CreatedAt down to the millisecond. The store
// assigns every post a strictly increasing Seq on insert, and every list
// here is ordered by it, so page N always contains the same posts no
// matter how often it is requested.
type FeedService struct {
	posts   repository.PostRepository
	follows repository.FollowRepository
}

func NewFeedService(posts repository.PostRepository, follows repository.FollowRepository) *FeedService {
	return &FeedService{posts: posts, follows: follows}
}

// ParsePage turns the raw ?page= value into a page number. Anything missing,
// unparsable, or below 1 means the first page.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Page returns one page of the global feed.
//
// A page past the end is not an error: it comes back empty, with the real
// TotalPages so the client can jump back.
func (s *FeedService) Page(ctx context.Context, page int) (*model.Page, error) {
	if page < 1 {
		page = 1
	}

	count, err := s.posts.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/feed: counting posts: %w", err)
	}

	result := &model.Page{
		Posts:       []model.Post{},
		TotalPages:  totalPages(count),
		CurrentPage: page,
	}
	if page > result.TotalPages {
		return result, nil
	}

	posts, err := s.posts.ListPosts(ctx, repository.ListOptions{
		Limit:  model.PageSize,
		Offset: (page - 1) * model.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("service/feed: listing page %d: %w", page, err)
	}
	result.Posts = posts
	return result, nil
}

// Following returns every post by the users actor follows, as one page.
func (s *FeedService) Following(ctx context.Context, actor string) (*model.Page, error) {
	followed, err := s.follows.Following(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("service/feed: following of %s: %w", actor, err)
	}

	result := &model.Page{Posts: []model.Post{}, CurrentPage: 1}
	if len(followed) == 0 {
		return result, nil
	}

	posts, err := s.posts.ListByAuthors(ctx, followed)
	if err != nil {
		return nil, fmt.Errorf("service/feed: posts by followed users of %s: %w", actor, err)
	}
	result.Posts = posts
	result.TotalPages = 1
	return result, nil
}

// ByAuthor returns every post written by username.
func (s *FeedService) ByAuthor(ctx context.Context, username string) ([]model.Post, error) {
	posts, err := s.posts.ListByAuthors(ctx, []string{username})
	if err != nil {
		return nil, fmt.Errorf("service/feed: posts by %s: %w", username, err)
	}
	return posts, nil
}
