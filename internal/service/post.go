package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/live"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// ImageProcessor turns an upload into the bytes that get stored.
// *media.Processor is the production implementation.
type ImageProcessor interface {
	Process(r io.Reader) ([]byte, error)
}

var _ ImageProcessor = (*media.Processor)(nil)

// NewPost is the input to PostService.Create. Image is nil when no file was
// uploaded; ImageURL is an already hosted image to attach instead.
type NewPost struct {
	Author   string
	Content  string
	ImageURL string
	Image    io.Reader
}

// PostService creates posts and announces them on the live channel.
type PostService struct {
	posts     repository.PostRepository
	processor ImageProcessor
	store     media.Store
	publisher live.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewPostService(
	posts repository.PostRepository,
	processor ImageProcessor,
	store media.Store,
	publisher live.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:     posts,
		processor: processor,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates and stores a post.
//
// STEPS:
//  1. Trim the text and enforce MaxPostLength (in characters, not bytes)
//  2. Require text or an image
//  3. Resize and store an uploaded image
//  4. Insert the post (the store assigns ID and Seq)
//  5. Publish a new_post event
//
// Every check runs before any write, so a rejected post leaves nothing
// behind. If the insert fails after the image was stored, the image is
// removed again. Step 5 is best-effort: a publish failure is logged and the
// post is still created.
func (s *PostService) Create(ctx context.Context, in NewPost) (*model.Post, error) {
	if in.Author == "" {
		return nil, apperror.Unauthorized("Please log in")
	}

	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) > model.MaxPostLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("Post content must be %d characters or less", model.MaxPostLength))
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL != "" && !validImageURL(imageURL) {
		return nil, apperror.ValidationFailed("imageURL", "Invalid image URL")
	}

	if content == "" && imageURL == "" && in.Image == nil {
		return nil, apperror.ValidationFailed("content", "Post must have text or an image")
	}

	var stored string
	if in.Image != nil {
		data, err := s.processor.Process(in.Image)
		if err != nil {
			return nil, fmt.Errorf("service/post: processing image: %w", err)
		}
		stored, err = s.store.Save(ctx, media.NewKey(media.PostsPrefix), media.ContentType, data)
		if err != nil {
			return nil, fmt.Errorf("service/post: storing image: %w", err)
		}
		imageURL = stored
	}

	now := s.now()
	post := &model.Post{
		Username:  in.Author,
		Content:   content,
		ImageURL:  imageURL,
		Date:      now.Format(model.DateLayout),
		CreatedAt: now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		if stored != "" {
			if derr := s.store.Delete(ctx, stored); derr != nil {
				s.logger.Warn("removing orphaned image", slog.String("url", stored), slog.String("error", derr.Error()))
			}
		}
		return nil, fmt.Errorf("service/post: creating post for %s: %w", in.Author, err)
	}
	s.metrics.PostCreated()

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("username", post.Username),
		slog.Bool("image", post.ImageURL != ""),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, live.NewPostEvent(*post)); err != nil {
			s.logger.Warn("publishing new post", slog.String("postID", post.ID), slog.String("error", err.Error()))
		}
	}
	return post, nil
}

// validImageURL accepts absolute http(s) URLs and paths on this server.
func validImageURL(raw string) bool {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
