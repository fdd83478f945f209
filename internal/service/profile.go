package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// ProfileView is a profile as seen by a particular viewer.
type ProfileView struct {
	Profile     model.Profile
	IsFollowing bool
	IsFriends   bool
}

type ProfileService struct {
	users     repository.UserRepository
	posts     repository.PostRepository
	follows   repository.FollowRepository
	processor ImageProcessor
	store     media.Store
	logger    *slog.Logger
}

func NewProfileService(
	users repository.UserRepository,
	posts repository.PostRepository,
	follows repository.FollowRepository,
	processor ImageProcessor,
	store media.Store,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:     users,
		posts:     posts,
		follows:   follows,
		processor: processor,
		store:     store,
		logger:    logger,
	}
}

// Get builds username's public profile. viewer may be empty for anonymous
// visitors, who follow nobody.
func (s *ProfileService) Get(ctx context.Context, username, viewer string) (*ProfileView, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	postCount, err := s.posts.CountByAuthor(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: counting posts of %s: %w", username, err)
	}
	followers, err := s.follows.Followers(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: followers of %s: %w", username, err)
	}
	following, err := s.follows.Following(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: following of %s: %w", username, err)
	}

	view := &ProfileView{
		Profile: model.Profile{
			Username:       user.Username,
			Age:            user.Age,
			PostCount:      postCount,
			Followers:      followers,
			Following:      following,
			ProfilePicture: user.Picture(),
		},
	}

	// The edge lists above already answer both questions for this viewer.
	view.IsFollowing = viewer != "" && slices.Contains(followers, viewer)
	view.IsFriends = view.IsFollowing && slices.Contains(following, viewer)
	return view, nil
}

// Counts backs the sidebar: how many users username follows and how many
// posts they wrote.
func (s *ProfileService) Counts(ctx context.Context, username string) (*model.Counts, error) {
	following, err := s.follows.CountFollowing(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: counting following of %s: %w", username, err)
	}
	posts, err := s.posts.CountByAuthor(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: counting posts of %s: %w", username, err)
	}
	return &model.Counts{Following: following, Posts: posts}, nil
}

// Picture returns the picture URL to show for username.
func (s *ProfileService) Picture(ctx context.Context, username string) (string, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return "", err
	}
	return user.Picture(), nil
}

// UpdatePicture replaces username's picture with the uploaded image.
//
// The new image is stored and recorded first; only then is the previous one
// deleted. A failure part-way leaves the old picture in place. The default
// picture and external avatars are never deleted (the media store ignores
// URLs it did not produce).
func (s *ProfileService) UpdatePicture(ctx context.Context, username string, upload io.Reader) (string, error) {
	if upload == nil {
		return "", apperror.ValidationFailed("image", "No file uploaded")
	}

	user, err := s.lookup(ctx, username)
	if err != nil {
		return "", err
	}

	data, err := s.processor.Process(upload)
	if err != nil {
		return "", fmt.Errorf("service/profile: processing picture: %w", err)
	}

	url, err := s.store.Save(ctx, media.NewKey(media.PicturePrefix), media.ContentType, data)
	if err != nil {
		return "", fmt.Errorf("service/profile: storing picture: %w", err)
	}

	if err := s.users.UpdateProfilePicture(ctx, user.Username, url); err != nil {
		if derr := s.store.Delete(ctx, url); derr != nil {
			s.logger.Warn("removing orphaned picture", slog.String("url", url), slog.String("error", derr.Error()))
		}
		return "", fmt.Errorf("service/profile: recording picture for %s: %w", username, err)
	}

	if old := user.ProfilePicture; old != "" && old != model.DefaultProfilePicture {
		if err := s.store.Delete(ctx, old); err != nil {
			s.logger.Warn("removing previous picture", slog.String("url", old), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("profile picture updated", slog.String("username", user.Username))
	return url, nil
}

func (s *ProfileService) lookup(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "Username is required")
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("service/profile: looking up %s: %w", username, err)
	}
	return user, nil
}
