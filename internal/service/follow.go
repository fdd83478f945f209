package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// FollowService owns the follow graph rules.
//
// The edge itself lives in the store as a single record, so the service
// never writes "following" and "followers" separately. It checks who may
// follow whom, asks the store to toggle, then reads back the state the
// client needs to redraw the button and the counters.
type FollowService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewFollowService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FollowService {
	return &FollowService{users: users, follows: follows, metrics: m, logger: logger}
}

// Toggle follows target if actor does not follow it yet, and unfollows it
// otherwise.
//
// The returned counts are read after the toggle: FollowerCount belongs to
// the target, FollowingCount to the actor.
func (s *FollowService) Toggle(ctx context.Context, actor, target string) (*model.FollowResult, error) {
	target = strings.TrimSpace(target)
	if actor == "" {
		return nil, apperror.Unauthorized("Please log in")
	}
	if target == "" {
		return nil, apperror.ValidationFailed("username", "Username is required")
	}
	if target == actor {
		return nil, apperror.ValidationFailed("username", "You cannot follow yourself")
	}

	if _, err := s.users.GetUserByUsername(ctx, target); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("service/follow: looking up %s: %w", target, err)
	}

	following, err := s.follows.ToggleFollow(ctx, actor, target)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, fmt.Errorf("service/follow: toggling %s -> %s: %w", actor, target, err)
	}
	s.metrics.FollowToggled(following)

	result := &model.FollowResult{IsFollowing: following}

	if following {
		back, err := s.follows.IsFollowing(ctx, target, actor)
		if err != nil {
			return nil, fmt.Errorf("service/follow: checking %s -> %s: %w", target, actor, err)
		}
		result.IsFriends = back
	}

	if result.FollowerCount, err = s.follows.CountFollowers(ctx, target); err != nil {
		return nil, fmt.Errorf("service/follow: counting followers of %s: %w", target, err)
	}
	if result.FollowingCount, err = s.follows.CountFollowing(ctx, actor); err != nil {
		return nil, fmt.Errorf("service/follow: counting following of %s: %w", actor, err)
	}

	s.logger.Debug("follow toggled",
		slog.String("actor", actor),
		slog.String("target", target),
		slog.Bool("following", following),
	)
	return result, nil
}

// IsFollowing reports whether actor follows target. An anonymous actor
// follows nobody.
func (s *FollowService) IsFollowing(ctx context.Context, actor, target string) (bool, error) {
	if actor == "" || actor == target {
		return false, nil
	}
	ok, err := s.follows.IsFollowing(ctx, actor, target)
	if err != nil {
		return false, fmt.Errorf("service/follow: checking %s -> %s: %w", actor, target, err)
	}
	return ok, nil
}

// IsFriends reports a mutual follow between a and b.
func (s *FollowService) IsFriends(ctx context.Context, a, b string) (bool, error) {
	ab, err := s.IsFollowing(ctx, a, b)
	if err != nil || !ab {
		return false, err
	}
	return s.IsFollowing(ctx, b, a)
}

func userNotFound() *apperror.AppError {
	return &apperror.AppError{Err: apperror.ErrNotFound, Message: "User not found"}
}
