// Package seed fills a store with fake accounts, posts, and follow edges for
// local development. Everything goes through the service layer, so seeded
// data obeys the same validation as data created over HTTP.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
	"github.com/fitted/fitted/internal/service"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Fitted123!"

// Registration limits the generated values must stay inside.
const (
	maxUsernameLength = 20
	minAge            = 18
	maxAge            = 99
)

var usernameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Seeder creates fake data through the services.
type Seeder struct {
	auth    *service.AuthService
	posts   *service.PostService
	follows *service.FollowService
	users   repository.UserRepository
	logger  *slog.Logger
}

// NewSeeder seeds gofakeit's global source. Pass 0 for a random seed.
func NewSeeder(
	auth *service.AuthService,
	posts *service.PostService,
	follows *service.FollowService,
	users repository.UserRepository,
	seed int64,
	logger *slog.Logger,
) *Seeder {
	_ = gofakeit.Seed(seed)
	return &Seeder{auth: auth, posts: posts, follows: follows, users: users, logger: logger}
}

// Users registers count new accounts and returns their usernames. Generated
// names that are already taken are skipped and redrawn.
func (s *Seeder) Users(ctx context.Context, count int) ([]string, error) {
	created := make([]string, 0, count)
	for attempts := 0; len(created) < count; attempts++ {
		if attempts >= count*5 {
			return created, fmt.Errorf("gave up after %d attempts with %d of %d users created", attempts, len(created), count)
		}

		username := fakeUsername()
		_, err := s.auth.Register(ctx, service.RegisterRequest{
			Username:   username,
			Email:      gofakeit.Email(),
			Password:   DefaultPassword,
			RePassword: DefaultPassword,
			Age:        strconv.Itoa(gofakeit.Number(minAge, maxAge)),
		})
		if errors.Is(err, apperror.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("registering %q: %w", username, err)
		}
		created = append(created, username)
	}

	s.logger.Info("seeded users", slog.Int("count", len(created)))
	return created, nil
}

// Posts writes count text posts, each by a random author from authors.
func (s *Seeder) Posts(ctx context.Context, authors []string, count int) error {
	if len(authors) == 0 {
		return errors.New("no users to author posts; seed users first")
	}

	for i := 0; i < count; i++ {
		author := authors[gofakeit.Number(0, len(authors)-1)]
		if _, err := s.posts.Create(ctx, service.NewPost{
			Author:  author,
			Content: fakeContent(),
		}); err != nil {
			return fmt.Errorf("creating post %d for %q: %w", i+1, author, err)
		}
	}

	s.logger.Info("seeded posts", slog.Int("count", count))
	return nil
}

// Follows makes every user follow up to perUser others. Existing edges are
// left alone, since toggling them would unfollow.
func (s *Seeder) Follows(ctx context.Context, usernames []string, perUser int) (int, error) {
	if len(usernames) < 2 {
		return 0, nil
	}

	created := 0
	for _, actor := range usernames {
		for j := 0; j < perUser; j++ {
			target := usernames[gofakeit.Number(0, len(usernames)-1)]
			if target == actor {
				continue
			}
			already, err := s.follows.IsFollowing(ctx, actor, target)
			if err != nil {
				return created, err
			}
			if already {
				continue
			}
			if _, err := s.follows.Toggle(ctx, actor, target); err != nil {
				return created, fmt.Errorf("%q following %q: %w", actor, target, err)
			}
			created++
		}
	}

	s.logger.Info("seeded follows", slog.Int("count", created))
	return created, nil
}

// ExistingUsernames lists every account in the store.
func (s *Seeder) ExistingUsernames(ctx context.Context) ([]string, error) {
	// An empty substring matches every username.
	users, err := s.users.SearchUsers(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	return names, nil
}

func fakeUsername() string {
	name := usernameChars.ReplaceAllString(gofakeit.Username(), "")
	if name == "" {
		name = "user" + strconv.Itoa(gofakeit.Number(1000, 9999))
	}
	if len(name) > maxUsernameLength {
		name = name[:maxUsernameLength]
	}
	return name
}

func fakeContent() string {
	content := gofakeit.HipsterSentence()
	if r := []rune(content); len(r) > model.MaxPostLength {
		content = string(r[:model.MaxPostLength])
	}
	return content
}
