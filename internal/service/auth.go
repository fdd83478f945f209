package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// AuthService handles registration, login, and the session identity.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → issue session JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  newValidator(),
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterRequest is the registration form. Age arrives as text because the
// browser form sends it that way; it is parsed only after validation.
type RegisterRequest struct {
	Username   string
	Email      string
	Password   string
	RePassword string
	Age        string
}

// Registration messages, shown to the user verbatim.
const (
	msgAccountExists = "Account already exists"
	msgBadLogin      = "Invalid credentials"
	msgLoginRequired = "Username and Password are required"
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	letterPattern  = regexp.MustCompile(`[A-Za-z]`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*]`)
	agePattern     = regexp.MustCompile(`^[1-9][0-9]?$`)
)

// newValidator registers the account rules that have no built-in tag.
func newValidator() *validator.Validate {
	v := validator.New()
	register := func(tag string, re *regexp.Regexp) {
		// Tags are fixed strings; a registration error is a programming error.
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	}
	register("fitted_email", emailPattern)
	register("fitted_letter", letterPattern)
	register("fitted_digit", digitPattern)
	register("fitted_special", specialPattern)

	if err := v.RegisterValidation("fitted_age", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !agePattern.MatchString(s) {
			return false
		}
		n, _ := strconv.Atoi(s)
		return n >= 18 && n <= 99
	}); err != nil {
		panic(err)
	}
	return v
}

// fieldRule is one validator tag and the message shown when it fails.
type fieldRule struct {
	tag     string
	message string
}

// checkField runs rules in order. A failing "required" stops the field:
// an empty password is "Missing Password", not also "too short".
func (s *AuthService) checkField(value string, rules ...fieldRule) []string {
	var msgs []string
	for _, r := range rules {
		if err := s.validate.Var(value, r.tag); err != nil {
			msgs = append(msgs, r.message)
			if r.tag == "required" {
				break
			}
		}
	}
	return msgs
}

// validateRegistration collects every problem with the form, so the user can
// fix them all in one round trip.
func (s *AuthService) validateRegistration(req RegisterRequest) []string {
	var msgs []string

	msgs = append(msgs, s.checkField(req.Username,
		fieldRule{"required", "Missing Username"},
		fieldRule{"max=20", "Username must be 20 characters or less"},
	)...)

	msgs = append(msgs, s.checkField(req.Email,
		fieldRule{"required", "Missing Email"},
		fieldRule{"fitted_email", "Invalid Email Format"},
	)...)

	passwordMsgs := s.checkField(req.Password,
		fieldRule{"required", "Missing Password"},
		fieldRule{"min=8", "Password must be at least 8 characters"},
		fieldRule{"max=20", "Password must be at most 20 characters"},
		fieldRule{"fitted_letter", "Password must contain at least one letter"},
		fieldRule{"fitted_digit", "Password must contain at least one number"},
		fieldRule{"fitted_special", "Password must contain at least one special character"},
	)
	msgs = append(msgs, passwordMsgs...)

	if err := s.validate.VarWithValue(req.RePassword, req.Password, "eqcsfield"); err != nil {
		msgs = append(msgs, "Passwords do not match")
	}

	msgs = append(msgs, s.checkField(req.Age,
		fieldRule{"fitted_age", "Age must be a number between 18 and 99"},
	)...)

	return msgs
}

// Register creates a password account.
//
// ORDER OF CHECKS:
//  1. Form validation (400 with every message)
//  2. Duplicate username or email (409)
//  3. Hash and insert
//
// The duplicate check runs after validation so an invalid form never costs
// a database round trip. The insert can still race with another request for
// the same username; the store's unique index turns that into the same 409.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Age = strings.TrimSpace(req.Age)

	if msgs := s.validateRegistration(req); len(msgs) > 0 {
		return nil, apperror.Invalid(msgs...)
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking existing account: %w", err)
	}
	if exists {
		return nil, apperror.ConflictMessage(msgAccountExists)
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	age, _ := strconv.Atoi(req.Age)
	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Age:          age,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMessage(msgAccountExists)
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", req.Username, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Login checks a username/password pair and issues a session token.
//
// Unknown usernames and wrong passwords return the same 401 message, so the
// endpoint cannot be used to discover which usernames exist. GitHub-only
// accounts have no password hash and always fail here.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", msgLoginRequired)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(msgBadLogin)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", username, err)
	}

	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized(msgBadLogin)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(msgBadLogin)
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", username, err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
//  1. Upsert the user keyed on the GitHub ID (create on first login)
//  2. Generate a session token
//
// A first login whose GitHub login is already taken by a password account
// retries once with a "_gh" suffix. A second clash is returned as a conflict.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:       ghUser.ID,
		Username:       ghUser.Login,
		Email:          ghUser.Email,
		ProfilePicture: ghUser.AvatarURL,
	}

	err := s.users.UpsertGitHubUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		user.Username = ghUser.Login + "_gh"
		err = s.users.UpsertGitHubUser(ctx, user)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMessage(msgAccountExists)
		}
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// CurrentUser loads the account behind a validated session.
func (s *AuthService) CurrentUser(ctx context.Context, id auth.Identity) (*model.User, error) {
	if id.UserID == "" {
		return nil, apperror.Unauthorized("Please log in")
	}
	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id.UserID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// TokenTTL is how long issued sessions last; handlers use it for the cookie.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
