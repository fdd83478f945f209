package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/repository/sqlite"
)

func newTestAuthService(t *testing.T) (*AuthService, *sqlite.DB) {
	t.Helper()
	db := newTestStore(t)
	tokens, err := auth.NewTokenService("test-secret-at-least-16", time.Hour)
	require.NoError(t, err)
	return NewAuthService(db, tokens, auth.NewPasswordService(bcrypt.MinCost), testLogger()), db
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   "squat#2026",
		RePassword: "squat#2026",
		Age:        "27",
	}
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_CreatesAccount(t *testing.T) {
	svc, db := newTestAuthService(t)

	user, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, 27, user.Age)
	assert.NotEqual(t, "squat#2026", user.PasswordHash, "password must be stored hashed")

	stored, err := db.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestRegister_ValidationMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
		want   []string
	}{
		{
			name:   "missing username",
			mutate: func(r *RegisterRequest) { r.Username = "  " },
			want:   []string{"Missing Username"},
		},
		{
			name:   "long username",
			mutate: func(r *RegisterRequest) { r.Username = "abcdefghijklmnopqrstu" },
			want:   []string{"Username must be 20 characters or less"},
		},
		{
			name:   "bad email",
			mutate: func(r *RegisterRequest) { r.Email = "alice@example" },
			want:   []string{"Invalid Email Format"},
		},
		{
			name: "missing password reports only that",
			mutate: func(r *RegisterRequest) {
				r.Password = ""
				r.RePassword = ""
			},
			want: []string{"Missing Password"},
		},
		{
			name: "missing password with a repeat",
			mutate: func(r *RegisterRequest) {
				r.Password = ""
			},
			want: []string{"Missing Password", "Passwords do not match"},
		},
		{
			name: "short password without digit or special",
			mutate: func(r *RegisterRequest) {
				r.Password = "abc"
				r.RePassword = "abc"
			},
			want: []string{
				"Password must be at least 8 characters",
				"Password must contain at least one number",
				"Password must contain at least one special character",
			},
		},
		{
			name: "long password",
			mutate: func(r *RegisterRequest) {
				r.Password = "abcdefghij1234567890!"
				r.RePassword = r.Password
			},
			want: []string{"Password must be at most 20 characters"},
		},
		{
			name: "no letter",
			mutate: func(r *RegisterRequest) {
				r.Password = "12345678!"
				r.RePassword = r.Password
			},
			want: []string{"Password must contain at least one letter"},
		},
		{
			name:   "mismatch",
			mutate: func(r *RegisterRequest) { r.RePassword = "squat#2025" },
			want:   []string{"Passwords do not match"},
		},
		{
			name:   "too young",
			mutate: func(r *RegisterRequest) { r.Age = "17" },
			want:   []string{"Age must be a number between 18 and 99"},
		},
		{
			name:   "leading zero age",
			mutate: func(r *RegisterRequest) { r.Age = "027" },
			want:   []string{"Age must be a number between 18 and 99"},
		},
		{
			name:   "age not a number",
			mutate: func(r *RegisterRequest) { r.Age = "old" },
			want:   []string{"Age must be a number between 18 and 99"},
		},
		{
			name: "everything at once",
			mutate: func(r *RegisterRequest) {
				*r = RegisterRequest{}
			},
			want: []string{
				"Missing Username",
				"Missing Email",
				"Missing Password",
				"Age must be a number between 18 and 99",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService(t)
			req := validRegistration()
			tt.mutate(&req)

			_, err := svc.Register(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.want, appErr.Messages)
		})
	}
}

func TestRegister_BoundaryAges(t *testing.T) {
	for _, age := range []string{"18", "99"} {
		t.Run(age, func(t *testing.T) {
			svc, _ := newTestAuthService(t)
			req := validRegistration()
			req.Age = age
			_, err := svc.Register(context.Background(), req)
			assert.NoError(t, err)
		})
	}
}

func TestRegister_DuplicateAccount(t *testing.T) {
	svc, _ := newTestAuthService(t)
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"same username", func(r *RegisterRequest) { r.Email = "other@example.com" }},
		{"same email", func(r *RegisterRequest) { r.Username = "bob" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration()
			tt.mutate(&req)
			_, err := svc.Register(context.Background(), req)
			assert.True(t, errors.Is(err, apperror.ErrConflict))
			assert.EqualError(t, err, "Account already exists")
		})
	}
}

func TestRegister_InvalidFormSkipsDuplicateCheck(t *testing.T) {
	svc, _ := newTestAuthService(t)
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Age = "12"
	_, err = svc.Register(context.Background(), req)
	assert.True(t, errors.Is(err, apperror.ErrValidation), "validation wins over conflict, got %v", err)
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	t.Run("success issues a token for the account", func(t *testing.T) {
		res, err := svc.Login(context.Background(), "alice", "squat#2026")
		require.NoError(t, err)
		assert.Equal(t, "alice", res.User.Username)

		id, err := svc.tokens.Validate(res.Token)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, id.UserID)
		assert.Equal(t, "alice", id.Username)
	})

	tests := []struct {
		name     string
		username string
		password string
		sentinel error
	}{
		{"missing password", "alice", "", apperror.ErrValidation},
		{"missing username", "", "squat#2026", apperror.ErrValidation},
		{"wrong password", "alice", "squat#2027", apperror.ErrUnauthorized},
		{"unknown user", "nobody", "squat#2026", apperror.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

// =========================================================================
// GITHUB LOGIN TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewThenExisting(t *testing.T) {
	svc, _ := newTestAuthService(t)
	gh := &auth.GitHubUser{ID: 42, Login: "octo", Email: "octo@example.com", AvatarURL: "https://avatars.example/42"}

	first, err := svc.LoginOrRegisterGitHub(context.Background(), gh)
	require.NoError(t, err)
	assert.Equal(t, "octo", first.User.Username)
	assert.NotEmpty(t, first.Token)

	gh.Email = "new@example.com"
	second, err := svc.LoginOrRegisterGitHub(context.Background(), gh)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestLoginOrRegisterGitHub_UsernameTakenGetsSuffix(t *testing.T) {
	svc, db := newTestAuthService(t)
	seedUser(t, db, "octo")

	res, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "octo"})
	require.NoError(t, err)
	assert.Equal(t, "octo_gh", res.User.Username)
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	svc, _ := newTestAuthService(t)
	_, err := svc.LoginOrRegisterGitHub(context.Background(), nil)
	assert.Error(t, err)
}

// =========================================================================
// CURRENT USER TESTS
// =========================================================================

func TestCurrentUser(t *testing.T) {
	svc, db := newTestAuthService(t)
	u := seedUser(t, db, "alice")

	got, err := svc.CurrentUser(context.Background(), auth.Identity{UserID: u.ID, Username: u.Username})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.CurrentUser(context.Background(), auth.Identity{})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = svc.CurrentUser(context.Background(), auth.Identity{UserID: "missing"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
