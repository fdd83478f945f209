package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, age, profile_picture, github_id, created_at`

// CreateUser inserts a new password account. ID and CreatedAt are assigned here.
// A duplicate username surfaces as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Age,
		user.ProfilePicture,
		nullableGitHubID(user.GitHubID),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

func (db *DB) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR (email != '' AND email = ?)`,
		username, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user %s: %w", username, err)
	}
	return count > 0, nil
}

// UpsertGitHubUser inserts or refreshes the account linked to a GitHub ID.
//
// An existing account keeps its ID and username; only the email and picture
// are refreshed. A new account takes user.Username, which the caller derives
// from the GitHub login.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	existing, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, user.GitHubID))
	switch {
	case err == nil:
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, profile_picture = CASE WHEN profile_picture = '' THEN ? ELSE profile_picture END
			 WHERE id = ?`,
			user.Email, user.ProfilePicture, existing.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating github user %d: %w", user.GitHubID, err)
		}
		picture := existing.ProfilePicture
		if picture == "" {
			picture = user.ProfilePicture
		}
		*user = *existing
		user.ProfilePicture = picture
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return db.CreateUser(ctx, user)
	default:
		return fmt.Errorf("sqlite: looking up github user %d: %w", user.GitHubID, err)
	}
}

func (db *DB) UpdateProfilePicture(ctx context.Context, username, picture string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET profile_picture = ? WHERE username = ?`, picture, username)
	if err != nil {
		return fmt.Errorf("sqlite: updating picture for %s: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

// SearchUsers uses instr(lower(..)) rather than LIKE so that % and _ in the
// query are matched literally.
func (db *DB) SearchUsers(ctx context.Context, q string) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE instr(lower(username), lower(?)) > 0 ORDER BY username`, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := s.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Age,
		&u.ProfilePicture,
		&githubID,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}

// github_id is NULL for password accounts so the partial unique index only
// constrains linked accounts.
func nullableGitHubID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
