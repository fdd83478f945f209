package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fitted/fitted/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// ToggleFollow flips the follow edge follower → followee inside one
// transaction and reports whether the edge exists afterwards.
//
// The transaction begins IMMEDIATE, so it holds the write lock before the
// DELETE runs. The DELETE's row count answers "was following?", and two
// toggles on the same pair serialise.
func (db *DB) ToggleFollow(ctx context.Context, follower, followee string) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning follow toggle: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM follows WHERE follower = ? AND followee = ?`, follower, followee)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing follow %s→%s: %w", follower, followee, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	following := removed == 0
	if following {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO follows (follower, followee, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
			follower, followee)
		if err != nil {
			return false, fmt.Errorf("sqlite: adding follow %s→%s: %w", follower, followee, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing follow toggle: %w", err)
	}
	return following, nil
}

func (db *DB) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM follows WHERE follower = ? AND followee = ?`, follower, followee,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow %s→%s: %w", follower, followee, err)
	}
	return true, nil
}

// Following lists the usernames username follows, oldest edge first.
func (db *DB) Following(ctx context.Context, username string) ([]string, error) {
	return db.queryUsernames(ctx,
		`SELECT followee FROM follows WHERE follower = ? ORDER BY created_at, rowid`, username)
}

// Followers lists the usernames following username, oldest edge first.
func (db *DB) Followers(ctx context.Context, username string) ([]string, error) {
	return db.queryUsernames(ctx,
		`SELECT follower FROM follows WHERE followee = ? ORDER BY created_at, rowid`, username)
}

func (db *DB) CountFollowing(ctx context.Context, username string) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM follows WHERE follower = ?`, username)
}

func (db *DB) CountFollowers(ctx context.Context, username string) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM follows WHERE followee = ?`, username)
}

func (db *DB) count(ctx context.Context, query, username string) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, query, username).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting follows for %s: %w", username, err)
	}
	return n, nil
}

func (db *DB) queryUsernames(ctx context.Context, query, username string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follows for %s: %w", username, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follows: %w", err)
	}
	return names, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
