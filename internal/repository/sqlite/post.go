package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *DB stops satisfying the interface.
var _ repository.PostRepository = (*DB)(nil)

const postColumns = `seq, id, username, content, image_url, date, created_at`

// CreatePost inserts a new post.
//
// ID (xid) and CreatedAt are set here; Seq comes back from SQLite's
// AUTOINCREMENT via LastInsertId. The caller's post is updated in place.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now().UTC()
	if post.Date == "" {
		post.Date = post.CreatedAt.Format(model.DateLayout)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, username, content, image_url, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Username,
		post.Content,
		post.ImageURL,
		post.Date,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post seq: %w", err)
	}
	post.Seq = seq
	return nil
}

func (db *DB) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return n, nil
}

// ListPosts returns one slice of the global feed in insertion order.
//
// Unlike a general listing, no limit clamping happens here: the feed
// service owns the page size. A zero limit returns nothing.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	if opts.Limit <= 0 {
		return []model.Post{}, nil
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	return db.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY seq ASC LIMIT ? OFFSET ?`,
		opts.Limit, offset,
	)
}

// ListByAuthors returns every post written by any of the given users.
// An empty author list returns an empty result without touching the DB.
func (db *DB) ListByAuthors(ctx context.Context, usernames []string) ([]model.Post, error) {
	if len(usernames) == 0 {
		return []model.Post{}, nil
	}

	// database/sql has no slice expansion, so build "?, ?, ?" by hand. Only
	// placeholders are concatenated; values still go through the driver.
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(usernames)), ", ")
	args := make([]any, len(usernames))
	for i, u := range usernames {
		args[i] = u
	}

	return db.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE username IN (`+placeholders+`) ORDER BY seq ASC`,
		args...,
	)
}

func (db *DB) CountByAuthor(ctx context.Context, username string) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE username = ?`, username,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting posts for %s: %w", username, err)
	}
	return n, nil
}

func (db *DB) SearchPosts(ctx context.Context, q string) ([]model.Post, error) {
	return db.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE instr(lower(content), lower(?)) > 0 ORDER BY seq ASC`,
		q,
	)
}

// PostRank counts rows up to and including seq. AUTOINCREMENT may leave gaps
// (a rolled-back insert still burns a number), so seq itself is not a rank.
func (db *DB) PostRank(ctx context.Context, seq int64) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE seq <= ?`, seq,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: ranking post %d: %w", seq, err)
	}
	return n, nil
}

func (db *DB) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(
			&p.Seq, &p.ID, &p.Username, &p.Content,
			&p.ImageURL, &p.Date, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}
