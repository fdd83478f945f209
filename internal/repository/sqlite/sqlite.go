// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE AS THE DEFAULT?
// SQLite is embedded: a single file, no server to run. It is the default
// backend for local runs and the backend every test uses (":memory:"). The
// document store in repository/mongo implements the same interfaces for
// deployments that already run MongoDB.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler is
// needed and cross-compilation keeps working.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/fitted/fitted/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// connPragmas run on every connection the pool opens. WAL lets readers
// proceed while a follow toggle or post insert holds the write lock, and
// busy_timeout makes concurrent writers wait for that lock.
var connPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/fitted.db"  → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests)
//
// IN-MEMORY AND THE CONNECTION POOL:
// Every new connection to ":memory:" opens a brand-new, empty database. The
// pool is therefore pinned to one connection for in-memory paths, otherwise
// a second connection would not see the tables created by the first.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends the per-connection pragmas to dbPath. Transactions start with
// BEGIN IMMEDIATE so a read-then-write transaction takes the write lock up
// front and waits on busy_timeout rather than failing on lock upgrade.
func dsn(dbPath string) string {
	params := url.Values{}
	for _, p := range connPragmas {
		params.Add("_pragma", p)
	}
	params.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + params.Encode()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates every table. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// Usernames compare case-sensitively; search is the only
	// case-insensitive path.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL DEFAULT '',
			password_hash   TEXT NOT NULL DEFAULT '',
			age             INTEGER NOT NULL DEFAULT 0,
			profile_picture TEXT NOT NULL DEFAULT '',
			github_id       INTEGER,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id) WHERE github_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// seq is the insertion sequence. AUTOINCREMENT guarantees it only ever
	// grows, so ORDER BY seq is the creation order.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			username   TEXT NOT NULL REFERENCES users(username),
			content    TEXT NOT NULL DEFAULT '',
			image_url  TEXT NOT NULL DEFAULT '',
			date       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_username ON posts(username);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	// One row per edge. The primary key makes a duplicate follow impossible,
	// and the followee index serves follower lists and counts.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS follows (
			follower   TEXT NOT NULL REFERENCES users(username),
			followee   TEXT NOT NULL REFERENCES users(username),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower, followee)
		);
		CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee);
	`)
	if err != nil {
		return fmt.Errorf("creating follows table: %w", err)
	}

	return nil
}
