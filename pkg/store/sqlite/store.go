// Package sqlite provides the production metadata store backed by SQLite
// via the pure-Go modernc.org/sqlite driver.
//
// One database file holds the users, files, and shares tables. The schema
// is created on open, so pointing the store at an empty path bootstraps a
// working database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/marmos91/filedepot/pkg/depot"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements store.Store on a single SQLite database.
//
// Characteristics:
//   - Embedded: no external database service to run
//   - Durable: WAL journaling, synchronous=NORMAL
//   - Relational integrity: foreign keys enforce user→file→share
//     relationships, so constraint errors surface as typed StoreErrors
//
// Thread safety: the database handle pools connections and is safe for
// concurrent use. Writers serialize on SQLite's file lock; the busy
// timeout absorbs short contention.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// SQLiteStoreConfig contains configuration for the SQLite store.
type SQLiteStoreConfig struct {
	// Path is the database file location. ":memory:" opens a private
	// in-memory database (used by tests).
	Path string

	// BusyTimeoutMS is how long a blocked writer waits for the file
	// lock before failing (default 5000).
	BusyTimeoutMS int

	// MaxOpenConns caps the connection pool (default 4; in-memory
	// databases are always pinned to a single connection).
	MaxOpenConns int
}

// NewSQLiteStore opens (creating if necessary) the database and ensures
// the schema exists.
//
// Parameters:
//   - ctx: Context for cancellation during open and schema creation
//   - cfg: Store configuration
//
// Returns:
//   - *SQLiteStore: Ready-to-use store
//   - error: If the file cannot be opened or the schema cannot be applied
func NewSQLiteStore(ctx context.Context, cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 4
	}

	db, err := sql.Open("sqlite", dsn(cfg.Path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", cfg.Path, err)
	}

	// A private in-memory database exists per connection; pin the pool
	// to one so every query sees the same data.
	if cfg.Path == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)

	s := &SQLiteStore{db: db, path: cfg.Path}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// dsn builds the driver DSN with the pragmas every connection needs.
// Pragmas ride on the DSN so new pool connections get them too.
func dsn(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	username       TEXT NOT NULL DEFAULT '',
	password_hash  TEXT NOT NULL,
	role           TEXT NOT NULL,
	quota_bytes    INTEGER NOT NULL DEFAULT 0,
	active         INTEGER NOT NULL DEFAULT 1,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS files (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL REFERENCES users(id),
	filename       TEXT NOT NULL,
	folder         TEXT NOT NULL DEFAULT '/',
	size           INTEGER NOT NULL DEFAULT 0,
	content_type   TEXT NOT NULL DEFAULT '',
	md5            TEXT NOT NULL DEFAULT '',
	object_key     TEXT NOT NULL,
	download_count INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_owner   ON files(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_files_objkey  ON files(object_key);

CREATE TABLE IF NOT EXISTS shares (
	id             TEXT PRIMARY KEY,
	file_id        TEXT NOT NULL REFERENCES files(id),
	owner_id       TEXT NOT NULL,
	share_type     TEXT NOT NULL,
	code_hash      TEXT NOT NULL DEFAULT '',
	expires_at     INTEGER,
	access_count   INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_shares_file    ON shares(file_id);
CREATE INDEX IF NOT EXISTS idx_shares_owner          ON shares(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_shares_expires        ON shares(expires_at) WHERE expires_at IS NOT NULL;
`

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Ping verifies the database file is reachable and responding.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Error translation
// ============================================================================

// translateError maps driver errors to typed StoreErrors. Unique-index
// violations become ErrExists, foreign-key violations ErrConstraint;
// anything else passes through untouched.
func translateError(err error, key string) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &depot.StoreError{Code: depot.ErrExists, Message: "record already exists", Key: key}
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3.SQLITE_CONSTRAINT_TRIGGER:
			return &depot.StoreError{Code: depot.ErrConstraint, Message: "operation violates a relation", Key: key}
		}
	}
	return err
}

// notFound builds the uniform missing-record error.
func notFound(what, key string) error {
	return &depot.StoreError{Code: depot.ErrNotFound, Message: what + " not found", Key: key}
}
