// Package sqlite implements the repository interfaces on SQLite.
//
// SQLite is embedded — a single file, no separate database server — which
// fits a single-node deployment of this backend. modernc.org/sqlite is a
// pure Go translation of SQLite, so there is no CGo and cross-compilation
// stays painless.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite".
	_ "modernc.org/sqlite"

	"github.com/RahulSriwastaw/backend/internal/apperror"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests) and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection, so a second pooled
	// connection would see an empty schema. Pin the pool to one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Force an immediate connection so a bad path surfaces here, not on
	// the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight — needed for a
	// web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer it wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the store is reachable, mapped to the service-level
// unavailable error so callers never see driver error text.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperror.Unavailable("database not reachable"), err)
	}
	return nil
}

func (db *DB) migrate() error {
	// users: the two natural keys are both UNIQUE. external_uid is NULL
	// for password-only accounts so the unique index ignores them; email
	// is COLLATE NOCASE so uniqueness is case-insensitive even if a row
	// sneaks past the lower-casing in the service layer.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                TEXT PRIMARY KEY,
			external_uid      TEXT UNIQUE,
			email             TEXT NOT NULL UNIQUE COLLATE NOCASE,
			username          TEXT NOT NULL UNIQUE,
			full_name         TEXT NOT NULL DEFAULT '',
			phone             TEXT NOT NULL DEFAULT '',
			profile_image     TEXT NOT NULL DEFAULT '',
			password_hash     TEXT,
			role              TEXT NOT NULL DEFAULT 'user',
			is_creator        INTEGER NOT NULL DEFAULT 0,
			is_verified       INTEGER NOT NULL DEFAULT 0,
			points_balance    INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL DEFAULT 'active',
			total_generations INTEGER NOT NULL DEFAULT 0,
			last_active       DATETIME NOT NULL,
			member_since      DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_last_active ON users(last_active);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS templates (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			demo_image   TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			creator_id   TEXT NOT NULL DEFAULT 'admin',
			creator_name TEXT NOT NULL DEFAULT '',
			is_free      INTEGER NOT NULL DEFAULT 1,
			points_cost  INTEGER NOT NULL DEFAULT 0,
			usage_count  INTEGER NOT NULL DEFAULT 0,
			status       TEXT NOT NULL DEFAULT 'pending',
			is_active    INTEGER NOT NULL DEFAULT 1,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_templates_status ON templates(status, is_active);
	`)
	if err != nil {
		return fmt.Errorf("creating templates table: %w", err)
	}

	return nil
}

// uniqueViolation translates a SQLite UNIQUE-constraint failure into the
// typed duplicate-key error, naming the violated column. Returns nil when
// err is not a uniqueness violation.
//
// The driver reports these as
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
// Extracting the column here is the only place driver error text is ever
// inspected; everything above this layer branches on error kind.
func uniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	marker := "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return nil
	}
	rest := msg[i+len(marker):]
	// rest looks like "users.email (2067)" — keep the column name only.
	if j := strings.IndexAny(rest, " ("); j > 0 {
		rest = rest[:j]
	}
	field := rest
	if k := strings.LastIndex(rest, "."); k >= 0 {
		field = rest[k+1:]
	}
	return apperror.DuplicateKey(field)
}

// nullString maps "" to SQL NULL so UNIQUE indexes skip absent values.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
