// Package sqlite implements the repository interfaces on SQLite using the
// pure-Go modernc.org/sqlite driver (no cgo).
//
// All timestamps are stored as fixed-width UTC text (see timeLayout) so that
// SQL string comparison orders them chronologically. The monotonic
// github_synced_at update relies on that.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the connection pool and implements repository.UserRepository and
// repository.AccountRepository.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. ":memory:" gives a private in-memory database, which the tests use.
//
// Pragmas go through the DSN so that every pooled connection gets them, not
// just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
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

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start; columns added after the first release go through
// addColumnIfNotExists.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			email          TEXT NOT NULL DEFAULT '',
			email_verified INTEGER NOT NULL DEFAULT 0,
			password_hash  TEXT NOT NULL DEFAULT '',
			image          TEXT NOT NULL DEFAULT '',
			username       TEXT NOT NULL DEFAULT '',
			bio            TEXT NOT NULL DEFAULT '',
			location       TEXT NOT NULL DEFAULT '',
			website        TEXT NOT NULL DEFAULT '',
			is_public      INTEGER NOT NULL DEFAULT 1,
			anonymous_name TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email <> '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// No UNIQUE(user_id, provider_id): UpsertAccount enforces one account
	// per provider with a lookup inside a transaction.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider_id  TEXT NOT NULL,
			account_id   TEXT NOT NULL,
			access_token TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id, provider_id);
		CREATE INDEX IF NOT EXISTS idx_accounts_provider ON accounts(provider_id, account_id);
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}

	// GitHub integration columns came after the first release, so existing
	// databases get them through ALTER TABLE.
	for _, col := range githubColumns {
		if err := db.addColumnIfNotExists("users", col.name, col.definition); err != nil {
			return fmt.Errorf("adding %s to users: %w", col.name, err)
		}
	}
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_sync ON users(is_github_connected, github_sync_enabled);
	`)
	if err != nil {
		return fmt.Errorf("creating users sync index: %w", err)
	}

	return nil
}

var githubColumns = []struct{ name, definition string }{
	{"github_username", "TEXT NOT NULL DEFAULT ''"},
	{"is_github_connected", "INTEGER NOT NULL DEFAULT 0"},
	{"github_sync_enabled", "INTEGER NOT NULL DEFAULT 1"},
	{"github_synced_at", "TEXT"},
	{"github_streak", "INTEGER NOT NULL DEFAULT 0"},
	{"github_total_commits", "INTEGER NOT NULL DEFAULT 0"},
	{"github_today_commits", "INTEGER NOT NULL DEFAULT 0"},
	{"github_contribution_data", "TEXT NOT NULL DEFAULT '[]'"},
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
