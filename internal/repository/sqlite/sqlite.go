// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for
// single-server deployments and for tests (use ":memory:" for an in-memory DB).
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code, no C compiler needed, works everywhere Go works.
//
// TRANSACTIONS:
// Every repository method runs against a `querier`, either the *sql.DB pool or
// a *sql.Tx. DB.WithTx hands the callback a *DB whose querier is the
// transaction, so the same repository code works inside and outside a
// transaction and the caller decides the boundary.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/repository"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and hands out repositories bound to it.
// A DB returned to a WithTx callback is bound to that transaction instead.
type DB struct {
	conn *sql.DB
	tx   *sql.Tx
}

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/taskflow.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
//
// PRAGMAS IN THE DSN:
// PRAGMA statements are per-connection, and sql.DB is a pool of connections.
// Running `PRAGMA foreign_keys=ON` once would only configure whichever
// connection happened to serve it. Passing _pragma parameters in the DSN makes
// the driver apply them to every connection it opens, so ON DELETE CASCADE
// always works.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" gets its OWN empty database. Pin the pool
	// to a single connection so every query sees the same tables.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	// Ping verifies the connection actually works.
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

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// dsn appends the connection pragmas to dbPath.
//
//   - foreign_keys(1): enforce REFERENCES ... ON DELETE CASCADE
//   - journal_mode(WAL): readers don't block on a writer
//   - busy_timeout(5000): wait up to 5s for a write lock instead of failing
//   - _txlock=immediate: BEGIN IMMEDIATE takes the write lock up front
//
// IMMEDIATE TRANSACTIONS:
// WithTx callbacks read and then write. A DEFERRED transaction only asks for
// the write lock at its first write, and in WAL mode a reader whose snapshot
// went stale in the meantime gets SQLITE_BUSY straight away; busy_timeout does
// not apply to that upgrade. BEGIN IMMEDIATE waits for the lock (honouring
// busy_timeout) before reading anything, so concurrent writers queue up.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if !isMemory(dbPath) {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	return dbPath + sep + pragmas
}

// Close closes the database connection pool.
// Calling Close on a transaction-bound DB is a no-op; WithTx owns that lifecycle.
func (db *DB) Close() error {
	if db.tx != nil {
		return nil
	}
	return db.conn.Close()
}

// q returns the transaction when the DB is bound to one, the pool otherwise.
func (db *DB) q() querier {
	if db.tx != nil {
		return db.tx
	}
	return db.conn
}

// Users returns the user repository bound to this DB (or transaction).
func (db *DB) Users() repository.UserRepository {
	return &UserDB{q: db.q()}
}

// Tasks returns the task repository bound to this DB (or transaction).
func (db *DB) Tasks() repository.TaskRepository {
	return &TaskDB{q: db.q()}
}

// Sessions returns the session repository bound to this DB (or transaction).
func (db *DB) Sessions() repository.SessionRepository {
	return &SessionDB{q: db.q()}
}

// WithTx runs fn inside a transaction.
//
// COMMIT / ROLLBACK RULES:
//   - fn returns nil      → COMMIT
//   - fn returns an error → ROLLBACK, the error is returned unchanged
//   - fn panics           → ROLLBACK, then the panic continues
//
// A DB that is already inside a transaction simply calls fn with itself, so
// services can compose operations without opening nested transactions
// (SQLite doesn't support them anyway).
func (db *DB) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if db.tx != nil {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Store("beginning transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&DB{conn: db.conn, tx: tx}); err != nil {
		// The rollback error (if any) is less interesting than the one that
		// caused it; the caller gets the original.
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// TableNames lists the user tables in the database, sorted by name.
// Used by the verifydb command to confirm migrations ran.
func (db *DB) TableNames(ctx context.Context) ([]string, error) {
	rows, err := db.q().QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tables: %w", err)
	}
	return names, nil
}

// migrate creates the schema.
//
// For now, CREATE TABLE IF NOT EXISTS is safe: it won't error if the table exists.
// In production, you'd use golang-migrate which tracks which migrations have run.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// ON DELETE CASCADE: removing a user removes their tasks in the same statement.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date    DATETIME NOT NULL,
			is_done     BOOLEAN NOT NULL DEFAULT 0,
			slug        TEXT NOT NULL UNIQUE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating tasks table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	return nil
}
