// Package db provides SQLite persistence for Talon: stored accounts
// and per-account session bookkeeping. Live session state (unreads,
// caught-up records, the message cache) is deliberately not persisted;
// it is rebuilt from the next registration snapshot.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and brings the
// schema up to date.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.ensureSchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to initialize schema version: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		current = 0
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for v := current + 1; v <= schemaVersion; v++ {
		if err := db.migrate(ctx, v); err != nil {
			return fmt.Errorf("failed to migrate schema to version %d: %w", v, err)
		}
	}

	if current == 0 {
		_, err = db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	} else {
		_, err = db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, schemaVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

func (db *DB) migrate(ctx context.Context, version int) error {
	var statements []string
	switch version {
	case 1:
		statements = []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				server_url TEXT NOT NULL,
				email TEXT NOT NULL,
				api_key TEXT NOT NULL,
				server_version TEXT,
				capabilities TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (server_url, email)
			)`,
			`CREATE INDEX IF NOT EXISTS accounts_server_idx ON accounts(server_url)`,
		}
	default:
		return fmt.Errorf("unknown schema version %d", version)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Transaction runs fn inside a transaction, rolling back on error.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
