// Package db owns storage connections and provisions the schema.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the SQLite handle shared by all stores.
type DB struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and checks that
// it answers. The schema is not touched; call CreateSchema.
func Open(ctx context.Context, path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// sqliteDSN appends the connection pragmas to path. A file: URI keeps its own
// query parameters.
func sqliteDSN(path string) string {
	switch {
	case strings.Contains(path, "?"):
		return path + "&" + pragmas
	case strings.HasPrefix(path, "file:"):
		return path + "?" + pragmas
	default:
		return filepath.Clean(path) + "?" + pragmas
	}
}

// SQL exposes the handle for the stores in internal/data.
func (d *DB) SQL() *sql.DB {
	return d.sqlDB
}

// CreateSchema creates the users, chats and messages tables and their
// indexes. Every statement is IF NOT EXISTS so it is safe on an initialized
// database.
func (d *DB) CreateSchema(ctx context.Context) error {
	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (d *DB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
