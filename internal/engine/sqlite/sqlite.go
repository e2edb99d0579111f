// Package sqlite implements the engine on a single-table SQLite database,
// the backend of choice for accounts that outgrow the filesystem tree but
// stay on one machine.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/msgvault/internal/engine"
	_ "github.com/mattn/go-sqlite3"
)

// Engine stores keys in the kv table of a SQLite database. It implements
// engine.Engine, engine.Scanner and engine.Stamper.
type Engine struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Scanner = (*Engine)(nil)
	_ engine.Stamper = (*Engine)(nil)
)

// Open opens (creating if needed) the database at path with WAL mode and a
// busy timeout, and brings the schema up to date.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Engine{db: db, now: time.Now}, nil
}

// Has implements engine.Engine.
func (e *Engine) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := e.db.QueryRowContext(ctx, `SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get implements engine.Engine.
func (e *Engine) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := e.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements engine.Engine with an upsert that refreshes the write
// stamp.
func (e *Engine) Set(ctx context.Context, key, value string) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, e.now().UnixNano())
	return err
}

// Delete implements engine.Engine.
func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	res, err := e.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys implements engine.Engine, streaming straight off the row cursor.
func (e *Engine) Keys(ctx context.Context, fn func(key string) bool) error {
	rows, err := e.db.QueryContext(ctx, `SELECT key FROM kv`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		if !fn(key) {
			return nil
		}
	}
	return rows.Err()
}

// Entries implements engine.Engine.
func (e *Engine) Entries(ctx context.Context, fn func(key, value string) bool) error {
	rows, err := e.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if !fn(key, value) {
			return nil
		}
	}
	return rows.Err()
}

// Clear implements engine.Engine.
func (e *Engine) Clear(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM kv`)
	return err
}

// Close implements engine.Engine.
func (e *Engine) Close() error { return e.db.Close() }

// Scan implements engine.Scanner. SQLite's GLOB operator speaks the same
// language as engine.Match ("*" crossing every byte, case sensitive) once
// its extra metacharacters are escaped.
func (e *Engine) Scan(ctx context.Context, pattern string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT key FROM kv WHERE key GLOB ?`, toGlob(pattern))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ModTime implements engine.Stamper from the row's updated_at stamp.
func (e *Engine) ModTime(ctx context.Context, key string) (time.Time, bool, error) {
	var ns int64
	err := e.db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = ?`, key).Scan(&ns)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, ns), true, nil
}
