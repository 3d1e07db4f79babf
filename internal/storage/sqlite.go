package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps records in a single kv table.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
	now    func() time.Time
}

type sqliteConfig struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
}

// SQLiteOption customizes OpenSQLite.
type SQLiteOption func(*sqliteConfig)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 5000.
func WithBusyTimeout(ms int) SQLiteOption { return func(c *sqliteConfig) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: NORMAL.
func WithSynchronous(mode string) SQLiteOption {
	return func(c *sqliteConfig) { c.synchronous = mode }
}

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() SQLiteOption { return func(c *sqliteConfig) { c.mkdirAll = true } }

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a private in-memory database.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	cfg := sqliteConfig{busyTimeout: 5000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
		schema,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string, v any) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: get %q: %w", key, err)
	}
	if err := decode(data, v); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, v any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("storage: put %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

// UpdatedAt returns when key was last written.
func (s *SQLiteStore) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage: updated_at %q: %w", key, err)
	}
	return time.UnixMilli(ms), true, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
