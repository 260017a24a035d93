package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"FolioPulse/pkg/cache"

	_ "modernc.org/sqlite"
)

// SQLiteCache implements cache.Service on a single SQLite table so the
// app state survives restarts without an external server.
type SQLiteCache struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway store.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	c := &SQLiteCache{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_store(expires_at)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := cache.Encode(value)
	if err != nil {
		return err
	}

	now := c.now()
	var expiresAt int64
	if expiration > 0 {
		expiresAt = now.Add(expiration).UnixMilli()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		key, data, expiresAt, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_store WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("sqlite get %s: %w", key, err)
	}
	if expiresAt > 0 && c.now().UnixMilli() > expiresAt {
		_ = c.Delete(ctx, key)
		return cache.ErrCacheMiss
	}
	return cache.Decode(data, dest)
}

func (c *SQLiteCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	now := c.now().UnixMilli()
	for _, k := range keys {
		var n int
		err := c.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM kv_store WHERE key = ? AND (expires_at = 0 OR expires_at >= ?)`, k, now,
		).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("sqlite exists: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Purge removes expired rows.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.ExecContext(ctx, `DELETE FROM kv_store WHERE expires_at > 0 AND expires_at < ?`, c.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
