// Package store caches per-method analysis results in SQLite.
//
// Entries are keyed by the method's identity and a hash of its code, so a
// recompiled method misses the cache instead of returning a stale summary.
// Values are opaque bytes; the analysis package stores CBOR.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested entry doesn't exist.
var ErrNotFound = errors.New("store: entry not found")

// Key identifies one cached method.
type Key struct {
	Class      string
	Method     string
	Descriptor string
	CodeHash   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s%s@%.12s", k.Class, k.Method, k.Descriptor, k.CodeHash)
}

// HashCode returns the hex SHA-256 of a code array, for Key.CodeHash.
func HashCode(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

// Cache is a SQLite-backed key/value table.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache at path. ":memory:" gives a private
// in-memory cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS summaries (
		class      TEXT NOT NULL,
		method     TEXT NOT NULL,
		descriptor TEXT NOT NULL,
		code_hash  TEXT NOT NULL,
		data       BLOB NOT NULL,
		PRIMARY KEY (class, method, descriptor, code_hash)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating table: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Path returns the database path given to Open.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the bytes stored under k, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, k Key) ([]byte, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT data FROM summaries WHERE class = ? AND method = ? AND descriptor = ? AND code_hash = ?",
		k.Class, k.Method, k.Descriptor, k.CodeHash,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		return nil, fmt.Errorf("store: querying %s: %w", k, err)
	}
	return data, nil
}

// Put stores data under k, replacing any previous value.
func (c *Cache) Put(ctx context.Context, k Key, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO summaries (class, method, descriptor, code_hash, data) VALUES (?, ?, ?, ?, ?)",
		k.Class, k.Method, k.Descriptor, k.CodeHash, data,
	)
	if err != nil {
		return fmt.Errorf("store: saving %s: %w", k, err)
	}
	return nil
}

// Delete removes every entry for a class.
func (c *Cache) Delete(ctx context.Context, class string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, "DELETE FROM summaries WHERE class = ?", class)
	if err != nil {
		return 0, fmt.Errorf("store: deleting %s: %w", class, err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting: %w", err)
	}
	return n, nil
}
