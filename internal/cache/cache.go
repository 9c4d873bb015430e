// Package cache stores direct analysis captions in SQLite keyed by image
// digest, so re-running a book does not pay for the same image twice.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL is how long a cached caption is served
const DefaultTTL = 720 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS caption_cache (
	provider   TEXT NOT NULL,
	digest     TEXT NOT NULL,
	caption    TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	cached_at  INTEGER NOT NULL,
	PRIMARY KEY (provider, digest)
)`

// Entry is one cached caption
type Entry struct {
	Caption    string
	Confidence float64
	CachedAt   time.Time
}

// CacheDB manages the SQLite connection
type CacheDB struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	ttl  time.Duration
}

// Open opens (creating if needed) the cache database at dbPath
func Open(dbPath string) (*CacheDB, error) {
	if dbPath == "" {
		dbPath = "./alttext-cache.db"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), closeErr)
	}

	return &CacheDB{db: db, path: dbPath, ttl: DefaultTTL}, nil
}

// SetTTL changes how long entries are served. Zero keeps entries forever.
func (c *CacheDB) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Get returns the cached caption for provider and digest, if present and fresh
func (c *CacheDB) Get(provider, digest string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		e        Entry
		cachedAt int64
	)
	err := c.db.QueryRow(
		`SELECT caption, confidence, cached_at FROM caption_cache WHERE provider = ? AND digest = ?`,
		provider, digest,
	).Scan(&e.Caption, &e.Confidence, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}

	e.CachedAt = time.Unix(cachedAt, 0)
	if c.ttl > 0 && time.Since(e.CachedAt) > c.ttl {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores or replaces a caption
func (c *CacheDB) Put(provider, digest string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now()
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO caption_cache (provider, digest, caption, confidence, cached_at) VALUES (?, ?, ?, ?, ?)`,
		provider, digest, e.Caption, e.Confidence, e.CachedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Path returns the database file path
func (c *CacheDB) Path() string {
	return c.path
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
