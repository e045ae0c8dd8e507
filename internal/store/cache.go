package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultCacheTTL is how long a detail page is reused.
const DefaultCacheTTL = 30 * time.Minute

// DetailCache keeps fetched detail bodies for a TTL.
type DetailCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// DetailCache returns a cache over the store. A non-positive ttl uses
// DefaultCacheTTL.
func (s *Store) DetailCache(ttl time.Duration) *DetailCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DetailCache{db: s.db, ttl: ttl, now: time.Now}
}

// Get returns the cached body of key. Expired entries are misses.
func (c *DetailCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		body      []byte
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT body, expires_at FROM detail_cache WHERE key = ?", key,
	).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	if c.now().UnixNano() >= expiresAt {
		return nil, false, nil
	}
	return body, true, nil
}

// Set stores body under key.
func (c *DetailCache) Set(ctx context.Context, key string, body []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO detail_cache (key, body, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, expires_at = excluded.expires_at`,
		key, body, c.now().Add(c.ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes a cached body.
func (c *DetailCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM detail_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Prune removes expired entries and returns how many were removed.
func (c *DetailCache) Prune(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM detail_cache WHERE expires_at <= ?", c.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return result.RowsAffected()
}
