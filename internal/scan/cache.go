package scan

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// HashCache remembers signatures of files that have already been hashed.
// Implementations must be safe for concurrent use.
type HashCache interface {
	// Lookup returns the cached signature for path if the file still has
	// the given size and modification time.
	Lookup(path string, size int64, mtime time.Time) ([]byte, bool)
	Store(path string, size int64, mtime time.Time, sig []byte)
}

// SQLCache is a HashCache backed by the file_cache table.
type SQLCache struct {
	db *sql.DB
}

// NewSQLCache returns a cache over db, which must have migrations applied.
func NewSQLCache(db *sql.DB) *SQLCache {
	return &SQLCache{db: db}
}

// Lookup implements HashCache. Query errors are logged and treated as a miss.
func (c *SQLCache) Lookup(path string, size int64, mtime time.Time) ([]byte, bool) {
	var sig []byte
	err := c.db.QueryRow(
		`SELECT signature FROM file_cache WHERE path = ? AND size = ? AND mtime = ?`,
		path, size, mtime.UnixNano(),
	).Scan(&sig)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("hash cache: lookup", "path", path, "error", err)
		}
		return nil, false
	}
	return sig, true
}

// Store implements HashCache. A stale row for path is replaced.
func (c *SQLCache) Store(path string, size int64, mtime time.Time, sig []byte) {
	_, err := c.db.Exec(`
		INSERT INTO file_cache (path, size, mtime, signature, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			signature = excluded.signature,
			cached_at = excluded.cached_at`,
		path, size, mtime.UnixNano(), sig, time.Now().Unix())
	if err != nil {
		slog.Warn("hash cache: store", "path", path, "error", err)
	}
}
