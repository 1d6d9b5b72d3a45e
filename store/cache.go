package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("tmbasic.store")

// ErrNotCached indicates that no artifact is stored under the hash.
var ErrNotCached = errors.New("artifact not cached")

// Cache stores compiled artifacts in SQLite keyed by source hash.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		hash TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the artifact stored under hash, or ErrNotCached.
func (c *Cache) Get(hash string) (*Artifact, error) {
	var data []byte
	err := c.db.QueryRow("SELECT data FROM artifacts WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	return UnmarshalArtifact(data)
}

// Put stores a under hash, replacing any previous entry.
func (c *Cache) Put(hash string, a *Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := MarshalArtifact(a)
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO artifacts (hash, data, created) VALUES (?, ?, ?)",
		hash, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	log.Debugf("cached artifact %s (%d bytes)", hash, len(data))
	return nil
}

// Prune deletes entries created before cutoff and returns how many were
// removed.
func (c *Cache) Prune(cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM artifacts WHERE created < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}
