// Package cache stores per-file import extraction results on disk so that
// unchanged files are not re-tokenized between runs.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/panbanda/depaudit/pkg/imports"
	"github.com/zeebo/blake3"
)

// Cache provides file-based caching of extracted declarations.
// A disabled Cache is valid and simply extracts every time.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// Entry is the on-disk form of one cached file.
type Entry struct {
	Hash         string                `json:"hash"`
	Timestamp    time.Time             `json:"timestamp"`
	Declarations []imports.Declaration `json:"declarations"`
}

// ResolveDir returns dir, joined to root when it is relative.
func ResolveDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// New creates a new cache instance. A ttlHours of zero disables expiry.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false, now: time.Now}, nil
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
		now:     time.Now,
	}, nil
}

// Enabled reports whether entries are read and written.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Lookup returns the declarations cached for key if they were extracted from
// identical content and have not expired.
func (c *Cache) Lookup(key string, content []byte) ([]imports.Declaration, bool) {
	if !c.Enabled() {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if entry.Hash != HashBytes(content) {
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	if entry.Declarations == nil {
		entry.Declarations = []imports.Declaration{}
	}
	return entry.Declarations, true
}

// Store records the declarations extracted from content under key.
func (c *Cache) Store(key string, content []byte, decls []imports.Declaration) error {
	if !c.Enabled() {
		return nil
	}

	entry := Entry{
		Hash:         HashBytes(content),
		Timestamp:    c.now(),
		Declarations: decls,
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// Extract returns the declarations of content, served from the cache when
// possible. Cache write failures are ignored; the result is always fresh or
// equal to a fresh extraction.
func (c *Cache) Extract(key string, content []byte) []imports.Declaration {
	if decls, ok := c.Lookup(key, content); ok {
		return decls
	}
	decls := imports.Extract(string(content))
	_ = c.Store(key, content, decls)
	return decls
}

// Invalidate removes a cache entry. A key with no entry is not an error.
func (c *Cache) Invalidate(key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := os.Remove(c.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Dir       string `json:"dir"`
	Entries   int    `json:"entries"`
	TotalSize int64  `json:"total_size"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{Dir: c.dir}
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == c.dir && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Entries++
		stats.TotalSize += info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
