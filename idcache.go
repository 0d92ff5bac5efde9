package watchfeed

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// CacheEntry is the persisted resolution outcome for one film slug. An entry
// with neither identifier records that the detail page was checked and
// nothing was found; that outcome is final and not re-probed.
type CacheEntry struct {
	ImdbID    string    `json:"imdb_id,omitempty"`
	TmdbID    string    `json:"tmdb_id,omitempty"`
	Kind      Kind      `json:"kind"`
	CheckedAt time.Time `json:"checked_at"`
}

// Cache is the slug-keyed identifier cache. It is loaded once at startup,
// mutated during enrichment, and flushed to disk in full at the end of a
// batch. One logical thread of execution owns it; there is no locking.
type Cache struct {
	path    string
	ttl     time.Duration
	entries map[string]CacheEntry
	dirty   bool
}

// OpenCache loads the cache document at path. A missing or corrupt document
// yields an empty cache rather than an error. A non-zero ttl expires entries
// older than the ttl on lookup; zero means entries never expire.
func OpenCache(path string, ttl time.Duration) *Cache {
	c := &Cache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]CacheEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: Failed to read identifier cache %s, starting empty: %v", path, err)
		}
		return c
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.Printf("WARN: Failed to parse identifier cache %s, starting empty: %v", path, err)
		c.entries = make(map[string]CacheEntry)
	}
	return c
}

// Lookup returns the cached outcome for a slug. Expired entries (when a ttl
// is configured) are reported as absent so the resolver probes them again.
func (c *Cache) Lookup(slug string) (CacheEntry, bool) {
	entry, ok := c.entries[slug]
	if !ok {
		return CacheEntry{}, false
	}
	if c.ttl > 0 && !entry.CheckedAt.IsZero() && time.Since(entry.CheckedAt) > c.ttl {
		return CacheEntry{}, false
	}
	return entry, true
}

// Store records the resolution outcome for a slug, including "nothing
// found". The entry's check time is stamped here.
func (c *Cache) Store(slug string, entry CacheEntry) {
	entry.CheckedAt = time.Now().UTC()
	c.entries[slug] = entry
	c.dirty = true
}

// Len returns the number of cached slugs.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Save rewrites the cache document in full. It is a no-op when nothing
// changed since load, or when the cache has no backing path.
func (c *Cache) Save() error {
	if !c.dirty || c.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identifier cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write identifier cache: %w", err)
	}

	c.dirty = false
	return nil
}
