package audiocache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxSizeBytes is the default eviction ceiling: 1 GiB.
const DefaultMaxSizeBytes int64 = 1 << 30

// DefaultMinAge is the minimum age an entry must reach before it is
// eligible for eviction. Zero means any entry may be evicted
// immediately; operators opt in to a grace period via Config.
const DefaultMinAge time.Duration = 0

// Stats is a point-in-time snapshot of cache occupancy and hit rate.
type Stats struct {
	EntryCount int64
	TotalBytes int64
	Hits       int64
	Misses     int64
}

// HitRate returns hits / (hits + misses), or 0 when no lookups occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the content-addressed on-disk audio cache. Keys
// are derived with DeriveKey; Put stores the audio bytes under dir and
// records metadata in SQLite; Get returns the bytes and bumps the
// entry's recency for LRU eviction.
type Cache struct {
	dir     string
	store   *store
	maxSize int64
	minAge  time.Duration

	mu           sync.Mutex
	hits, misses int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxSizeBytes overrides DefaultMaxSizeBytes.
func WithMaxSizeBytes(n int64) Option {
	return func(c *Cache) { c.maxSize = n }
}

// WithMinAge overrides DefaultMinAge.
func WithMinAge(d time.Duration) Option {
	return func(c *Cache) { c.minAge = d }
}

// Open opens (creating if necessary) the cache rooted at dir, with its
// metadata database at dir/cache.db and blobs at dir/<key>.
func Open(dir string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audiocache: cannot create cache directory: %w", err)
	}
	st, err := openStore(filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, err
	}
	c := &Cache{
		dir:     dir,
		store:   st,
		maxSize: DefaultMaxSizeBytes,
		minAge:  DefaultMinAge,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.store.close()
}

func (c *Cache) blobPath(key string) string {
	return filepath.Join(c.dir, key)
}

// Path returns the on-disk location a blob for key would occupy,
// whether or not the entry currently exists.
func (c *Cache) Path(key string) string {
	return c.blobPath(key)
}

// Contains reports whether key is currently cached, without affecting
// hit/miss statistics or recency.
func (c *Cache) Contains(ctx context.Context, key string) (bool, error) {
	_, err := c.store.get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// Get returns the cached audio bytes for key, recording a hit, or
// ErrNotFound (recording a miss) if absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	e, err := c.store.get(ctx, key)
	if err == ErrNotFound {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(e.Path)
	if err != nil {
		// Metadata exists but the blob is gone (e.g. manual cleanup);
		// treat as a miss and drop the stale row.
		_ = c.store.remove(ctx, key)
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	_ = c.store.touch(ctx, key, time.Now())
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return data, nil
}

// Put stores data under key, tagged with tags, then evicts older
// least-recently-used entries while the total exceeds max_size_bytes; the
// entry just written is never evicted. Puts of an already-cached key
// overwrite the blob and its size, format, tags and last-access time; its
// creation time and access count are kept.
func (c *Cache) Put(ctx context.Context, key string, data []byte, format string, tags []string) error {
	if key == "" {
		return ErrEmptyKey
	}

	path := c.blobPath(key)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("audiocache: write blob: %w", err)
	}

	now := time.Now()
	if err := c.store.put(ctx, entry{
		Key:          key,
		Path:         path,
		SizeBytes:    int64(len(data)),
		Format:       format,
		TagsJSON:     marshalTags(tags),
		CreatedAt:    now,
		LastAccessAt: now,
	}); err != nil {
		return err
	}

	return c.evictIfNeeded(ctx, key)
}

// evictIfNeeded removes least-recently-used entries until total size is
// within max_size_bytes, skipping keep and any entry younger than min_age.
// With the zero-value DefaultMinAge this never blocks eviction.
func (c *Cache) evictIfNeeded(ctx context.Context, keep string) error {
	if c.maxSize <= 0 {
		return nil
	}
	total, err := c.store.totalSize(ctx)
	if err != nil {
		return err
	}
	if total <= c.maxSize {
		return nil
	}

	lru, err := c.store.listLRU(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, e := range lru {
		if total <= c.maxSize {
			break
		}
		if e.Key == keep || now.Sub(e.LastAccessAt) < c.minAge {
			continue
		}
		if err := c.removeEntry(ctx, e); err != nil {
			return err
		}
		total -= e.SizeBytes
		slog.Debug("audiocache: evicted entry", "key", e.Key, "size_bytes", e.SizeBytes)
	}
	if total > c.maxSize {
		slog.Warn("audiocache: over size limit but no entry old enough to evict",
			"total_bytes", total, "max_bytes", c.maxSize, "min_age", c.minAge)
	}
	return nil
}

func (c *Cache) removeEntry(ctx context.Context, e entry) error {
	if err := c.store.remove(ctx, e.Key); err != nil && err != ErrNotFound {
		return err
	}
	if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("audiocache: remove blob: %w", err)
	}
	return nil
}

// Remove deletes a specific cache entry, or ErrNotFound if absent.
func (c *Cache) Remove(ctx context.Context, key string) error {
	e, err := c.store.get(ctx, key)
	if err != nil {
		return err
	}
	return c.removeEntry(ctx, *e)
}

// Clear deletes every cache entry and its blob.
func (c *Cache) Clear(ctx context.Context) error {
	all, err := c.store.clear(ctx)
	if err != nil {
		return err
	}
	for _, e := range all {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("audiocache: remove blob: %w", err)
		}
	}
	return nil
}

// ClearByTag deletes every entry carrying tag.
func (c *Cache) ClearByTag(ctx context.Context, tag string) (int, error) {
	all, err := c.store.listAll(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range all {
		if !hasTag(unmarshalTags(e.TagsJSON), tag) {
			continue
		}
		if err := c.removeEntry(ctx, e); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Stats returns the current occupancy and cumulative hit/miss counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	count, err := c.store.count(ctx)
	if err != nil {
		return Stats{}, err
	}
	total, err := c.store.totalSize(ctx)
	if err != nil {
		return Stats{}, err
	}
	c.mu.Lock()
	hits, misses := c.hits, c.misses
	c.mu.Unlock()
	return Stats{EntryCount: count, TotalBytes: total, Hits: hits, Misses: misses}, nil
}
