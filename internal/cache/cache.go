// Package cache holds produced response bodies keyed by canonical file path.
//
// The cache is the single source of truth for "has this path been served".
// Entries are never expired by time; they leave the cache only through
// Invalidate or Clear. Concurrent misses for the same path share one producer
// call, and a producer that finishes after its path was invalidated hands its
// result to its waiting callers without storing it.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Producer computes the content for a path on a cache miss.
type Producer func(ctx context.Context, path string) ([]byte, error)

// Entry is a cached response body.
type Entry struct {
	Content  []byte
	Digest   uint64
	StoredAt time.Time
}

// NewEntry builds an entry for content, computing its digest.
func NewEntry(content []byte) Entry {
	return Entry{
		Content:  content,
		Digest:   xxhash.Sum64(content),
		StoredAt: time.Now(),
	}
}

// ETag returns the strong HTTP entity tag for the entry.
func (e Entry) ETag() string {
	return fmt.Sprintf(`"%016x"`, e.Digest)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Stores        int64
	Invalidations int64
	SharedCompute int64
	Entries       int
}

// ContentCache maps canonical paths to produced content.
type ContentCache struct {
	mutex   sync.RWMutex
	entries map[string]Entry
	// generations is bumped per path by Invalidate while a compute for the
	// path is in flight; epoch is bumped by Clear. A compute only stores its
	// result when neither moved while it ran. Both generations and inflight
	// hold keys only while computes run.
	generations map[string]uint64
	inflight    map[string]int
	epoch       uint64

	deps *dependencyIndex

	group singleflight.Group

	hits          int64
	misses        int64
	stores        int64
	invalidations int64
	shared        int64
}

// New creates an empty cache.
func New() *ContentCache {
	return &ContentCache{
		entries:     make(map[string]Entry),
		generations: make(map[string]uint64),
		inflight:    make(map[string]int),
		deps:        newDependencyIndex(),
	}
}

// GetOrCompute returns the cached entry for path, or runs producer, stores its
// result and returns it. Producer errors are returned and nothing is stored.
//
// The producer runs detached from ctx's cancellation so that one caller
// going away does not fail the others sharing the compute; ctx still bounds
// how long this caller waits.
func (c *ContentCache) GetOrCompute(ctx context.Context, path string, producer Producer) (Entry, error) {
	c.mutex.RLock()
	entry, ok := c.entries[path]
	c.mutex.RUnlock()
	if ok {
		atomic.AddInt64(&c.hits, 1)
		return entry, nil
	}
	atomic.AddInt64(&c.misses, 1)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (interface{}, error) {
		return c.compute(detached, path, producer)
	})

	select {
	case res := <-ch:
		if res.Shared {
			atomic.AddInt64(&c.shared, 1)
		}
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

func (c *ContentCache) compute(ctx context.Context, path string, producer Producer) (Entry, error) {
	c.mutex.Lock()
	if entry, ok := c.entries[path]; ok {
		c.mutex.Unlock()
		return entry, nil
	}
	c.inflight[path]++
	gen, epoch := c.generations[path], c.epoch
	c.mutex.Unlock()

	content, err := producer(ctx, path)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	current := c.generations[path] == gen && c.epoch == epoch
	if c.inflight[path]--; c.inflight[path] == 0 {
		delete(c.inflight, path)
		delete(c.generations, path)
	}
	if err != nil {
		return Entry{}, err
	}
	entry := NewEntry(content)
	if current {
		c.entries[path] = entry
		atomic.AddInt64(&c.stores, 1)
	}
	return entry, nil
}

// Get returns the entry for path without computing it.
func (c *ContentCache) Get(path string) (Entry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, ok := c.entries[path]
	return entry, ok
}

// Contains reports whether path has a valid entry.
func (c *ContentCache) Contains(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Invalidate removes the entry for path and reports whether one existed.
// Any compute for path still in flight will not be stored.
func (c *ContentCache) Invalidate(path string) bool {
	c.mutex.Lock()
	_, existed := c.entries[path]
	delete(c.entries, path)
	if c.inflight[path] > 0 {
		c.generations[path]++
	}
	c.mutex.Unlock()

	c.group.Forget(path)
	if existed {
		atomic.AddInt64(&c.invalidations, 1)
	}
	return existed
}

// Clear removes every entry and every dependency link.
func (c *ContentCache) Clear() {
	c.mutex.Lock()
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	c.epoch++
	c.mutex.Unlock()
	c.deps.clear()

	atomic.AddInt64(&c.invalidations, int64(n))
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *ContentCache) Stats() Stats {
	return Stats{
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Stores:        atomic.LoadInt64(&c.stores),
		Invalidations: atomic.LoadInt64(&c.invalidations),
		SharedCompute: atomic.LoadInt64(&c.shared),
		Entries:       c.Len(),
	}
}
