// Package cache holds values computed once per process in production mode.
//
// In production the site's files are treated as immutable for the lifetime
// of the process, so every key is computed at most once. Only Reset, used
// by the generator between watch rebuilds, drops entries.
//
// A disabled cache computes on every lookup. Caches are disabled in
// development, and a nil *Cache behaves as disabled.
package cache

import (
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache maps keys to previously computed values.
type Cache struct {
	enabled bool
	entries map[string]interface{}
	mutex   sync.RWMutex
	group   singleflight.Group

	// Statistics tracking (atomic for thread safety)
	hits   int64
	misses int64
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// New creates a cache. A disabled cache never stores anything.
func New(enabled bool) *Cache {
	return &Cache{
		enabled: enabled,
		entries: make(map[string]interface{}),
	}
}

// Enabled reports whether values are retained.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Get returns the value for key, calling compute if it is not cached.
// Concurrent callers for the same key share one computation. Failed
// computations are not stored.
func (c *Cache) Get(key string, compute func() (interface{}, error)) (interface{}, error) {
	if !c.Enabled() {
		return compute()
	}

	if value, ok := c.lookup(key); ok {
		atomic.AddInt64(&c.hits, 1)
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have stored the key between lookup and Do.
		if value, ok := c.lookup(key); ok {
			atomic.AddInt64(&c.hits, 1)
			return value, nil
		}
		atomic.AddInt64(&c.misses, 1)
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.mutex.Lock()
		c.entries[key] = value
		c.mutex.Unlock()
		return value, nil
	})
	return value, err
}

func (c *Cache) lookup(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

// Value is the typed form of Cache.Get.
func Value[T any](c *Cache, key string, compute func() (T, error)) (T, error) {
	v, err := c.Get(key, func() (interface{}, error) {
		return compute()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mutex.RLock()
	entries := len(c.entries)
	c.mutex.RUnlock()
	return Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: entries,
	}
}

// Reset drops every entry. Counters are kept.
func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mutex.Lock()
	c.entries = make(map[string]interface{})
	c.mutex.Unlock()
}

// PathInfo is the cached result of a stat call.
type PathInfo struct {
	Exists bool
	IsDir  bool
	Size   int64
}

// Stat reports whether path exists and whether it is a directory, caching
// the answer under "stat:<path>".
func (c *Cache) Stat(path string) PathInfo {
	info, _ := Value(c, "stat:"+path, func() (PathInfo, error) {
		fi, err := os.Stat(path)
		if err != nil {
			return PathInfo{Exists: !os.IsNotExist(err)}, nil
		}
		return PathInfo{Exists: true, IsDir: fi.IsDir(), Size: fi.Size()}, nil
	})
	return info
}

// ReadFile returns the bytes of path, cached under "file:<path>".
func (c *Cache) ReadFile(path string) ([]byte, error) {
	return Value(c, "file:"+path, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}
