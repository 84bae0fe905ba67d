// file: internal/cache/cache.go
// version: 2.0.0
// guid: 43bf20ee-5514-4f7b-b63a-9199533ab94b

package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize bounds the number of entries kept per cache.
const DefaultSize = 1024

// Cache is a size-bounded generic TTL cache safe for concurrent use.
type Cache[T any] struct {
	lru *expirable.LRU[string, T]
}

// New creates a cache holding at most size entries, each expiring after ttl.
func New[T any](size int, ttl time.Duration) *Cache[T] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache[T]{lru: expirable.NewLRU[string, T](size, nil, ttl)}
}

// Get retrieves a value if it exists and hasn't expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	if c == nil {
		var zero T
		return zero, false
	}
	return c.lru.Get(key)
}

// Set stores a value with the cache TTL.
func (c *Cache[T]) Set(key string, value T) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

// Invalidate removes a single key.
func (c *Cache[T]) Invalidate(key string) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

// InvalidateAll removes all entries.
func (c *Cache[T]) InvalidateAll() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache[T]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
