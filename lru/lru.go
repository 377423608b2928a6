// Package lru implements a fixed-capacity cache that evicts the least
// recently used entry.
//
// Entries sit on a circular doubly-linked ring anchored by a sentinel
// bucket: the bucket before the sentinel is the newest, the one after it the
// oldest. A Cache is not safe for concurrent use.
package lru

import (
	"iter"

	"github.com/cockroachdb/errors"
)

var ErrInvalidLimit = errors.New("lru: limit must be at least 1")

type bucket[K comparable, V any] struct {
	key        K
	value      V
	prev, next *bucket[K, V]
}

// Cache is a bounded LRU cache. It must not be copied after New.
type Cache[K comparable, V any] struct {
	limit int
	items map[K]*bucket[K, V]
	root  bucket[K, V] // sentinel, never holds an entry
}

// New returns an empty cache holding at most limit entries.
func New[K comparable, V any](limit int) (*Cache[K, V], error) {
	if limit < 1 {
		return nil, errors.Wrapf(ErrInvalidLimit, "got limit %d", limit)
	}
	c := &Cache[K, V]{limit: limit}
	c.Clear()
	return c, nil
}

// link puts b at the newest end of the ring.
func (c *Cache[K, V]) link(b *bucket[K, V]) {
	b.prev = c.root.prev
	b.next = &c.root
	c.root.prev.next = b
	c.root.prev = b
}

func (c *Cache[K, V]) unlink(b *bucket[K, V]) {
	b.prev.next = b.next
	b.next.prev = b.prev
	b.prev, b.next = nil, nil
}

func (c *Cache[K, V]) touch(b *bucket[K, V]) {
	if c.root.prev != b {
		c.unlink(b)
		c.link(b)
	}
}

// Set stores value under key and marks it as the newest entry. It reports
// whether the oldest entry had to be evicted to make room.
func (c *Cache[K, V]) Set(key K, value V) (evicted bool) {
	if b, ok := c.items[key]; ok {
		b.value = value
		c.touch(b)
		return false
	}

	var b *bucket[K, V]
	if len(c.items) >= c.limit {
		// Recycle the oldest bucket.
		b = c.root.next
		c.unlink(b)
		delete(c.items, b.key)
		evicted = true
	} else {
		b = new(bucket[K, V])
	}
	b.key, b.value = key, value
	c.items[key] = b
	c.link(b)
	return evicted
}

// Get returns the value for key and marks it as the newest entry.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	b, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.touch(b)
	return b.value, true
}

// Peek returns the value for key without updating its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	b, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return b.value, true
}

// Has reports whether key is cached without updating its recency.
func (c *Cache[K, V]) Has(key K) bool {
	_, ok := c.items[key]
	return ok
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	b, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(b)
	delete(c.items, key)
	return true
}

// Oldest returns the least recently used key.
func (c *Cache[K, V]) Oldest() (K, bool) {
	if c.root.next == &c.root {
		var zero K
		return zero, false
	}
	return c.root.next.key, true
}

// Newest returns the most recently used key.
func (c *Cache[K, V]) Newest() (K, bool) {
	if c.root.prev == &c.root {
		var zero K
		return zero, false
	}
	return c.root.prev.key, true
}

// Clear removes all entries. The limit is kept.
func (c *Cache[K, V]) Clear() {
	c.root.prev = &c.root
	c.root.next = &c.root
	c.items = make(map[K]*bucket[K, V], c.limit)
}

func (c *Cache[K, V]) Len() int   { return len(c.items) }
func (c *Cache[K, V]) Limit() int { return c.limit }

// All returns an iterator over the entries from oldest to newest. It does
// not update recency. The cache must not be modified during iteration.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for b := c.root.next; b != &c.root; b = b.next {
			if !yield(b.key, b.value) {
				return
			}
		}
	}
}

// Keys returns an iterator over the keys from oldest to newest.
func (c *Cache[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range c.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns an iterator over the values from oldest to newest.
func (c *Cache[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range c.All() {
			if !yield(v) {
				return
			}
		}
	}
}
