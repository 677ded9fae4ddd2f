// Package cache provides the shared in-memory entity cache used by the
// level and song resolvers. Entries are keyed by entity identifier and
// bounded by a least-recently-used eviction policy so a busy process
// cannot grow without limit.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds a cache constructed with a non-positive size.
const DefaultCapacity = 1024

// Entities is a bounded identifier-to-entity cache. It is safe for
// concurrent use; two concurrent writers for the same identifier resolve
// last-writer-wins.
type Entities[V any] struct {
	lru *lru.Cache[int64, V]
}

// NewEntities creates an entity cache holding at most capacity entries.
func NewEntities[V any](capacity int) *Entities[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only errors on a non-positive size, normalized above.
	c, _ := lru.New[int64, V](capacity)
	return &Entities[V]{lru: c}
}

// Cache stores or overwrites the entry for id.
func (c *Entities[V]) Cache(id int64, entity V) {
	c.lru.Add(id, entity)
}

// Get returns the cached entity for id, reporting whether one was held.
func (c *Entities[V]) Get(id int64) (V, bool) {
	return c.lru.Get(id)
}

// Len reports the number of cached entries.
func (c *Entities[V]) Len() int {
	return c.lru.Len()
}
