// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 500

// Memory is a thread-safe, bounded LRU cache.
//
// Description:
//
//	Evicts the least recently used entry when full. Uses container/list for
//	O(1) access and eviction. Entries older than the TTL are treated as
//	misses and removed on access.
//
// Thread Safety: All methods are safe for concurrent use.
type Memory[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // Front = most recent

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type memoryEntry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// NewMemory creates a Memory cache holding up to capacity entries.
//
// Inputs:
//   - capacity: Maximum number of entries. Non-positive uses DefaultCapacity.
//   - ttl: Entry lifetime. Zero disables expiry.
//
// Outputs:
//   - *Memory[V]: The cache. Never nil.
//
// Example:
//
//	c := cache.NewMemory[Result](500, time.Hour)
//	_ = c.Put(key, res)
//	if v, ok := c.Get(key); ok {
//	    // use v
//	}
func NewMemory[V any](capacity int, ttl time.Duration) *Memory[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	entry := elem.Value.(*memoryEntry[V])
	if !entry.expires.IsZero() && now().After(entry.expires) {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return entry.value, true
}

// Put adds or replaces the value for key. Never fails.
func (c *Memory[V]) Put(key string, v V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = now().Add(c.ttl)
	}

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*memoryEntry[V])
		entry.value = v
		entry.expires = expires
		c.order.MoveToFront(elem)
		return nil
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(&memoryEntry[V]{key: key, value: v, expires: expires})
	c.items[key] = elem
	return nil
}

// Delete removes key. Returns true if it was present.
func (c *Memory[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// Purge removes every entry and resets the counters.
func (c *Memory[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// Len returns the number of entries, including expired ones not yet
// touched.
func (c *Memory[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the counters.
func (c *Memory[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		Capacity:  c.capacity,
	}
}

// Close is a no-op.
func (c *Memory[V]) Close() error { return nil }

// evictOldest removes the least recently used entry. Caller holds mu.
func (c *Memory[V]) evictOldest() {
	if elem := c.order.Back(); elem != nil {
		c.removeElement(elem)
		c.evictions.Add(1)
	}
}

// removeElement unlinks elem. Caller holds mu.
func (c *Memory[V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*memoryEntry[V]).key)
}
