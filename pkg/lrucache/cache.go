// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lrucache is a size-bounded, TTL-aware in-memory cache with
// in-flight computation coalescing: concurrent Get calls for the same
// missing key block on one another rather than each recomputing the
// value. Recency order is tracked with container/list instead of a
// hand-rolled doubly linked list, so eviction only ever touches
// *cacheEntry values, never raw next/prev pointers.
package lrucache

import (
	"container/list"
	"sync"
	"time"
)

// ComputeValue is the closure passed to Get to compute a value on a
// cache miss. It returns the value to store, the duration until it
// expires, and a size estimate used against the cache's memory bound.
type ComputeValue func() (value interface{}, ttl time.Duration, size int)

type cacheEntry struct {
	key   string
	value interface{}

	expiration            time.Time
	size                  int
	waitingForComputation int

	elem *list.Element
}

// Cache is a concurrency-safe LRU cache bounded by an approximate
// memory budget (the sum of each entry's reported size, not actual
// byte size). Zero value is not usable; construct with New.
type Cache struct {
	mutex                 sync.Mutex
	cond                  *sync.Cond
	maxmemory, usedmemory int
	entries               map[string]*cacheEntry
	order                 *list.List // front = most recently used
}

// New returns an empty cache bounded to maxmemory units of size, the
// same units ComputeValue's size return value is denominated in.
func New(maxmemory int) *Cache {
	c := &Cache{
		maxmemory: maxmemory,
		entries:   map[string]*cacheEntry{},
		order:     list.New(),
	}
	c.cond = sync.NewCond(&c.mutex)
	return c
}

// Get returns the cached value for key, or calls computeValue and
// caches its result. computeValue runs synchronously and must not call
// back into the same cache, or it will deadlock. If computeValue is
// nil, Get only consults the cache and returns nil on a miss. If
// another goroutine is already computing this key's value, Get waits
// for that computation instead of starting its own.
func (c *Cache) Get(key string, computeValue ComputeValue) interface{} {
	now := time.Now()

	c.mutex.Lock()
	if entry, ok := c.entries[key]; ok {
		// A zero expiration marks an entry whose computation hasn't
		// finished yet.
		for entry.expiration.IsZero() {
			entry.waitingForComputation++
			c.cond.Wait()
			entry.waitingForComputation--
		}

		if now.After(entry.expiration) {
			if !c.evictEntry(entry) {
				if entry.expiration.IsZero() {
					panic("lrucache: entry that should have been waited for could not be evicted")
				}
				c.mutex.Unlock()
				return entry.value
			}
		} else {
			if c.order.Front() != entry.elem {
				c.order.MoveToFront(entry.elem)
			}
			c.mutex.Unlock()
			return entry.value
		}
	}

	if computeValue == nil {
		c.mutex.Unlock()
		return nil
	}

	entry := &cacheEntry{key: key, waitingForComputation: 1}
	c.entries[key] = entry

	hasPanicked := true
	defer func() {
		if hasPanicked {
			c.mutex.Lock()
			delete(c.entries, key)
			entry.expiration = now
			entry.waitingForComputation--
		}
		c.mutex.Unlock()
	}()

	c.mutex.Unlock()
	value, ttl, size := computeValue()
	c.mutex.Lock()
	hasPanicked = false

	entry.value = value
	entry.expiration = now.Add(ttl)
	entry.size = size
	entry.waitingForComputation--

	// Only wake waiters if there actually are any.
	if entry.waitingForComputation > 0 {
		c.cond.Broadcast()
	}

	c.usedmemory += size
	c.insertFront(entry)

	// Evict from the back until back under budget. Entries still being
	// computed by another goroutine are skipped.
	candidate := c.order.Back()
	for c.usedmemory > c.maxmemory && candidate != nil {
		next := candidate.Prev()
		ce := candidate.Value.(*cacheEntry)
		if (ce.size > 0 || now.After(ce.expiration)) && ce.waitingForComputation == 0 {
			c.evictEntry(ce)
		}
		candidate = next
	}

	return value
}

// Put stores value under key directly, bypassing ComputeValue. If
// another goroutine is currently computing this key via Get, Put waits
// for that computation to finish before overwriting it.
func (c *Cache) Put(key string, value interface{}, size int, ttl time.Duration) {
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[key]; ok {
		for entry.expiration.IsZero() {
			entry.waitingForComputation++
			c.cond.Wait()
			entry.waitingForComputation--
		}

		c.usedmemory -= entry.size
		entry.expiration = now.Add(ttl)
		entry.size = size
		entry.value = value
		c.usedmemory += entry.size

		c.order.MoveToFront(entry.elem)
		return
	}

	entry := &cacheEntry{key: key, value: value, expiration: now.Add(ttl), size: size}
	c.usedmemory += size
	c.entries[key] = entry
	c.insertFront(entry)
}

// Del removes key from the cache, reporting whether it was present.
// A concurrent computation in progress for key is not interrupted: Del
// can return false and have the key reappear once that computation
// finishes, and it can return true for a key whose value had already
// expired.
func (c *Cache) Del(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	return c.evictEntry(entry)
}

// Keys calls f for every live entry, evicting expired ones along the
// way. The cache is held locked for the whole call, so f must not call
// back into the cache. Internal bookkeeping is sanity-checked against
// the list each call; a mismatch panics rather than silently drifting.
func (c *Cache) Keys(f func(key string, val interface{})) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	size := 0
	for key, e := range c.entries {
		if key != e.key {
			panic("lrucache: key mismatch")
		}
		if now.After(e.expiration) && c.evictEntry(e) {
			continue
		}
		size += e.size
		f(key, e.value)
	}

	if size != c.usedmemory {
		panic("lrucache: size accounting drifted from used memory")
	}
	if c.order.Len() != len(c.entries) {
		panic("lrucache: recency list out of sync with entry map")
	}
}

func (c *Cache) insertFront(e *cacheEntry) {
	e.elem = c.order.PushFront(e)
}

func (c *Cache) evictEntry(e *cacheEntry) bool {
	if e.waitingForComputation != 0 {
		return false
	}
	if e.elem != nil {
		c.order.Remove(e.elem)
	}
	c.usedmemory -= e.size
	delete(c.entries, e.key)
	return true
}
