// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shadercache caches compiled SPIR-V by WGSL source so that
// passes created per camera compile each program once per process.
package shadercache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	// shardCount must be a power of two.
	shardCount = 8
	shardMask  = shardCount - 1

	// DefaultCapacity is the per-shard capacity used when New gets <= 0.
	DefaultCapacity = 32
)

// Key identifies a shader source.
type Key uint64

// KeyOf hashes a WGSL source.
func KeyOf(source string) Key {
	return Key(xxhash.Sum64String(source))
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a sharded LRU of SPIR-V words. It is safe for concurrent use.
type Cache struct {
	shards   [shardCount]shard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard struct {
	mu      sync.Mutex
	entries map[Key]*list.Element
	lru     list.List
}

type entry struct {
	key   Key
	words []uint32
}

// New returns a cache holding up to capacity programs per shard.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{capacity: capacity}
	for i := range c.shards {
		c.shards[i].entries = make(map[Key]*list.Element)
	}
	return c
}

func (c *Cache) shard(k Key) *shard {
	return &c.shards[uint64(k)&shardMask]
}

// Get returns the words cached for k and marks them recently used.
func (c *Cache) Get(k Key) ([]uint32, bool) {
	s := c.shard(k)
	s.mu.Lock()
	el, ok := s.entries[k]
	if ok {
		s.lru.MoveToFront(el)
	}
	s.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return el.Value.(*entry).words, true
}

// Set stores words for k, evicting the least recently used entries of
// the shard when it is full. Callers must not modify words afterwards.
func (c *Cache) Set(k Key, words []uint32) {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[k]; ok {
		el.Value.(*entry).words = words
		s.lru.MoveToFront(el)
		return
	}
	for s.lru.Len() >= c.capacity {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry).key)
		c.evictions.Add(1)
	}
	s.entries[k] = s.lru.PushFront(&entry{key: k, words: words})
}

// GetOrCompile returns the cached words for source, compiling and
// caching them on a miss. Concurrent misses for the same source may
// compile more than once; the last result wins. Errors are not cached.
func (c *Cache) GetOrCompile(source string, compile func(string) ([]uint32, error)) ([]uint32, error) {
	k := KeyOf(source)
	if words, ok := c.Get(k); ok {
		return words, nil
	}
	words, err := compile(source)
	if err != nil {
		return nil, err
	}
	c.Set(k, words)
	return words, nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += s.lru.Len()
		s.mu.Unlock()
	}
	return n
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		clear(s.entries)
		s.lru.Init()
		s.mu.Unlock()
	}
}

// Stats returns the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
