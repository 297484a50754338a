// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package cache implements a generic charge-based LRU cache with reference
// counted handles.
//
// Values are pinned by handles. A value is released (via the cache's release
// function) only once it has been evicted from the cache and the last handle
// on it has been released. This makes the cache entry the lifetime anchor for
// buffers handed out to readers.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// ReleaseFn is called when a value is no longer used: it was evicted from the
// cache and there are no outstanding handles on it.
type ReleaseFn[V any] func(V)

// Cache is a sharded charge-based LRU cache keyed by string.
type Cache[V any] struct {
	shards  []shard[V]
	idAlloc atomic.Uint64
}

// New creates a Cache with the given total charge capacity and number of
// shards. numShards is rounded up to a power of two; a value <= 0 selects a
// default. releaseFn may be nil.
func New[V any](maxCharge int64, numShards int, releaseFn ReleaseFn[V]) *Cache[V] {
	if numShards <= 0 {
		numShards = 8
	}
	n := 1
	for n < numShards {
		n <<= 1
	}
	c := &Cache[V]{shards: make([]shard[V], n)}
	for i := range c.shards {
		c.shards[i].init((maxCharge+int64(n)-1)/int64(n), releaseFn)
	}
	return c
}

func (c *Cache[V]) getShard(key string) *shard[V] {
	return &c.shards[xxhash.Sum64String(key)&uint64(len(c.shards)-1)]
}

// Lookup returns a handle on the value cached under key, if any. The entry is
// moved to the front of its shard's LRU list.
func (c *Cache[V]) Lookup(key string) (Handle[V], bool) {
	return c.getShard(key).lookup(key)
}

// Insert adds a value to the cache under key with the given charge, replacing
// any existing entry. It returns a handle pinning the inserted value; the
// caller must Release it.
func (c *Cache[V]) Insert(key string, v V, charge int64) Handle[V] {
	return c.getShard(key).insert(key, v, charge)
}

// Evict removes the entry associated with key, if any. The value is released
// once its last outstanding handle is released.
func (c *Cache[V]) Evict(key string) {
	c.getShard(key).evictKey(key)
}

// Close evicts every entry. There must be no outstanding handles.
func (c *Cache[V]) Close() {
	for i := range c.shards {
		c.shards[i].close()
	}
}

// NewID returns a new unique id. Ids are used to build cache key prefixes
// that are unique per cached file.
func (c *Cache[V]) NewID() uint64 {
	return c.idAlloc.Add(1)
}

// Metrics holds aggregate counters for the cache.
type Metrics struct {
	Hits   int64
	Misses int64
	Count  int64
	Size   int64
}

// Metrics returns the cache's aggregate counters.
func (c *Cache[V]) Metrics() Metrics {
	var m Metrics
	for i := range c.shards {
		s := &c.shards[i]
		m.Hits += s.hits.Load()
		m.Misses += s.misses.Load()
		s.mu.Lock()
		m.Count += int64(len(s.m))
		m.Size += s.charge
		s.mu.Unlock()
	}
	return m
}

// Handle is a reference on a cached value. The value is guaranteed to stay
// alive until Release is called.
type Handle[V any] struct {
	s *shard[V]
	e *entry[V]
}

// Valid returns true if the handle references a value.
func (h Handle[V]) Valid() bool { return h.e != nil }

// Value returns the referenced value. It must not be used after Release.
func (h Handle[V]) Value() V { return h.e.v }

// Release releases the reference.
func (h Handle[V]) Release() {
	if h.e != nil {
		h.s.unref(h.e)
	}
}

type entry[V any] struct {
	key    string
	v      V
	charge int64
	// refs counts outstanding handles, plus one for cache residency.
	refs int64
	// resident is false once the entry has been evicted from the shard's map
	// and LRU list.
	resident   bool
	next, prev *entry[V]
}

// entryList is a doubly-linked circular list of *entry elements, derived from
// the stdlib container/list but customized to entry to avoid a separate
// allocation for every element.
type entryList[V any] struct {
	root entry[V]
}

func (l *entryList[V]) init() {
	l.root.next = &l.root
	l.root.prev = &l.root
}

func (l *entryList[V]) empty() bool { return l.root.next == &l.root }

func (l *entryList[V]) back() *entry[V] { return l.root.prev }

func (l *entryList[V]) insertAfter(e, at *entry[V]) {
	n := at.next
	at.next = e
	e.prev = at
	e.next = n
	n.prev = e
}

func (l *entryList[V]) remove(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
}

func (l *entryList[V]) pushFront(e *entry[V]) {
	l.insertAfter(e, &l.root)
}

func (l *entryList[V]) moveToFront(e *entry[V]) {
	if l.root.next == e {
		return
	}
	l.remove(e)
	l.insertAfter(e, &l.root)
}

type shard[V any] struct {
	maxCharge int64
	releaseFn ReleaseFn[V]

	hits   atomic.Int64
	misses atomic.Int64

	mu     sync.Mutex
	m      map[string]*entry[V]
	lru    entryList[V]
	charge int64
}

func (s *shard[V]) init(maxCharge int64, releaseFn ReleaseFn[V]) {
	s.maxCharge = maxCharge
	s.releaseFn = releaseFn
	s.m = make(map[string]*entry[V])
	s.lru.init()
}

func (s *shard[V]) lookup(key string) (Handle[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[key]
	if e == nil {
		s.misses.Add(1)
		return Handle[V]{}, false
	}
	s.hits.Add(1)
	s.lru.moveToFront(e)
	e.refs++
	return Handle[V]{s: s, e: e}, true
}

func (s *shard[V]) insert(key string, v V, charge int64) Handle[V] {
	var released []V
	s.mu.Lock()
	if old := s.m[key]; old != nil {
		if r, ok := s.evictEntry(old); ok {
			released = append(released, r)
		}
	}
	e := &entry[V]{key: key, v: v, charge: charge, refs: 2, resident: true}
	s.m[key] = e
	s.lru.pushFront(e)
	s.charge += charge
	for s.charge > s.maxCharge && !s.lru.empty() {
		tail := s.lru.back()
		if tail == e {
			break
		}
		if r, ok := s.evictEntry(tail); ok {
			released = append(released, r)
		}
	}
	s.mu.Unlock()
	// Run release callbacks outside the shard mutex: they may close files or
	// otherwise re-enter the cache.
	s.release(released)
	return Handle[V]{s: s, e: e}
}

func (s *shard[V]) evictKey(key string) {
	var released []V
	s.mu.Lock()
	if e := s.m[key]; e != nil {
		if r, ok := s.evictEntry(e); ok {
			released = append(released, r)
		}
	}
	s.mu.Unlock()
	s.release(released)
}

// evictEntry removes e from the shard's map and LRU list and drops the cache
// residency reference. It returns the value and true if the entry became
// unreferenced. s.mu must be held.
func (s *shard[V]) evictEntry(e *entry[V]) (V, bool) {
	delete(s.m, e.key)
	s.lru.remove(e)
	s.charge -= e.charge
	e.resident = false
	e.refs--
	if e.refs == 0 {
		return e.v, true
	}
	var zero V
	return zero, false
}

func (s *shard[V]) unref(e *entry[V]) {
	s.mu.Lock()
	e.refs--
	last := e.refs == 0 && !e.resident
	s.mu.Unlock()
	if last && s.releaseFn != nil {
		s.releaseFn(e.v)
	}
}

func (s *shard[V]) close() {
	var released []V
	s.mu.Lock()
	for !s.lru.empty() {
		if r, ok := s.evictEntry(s.lru.back()); ok {
			released = append(released, r)
		}
	}
	s.mu.Unlock()
	s.release(released)
}

func (s *shard[V]) release(values []V) {
	if s.releaseFn == nil {
		return
	}
	for _, v := range values {
		s.releaseFn(v)
	}
}
