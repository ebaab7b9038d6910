// Package cmap implements a fixed-capacity, bucket-striped concurrent map.
//
// Each bucket carries its own reader-writer lock so that reads against
// different buckets never contend, and two buckets are always independent.
// There is no resize: the bucket count is fixed at construction, matching
// the instrument and order-id indexes this package backs, both of which are
// read-mostly and never need to grow past the corpus's working set.
package cmap

import "sync"

// numBuckets is a prime close to 2000, matching the original engine's
// hashmap bucket count.
const numBuckets = 2003

type entry[K comparable, V any] struct {
	key   K
	value V
}

type bucket[K comparable, V any] struct {
	mu      sync.RWMutex
	entries []entry[K, V]
}

// Map is a striped concurrent associative container keyed by K.
type Map[K comparable, V any] struct {
	hash    func(K) uint64
	buckets [numBuckets]bucket[K, V]
}

// New builds a Map using hash to place keys into buckets. hash need not be
// cryptographically strong; it only needs to spread keys across buckets.
func New[K comparable, V any](hash func(K) uint64) *Map[K, V] {
	return &Map[K, V]{hash: hash}
}

func (m *Map[K, V]) bucketFor(key K) *bucket[K, V] {
	return &m.buckets[m.hash(key)%numBuckets]
}

// Get returns the value stored for key, if any.
func (m *Map[K, V]) Get(key K) (V, bool) {
	b := m.bucketFor(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Put inserts value for key if key is not already present. If key already
// exists, Put is a no-op (first-writer-wins) — this is the semantics the
// order-id index relies on, since order ids are asserted unique by callers.
func (m *Map[K, V]) Put(key K, value V) {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if e.key == key {
			return
		}
	}
	b.entries = append(b.entries, entry[K, V]{key: key, value: value})
}

// GetOrPut returns the existing value for key if present, otherwise stores
// and returns value. The second return is true if an existing value was
// returned, false if value was just inserted. Used by the engine to
// lazily create a book for an instrument the first time it is referenced.
func (m *Map[K, V]) GetOrPut(key K, value V) (V, bool) {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}
	b.entries = append(b.entries, entry[K, V]{key: key, value: value})
	return value, false
}

// Delete removes key from the map, if present.
func (m *Map[K, V]) Delete(key K) {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e.key == key {
			b.entries[i] = b.entries[len(b.entries)-1]
			b.entries = b.entries[:len(b.entries)-1]
			return
		}
	}
}
