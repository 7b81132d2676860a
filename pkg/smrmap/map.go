// Package smrmap is the public surface of the reclamation core: a
// lock-free hash table of sorted singly linked lists (L2), reclaiming
// memory through a Hyaline-style engine (L1) over blocks sourced from a
// pluggable allocator (L0). See SPEC_FULL.md for the full design.
//
// Map wraps internal/bucketlist.List the way the teacher's pkg/cowbtree
// wraps its unsafe.Pointer-based tree internals behind a small, typed,
// sentinel-error public API (pkg/cowbtree/cowbtree.go).
package smrmap

import (
	"hyaline/internal/alloc"
	"hyaline/internal/bucketlist"
)

// Ordered re-exports the key constraint so callers never need to import
// internal/bucketlist directly.
type Ordered = bucketlist.Ordered

// Hasher re-exports the hash function type a Map's keys must supply.
type Hasher[K Ordered] = bucketlist.Hasher[K]

// Prebuilt hashers for the common key shapes, backed by xxhash.
var (
	HashInt64  = bucketlist.HashInt64
	HashUint64 = bucketlist.HashUint64
	HashInt    = bucketlist.HashInt
	HashString = bucketlist.HashString
)

// Config configures a Map at construction time; see
// bucketlist.Config for field documentation. Allocator is the one field
// worth overriding in practice — swap in an mmap-backed
// alloc.Arena when K and V hold no further Go pointers.
type Config[K Ordered, V any] = bucketlist.Config[K, V]

// Allocator re-exports the L0 allocator interface.
type Allocator[T any] = alloc.Allocator[T]

// Map is a lock-free set-with-values: get(k) after insert(k, v) returns v;
// after remove(k) it returns none; insert(k, _) returns false iff k is
// already present (spec.md property 1).
//
// Map::new corresponds to New/NewWithConfig below (spec.md §6).
type Map[K Ordered, V any] struct {
	list *bucketlist.List[K, V]
}

// New creates a Map with buckets hash buckets and room for maxThreads
// distinct thread ids, hashing keys with hash.
func New[K Ordered, V any](buckets, maxThreads int, hash Hasher[K]) *Map[K, V] {
	return NewWithConfig(Config[K, V]{
		Buckets:    buckets,
		MaxThreads: maxThreads,
		Hash:       hash,
	})
}

// NewWithConfig creates a Map from a fully specified Config, e.g. to
// supply a custom Allocator.
func NewWithConfig[K Ordered, V any](cfg Config[K, V]) *Map[K, V] {
	return &Map[K, V]{list: bucketlist.New(cfg)}
}

// Insert adds k/v if k is absent. Returns true on insert, false on
// duplicate key or a benign concurrent CAS race (spec.md §6, §7).
func (m *Map[K, V]) Insert(k K, v V, tid int) bool {
	return m.list.Insert(k, v, tid)
}

// Get returns a copy of the value stored under k and whether it was
// present.
func (m *Map[K, V]) Get(k K, tid int) (V, bool) {
	return m.list.Get(k, tid)
}

// Remove unlinks k if present, retires its node for reclamation, and
// returns a copy of the value it held.
func (m *Map[K, V]) Remove(k K, tid int) (V, bool) {
	return m.list.Remove(k, tid)
}

// Len reports the number of live entries. Only meaningful at a quiescent
// point — there is no concurrent-snapshot guarantee (spec.md Non-goals).
func (m *Map[K, V]) Len() int { return m.list.Len() }

// ActiveReaders reports the number of goroutines currently inside a
// protected (Enter'd) section. Exposed for tests of property 6.
func (m *Map[K, V]) ActiveReaders() int64 { return m.list.ActiveReaders() }

// RetirementListEmpty reports whether every retired node has been freed.
// Exposed for tests of property 4.
func (m *Map[K, V]) RetirementListEmpty() bool { return m.list.RetirementListEmpty() }

// BucketKeys returns the keys of the given bucket in chain order.
// Exposed for tests of property 2 (sortedness); the caller is
// responsible for only calling it at a quiescent point.
func (m *Map[K, V]) BucketKeys(bucket int) []K { return m.list.Sorted(bucket) }

