package bucketlist

import (
	"fmt"
	"sync/atomic"

	"hyaline/internal/alloc"
	"hyaline/internal/reclaim"
)

// Hasher produces a stable 64-bit hash of a key. Stable means: equal keys
// always hash equal for the lifetime of a List, so a key always lands in
// the same bucket.
type Hasher[K Ordered] func(K) uint64

// Config configures a List's fixed shape at construction. There is no
// resize operation (spec.md Non-goals) — Buckets is chosen once.
type Config[K Ordered, V any] struct {
	// Buckets is the number of hash buckets, B >= 1.
	Buckets int
	// MaxThreads bounds the tid values operations will accept, N >= 1. A
	// tid outside [0, MaxThreads) is a programmer error (spec.md §7); see
	// DESIGN.md for why this implementation chooses to validate rather
	// than trust the caller.
	MaxThreads int
	// Hash computes the bucket for a key. Required: there is no default
	// because a default would have to guess at K's byte encoding.
	Hash Hasher[K]
	// Allocator sources and releases Node blocks. Defaults to
	// alloc.HeapAllocator, which is always safe; swap in an
	// alloc.Arena-backed allocator only when K and V are pointer-free.
	Allocator alloc.Allocator[Node[K, V]]
}

// List is the L2 ordered bucket list: B buckets, each heading a sorted
// singly linked chain of live Nodes, backed by a shared reclamation
// engine so a node unlinked by remove stays valid for any reader that
// reached it before the unlink until that reader calls Leave.
type List[K Ordered, V any] struct {
	buckets    []atomic.Pointer[Node[K, V]]
	hash       Hasher[K]
	maxThreads int
	alloc      alloc.Allocator[Node[K, V]]
	engine     *reclaim.Engine[Node[K, V], *Node[K, V]]
}

// New constructs a List per cfg. Panics if Buckets or MaxThreads is not
// positive, or Hash is nil — all programmer errors, not runtime
// conditions a caller should need to check for.
func New[K Ordered, V any](cfg Config[K, V]) *List[K, V] {
	if cfg.Buckets < 1 {
		panic("bucketlist: Buckets must be >= 1")
	}
	if cfg.MaxThreads < 1 {
		panic("bucketlist: MaxThreads must be >= 1")
	}
	if cfg.Hash == nil {
		panic("bucketlist: Hash is required")
	}
	a := cfg.Allocator
	if a == nil {
		a = alloc.HeapAllocator[Node[K, V]]{}
	}
	return &List[K, V]{
		buckets:    make([]atomic.Pointer[Node[K, V]], cfg.Buckets),
		hash:       cfg.Hash,
		maxThreads: cfg.MaxThreads,
		alloc:      a,
		engine:     reclaim.NewEngine[Node[K, V], *Node[K, V]](a),
	}
}

func (l *List[K, V]) checkTid(tid int) {
	if tid < 0 || tid >= l.maxThreads {
		panic(fmt.Sprintf("bucketlist: tid %d out of range [0, %d)", tid, l.maxThreads))
	}
}

func (l *List[K, V]) bucketFor(k K) *atomic.Pointer[Node[K, V]] {
	idx := l.hash(k) % uint64(len(l.buckets))
	return &l.buckets[idx]
}

// Insert links a new node for k/v into its bucket's sorted position.
// Returns false if k is already present, or if this goroutine lost a
// benign CAS race to another inserter at the same position (the loser
// frees its node directly — it was never observed by any other thread,
// so no retire is needed).
func (l *List[K, V]) Insert(k K, v V, tid int) bool {
	l.checkTid(tid)
	h := l.engine.Enter()
	defer l.engine.Leave(h)

	prev, cur := l.seek(l.bucketFor(k), k)
	if cur != nil && cur.key == k {
		return false
	}

	n := l.alloc.Allocate()
	n.key = k
	n.value = v
	n.next.Store(cur)

	if prev.CompareAndSwap(cur, n) {
		return true
	}
	// Lost the splice race: n was never observed by any other thread, so
	// it can be freed directly without going through the reclamation
	// engine (spec.md §4.3 step 5 — a single CAS attempt, no retry).
	l.alloc.Deallocate(n)
	return false
}

// Get returns a copy of the value stored under k, and whether k was
// present.
func (l *List[K, V]) Get(k K, tid int) (V, bool) {
	l.checkTid(tid)
	h := l.engine.Enter()
	defer l.engine.Leave(h)

	cur := l.bucketFor(k).Load()
	for cur != nil && cur.key < k {
		cur = cur.next.Load()
	}
	if cur != nil && cur.key == k {
		return cur.Value(), true
	}
	var zero V
	return zero, false
}

// Remove unlinks the node for k, if present, hands it to the reclamation
// engine, and returns a copy of the value it held.
func (l *List[K, V]) Remove(k K, tid int) (V, bool) {
	l.checkTid(tid)
	h := l.engine.Enter()
	defer l.engine.Leave(h)

	bucket := l.bucketFor(k)
	for {
		prev, cur := l.seek(bucket, k)
		if cur == nil || cur.key != k {
			var zero V
			return zero, false
		}

		next := cur.next.Load()
		if prev.CompareAndSwap(cur, next) {
			val := cur.Value()
			l.engine.Retire(cur)
			return val, true
		}
		// Lost the CAS race (another remove or insert touched this
		// position first); standard lock-free retry from the bucket head.
	}
}

// seek walks bucket looking for k, returning the link that would need to
// be CASed to splice at k's position (either &buckets[idx] or a
// predecessor's next field) and the first node whose key is >= k (nil if
// the walk ran off the end of the chain).
func (l *List[K, V]) seek(bucket *atomic.Pointer[Node[K, V]], k K) (*atomic.Pointer[Node[K, V]], *Node[K, V]) {
	prev := bucket
	cur := prev.Load()
	for cur != nil && cur.key < k {
		prev = &cur.next
		cur = cur.next.Load()
	}
	return prev, cur
}

// Len walks every bucket and counts live nodes. Not safe to treat as
// exact under concurrent mutation (Non-goal: snapshotting); intended for
// tests at quiescent points.
func (l *List[K, V]) Len() int {
	n := 0
	for i := range l.buckets {
		for cur := l.buckets[i].Load(); cur != nil; cur = cur.next.Load() {
			n++
		}
	}
	return n
}

// Sorted returns the keys of bucket idx in chain order, for sortedness
// assertions (property 2).
func (l *List[K, V]) Sorted(idx int) []K {
	var keys []K
	for cur := l.buckets[idx].Load(); cur != nil; cur = cur.next.Load() {
		keys = append(keys, cur.key)
	}
	return keys
}

// ActiveReaders exposes the reclamation engine's current reader count
// (property 6).
func (l *List[K, V]) ActiveReaders() int64 { return l.engine.ActiveReaders() }

// RetirementListEmpty reports whether the engine's retirement stack is
// currently empty (property 4).
func (l *List[K, V]) RetirementListEmpty() bool { return l.engine.RetirementListEmpty() }
