// Package reclaim is the L1 safe-memory-reclamation engine: a Hyaline-style
// scheme in which the number of active readers and the head of a global
// retirement stack are packed into one word that every reader and retirer
// agrees on via a single compare-and-swap.
//
// The algorithm is adapted from the epoch-based reclaimer in the teacher's
// pkg/cowbtree/epoch.go (the Enter/Leave/ReaderGuard shape, the
// sync/atomic-only style) but replaces its epoch-counter approach with the
// head-word packing scheme described in
// original_source/src/run_test/link_list/Hyaline.rs: there is no global
// epoch and no per-reader map, only one atomic word and a per-node
// reference count seeded from a reader-count snapshot at retire time.
package reclaim

import (
	"errors"
	"sync/atomic"

	"hyaline/internal/alloc"
)

// Fatal-programmer-error sentinels, passed to panic at the single points a
// torn invariant is detected, the same documented-sentinel convention as
// the teacher's pkg/cowbtree.ErrKeyNotFound/ErrTreeClosed/ErrCASFailed.
var (
	ErrNilNode         = errors.New("reclaim: retire of nil node")
	ErrUnbalancedLeave = errors.New("reclaim: leave without a matching enter")
)

// Entry is satisfied by *T for any node type the engine can retire. The
// engine never inspects a node's payload — only its intrusive retirement
// link and reference count, both of which it requires back as pointers to
// the underlying atomics so it can CAS them directly.
type Entry[T any] interface {
	*T
	RetireLink() *atomic.Pointer[T]
	RetireRefCount() *atomic.Int64
}

// head is the packed (active-reader count, retirement-stack top) word.
// Go has no portable 128-bit compare-and-swap, so the pair is boxed into
// an immutable value and the engine CASes the *pointer* to that value —
// the tag-counted-pointer alternative spec.md's design notes call out.
// Every mutation allocates a fresh head; the garbage this produces is
// exactly the kind of small, short-lived bookkeeping object the Go
// collector is good at, and it never touches the node graph itself.
type head[T any] struct {
	href int64
	hptr *T
}

// Handle is the immutable snapshot Enter returns: the reader-count and
// retirement-stack-top values observed at the moment of entry. Leave uses
// hptr as the point at which its decrement walk may stop.
type Handle[T any] struct {
	href int64
	hptr *T
}

// Engine is the global retirement list for one map instance. Nothing else
// is global: multiple Engines never share state.
type Engine[T any, PT Entry[T]] struct {
	h     atomic.Pointer[head[T]]
	alloc alloc.Allocator[T]
}

// NewEngine creates a reclamation engine that frees retired nodes through a.
func NewEngine[T any, PT Entry[T]](a alloc.Allocator[T]) *Engine[T, PT] {
	e := &Engine[T, PT]{alloc: a}
	e.h.Store(&head[T]{})
	return e
}

// Enter records the caller as an active reader and returns a Handle that
// must later be passed to Leave exactly once. Every node reachable through
// the bucket array or through another protected node's next pointer is
// safe to dereference until the matching Leave returns.
func (e *Engine[T, PT]) Enter() Handle[T] {
	for {
		cur := e.h.Load()
		next := &head[T]{href: cur.href + 1, hptr: cur.hptr}
		if e.h.CompareAndSwap(cur, next) {
			return Handle[T]{href: cur.href, hptr: cur.hptr}
		}
	}
}

// Retire pushes an unlinked node onto the retirement stack and stamps it
// with the reader count current at that moment. Precondition: n has
// already been unlinked from every bucket list by a successful CAS and the
// caller is currently inside a protected (Enter'd) section.
func (e *Engine[T, PT]) Retire(n *T) {
	if n == nil {
		panic(ErrNilNode)
	}
	pt := PT(n)

	// Step 1: push n onto the retirement stack.
	for {
		cur := e.h.Load()
		pt.RetireLink().Store(cur.hptr)
		next := &head[T]{href: cur.href, hptr: n}
		if e.h.CompareAndSwap(cur, next) {
			break
		}
	}

	// Step 2: fold the *current* reader count into n's ref count. Readers
	// may have entered between the push above and this load; adding the
	// freshly observed href over-approximates the set of readers that
	// might still hold a snapshot predating n's retirement, which is
	// exactly what makes the scheme safe (see package doc).
	refs := pt.RetireRefCount()
	for {
		old := refs.Load()
		href := e.h.Load().href
		if refs.CompareAndSwap(old, old+href) {
			break
		}
	}
}

// Leave ends a protected section started by the matching Enter. It
// decrements the active-reader count and then walks the retirement stack
// from its current top down to h's snapshot, decrementing every node's
// reference count it passes. Any node whose count reaches zero is
// unlinked and freed immediately (eager reclamation — see DESIGN.md for
// why eager was chosen over lazily leaving zeroed nodes for a later Leave
// to collect).
func (e *Engine[T, PT]) Leave(h Handle[T]) {
	for {
		cur := e.h.Load()
		if cur.href == 0 {
			panic(ErrUnbalancedLeave)
		}
		next := &head[T]{href: cur.href - 1, hptr: cur.hptr}
		if e.h.CompareAndSwap(cur, next) {
			break
		}
	}

	var predLink *atomic.Pointer[T] // nil means the predecessor is the stack head itself
	cur := e.h.Load().hptr
	for cur != nil && cur != h.hptr {
		pt := PT(cur)
		next := pt.RetireLink().Load()

		if pt.RetireRefCount().Add(-1) == 0 {
			if predLink == nil {
				// cur is (or was) the stack head. unlinkHeadNode retries
				// internally until cur is actually spliced out, even if a
				// concurrent Retire pushes new nodes on top of it in the
				// meantime — it never hands cur back to this loop to be
				// revisited, which would double-decrement an already-zeroed
				// reference count.
				e.unlinkHeadNode(cur, next)
				e.alloc.Deallocate(cur)
				cur = next
				continue
			}
			if e.unlink(predLink, cur, next) {
				e.alloc.Deallocate(cur)
				cur = next
				continue
			}
			// The predecessor link no longer points at cur. cur is not
			// freed here; re-read from the same predecessor and keep going
			// from wherever it now points.
			cur = e.after(predLink)
			continue
		}

		predLink = pt.RetireLink()
		cur = next
	}
}

// unlink attempts the single mid-chain CAS that transitions cur from
// "zeroed, still on the list" to "unlinked" (S1 -> S2), given a stable
// predecessor link. Exactly one caller can win this race for a given cur.
func (e *Engine[T, PT]) unlink(predLink *atomic.Pointer[T], cur, next *T) bool {
	return predLink.CompareAndSwap(cur, next)
}

func (e *Engine[T, PT]) after(predLink *atomic.Pointer[T]) *T {
	return predLink.Load()
}

// unlinkHeadNode splices cur out of the retirement stack given that cur
// was observed as the current head. If a concurrent Retire pushes one or
// more new nodes on top of cur before the head CAS lands, cur is still
// linked immediately below that freshly pushed chain — never lost, never
// already spliced by anyone else, since this Leave is the unique caller
// that drove cur's reference count to zero. unlinkHeadNode walks down from
// whatever the head now is to find cur's current predecessor and retries
// there, without touching any node's reference count along the way, and
// keeps retrying until the splice succeeds.
func (e *Engine[T, PT]) unlinkHeadNode(cur, next *T) {
	for {
		h := e.h.Load()
		if h.hptr == cur {
			nh := &head[T]{href: h.href, hptr: next}
			if e.h.CompareAndSwap(h, nh) {
				return
			}
			continue
		}
		for p := h.hptr; p != nil; {
			pt := PT(p)
			link := pt.RetireLink()
			if link.Load() == cur {
				if link.CompareAndSwap(cur, next) {
					return
				}
				break
			}
			p = link.Load()
		}
	}
}

// ActiveReaders reports the current active-reader count. Exposed for tests
// and for property 6 (enter/leave balance) assertions; not used by the
// hot path.
func (e *Engine[T, PT]) ActiveReaders() int64 {
	return e.h.Load().href
}

// RetirementListEmpty reports whether the retirement stack currently has
// no nodes on it. Exposed for tests asserting property 4 (no leaked
// unlinked nodes) after a quiescent point.
func (e *Engine[T, PT]) RetirementListEmpty() bool {
	return e.h.Load().hptr == nil
}
