// Package alloc is the L0 allocator shim: raw block allocation sized and
// aligned for a single node, with no thread-local caching. It exposes two
// implementations of the same Allocator interface — a default Go-heap
// allocator and an mmap-backed arena for fixed-layout, pointer-free block
// types — so callers can pick the one that fits their key/value shape.
package alloc

import "errors"

// Fatal-programmer-error sentinels, passed to panic at the single points a
// torn invariant is detected, the same documented-sentinel convention as
// the teacher's pkg/cowbtree.ErrKeyNotFound/ErrTreeClosed/ErrCASFailed.
var (
	ErrAllocationFailed = errors.New("alloc: allocation failed")
	ErrNilNode          = errors.New("alloc: nil node")
)

// Allocator carves and releases raw blocks sized for T. Allocate fails
// fatally (panics) if the underlying source is exhausted or returns a null
// address — per the reclamation engine's contract, this indicates a
// programmer-invariant violation (misconfigured capacity, OS refusal), not
// a recoverable error. Deallocate's precondition is that the block came
// from Allocate on the same Allocator and is not referenced by any other
// live pointer.
//
// An Allocator must be reentrant and safe for concurrent use from multiple
// goroutines without external locking.
type Allocator[T any] interface {
	Allocate() *T
	Deallocate(*T)
}

// HeapAllocator is the default Allocator: it delegates to the Go runtime's
// own allocator and garbage collector. Deallocate drops the caller's last
// reference so the collector reclaims the block once truly unreachable —
// there is no explicit free() in Go, so "deallocate" here means "stop
// holding on to it." This is the correct choice whenever T may contain
// further Go-managed pointers (strings, slices, interfaces, maps), which
// is the common case for a generic key/value node.
type HeapAllocator[T any] struct{}

// Allocate returns a freshly zeroed *T from the Go heap. new never returns
// nil in Go; the fatal-on-null branch exists only to keep this
// implementation's contract identical to Arena's, whose backing mmap call
// can genuinely fail.
func (HeapAllocator[T]) Allocate() *T {
	p := new(T)
	if p == nil {
		panic(ErrAllocationFailed)
	}
	return p
}

// Deallocate is a no-op beyond making the intent explicit: the caller must
// not dereference p again. The block becomes eligible for garbage
// collection once no other reference to it survives.
func (HeapAllocator[T]) Deallocate(p *T) {
	if p == nil {
		panic(ErrNilNode)
	}
}
