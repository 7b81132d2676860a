package alloc

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// chunkBlocks is the number of T-sized blocks carved out of each mmap
// chunk. Picking a single fixed chunk size keeps Arena's growth path
// simple: when the freelist runs dry it maps one more chunk of exactly
// this many blocks.
const chunkBlocks = 4096

// freeSlot is overlaid on the first word of a freed block to link it into
// the arena's lock-free freelist — the same intrusive-stack trick the
// reclamation engine uses for its own retirement list (see
// internal/reclaim), reused here for self-consistency rather than
// reimplemented.
type freeSlot struct {
	next unsafe.Pointer // *freeSlot, or nil
}

// mapper abstracts the OS-specific half of Arena: obtaining and releasing
// a block of anonymous, zero-filled memory. arena_unix.go and
// arena_windows.go each provide one.
type mapper interface {
	mapAnon(size uintptr) (unsafe.Pointer, error)
	unmapAnon(addr unsafe.Pointer, size uintptr) error
}

// Arena is a growable, lock-free, mmap-backed block allocator for a fixed
// layout T. It gives Allocate/Deallocate genuine raw-address semantics —
// as opposed to HeapAllocator's reliance on the Go garbage collector — at
// the cost of a hard constraint:
//
// T must not contain pointers into the Go-managed heap (no strings,
// slices, maps, interfaces, or *T2 pointing outside this same arena). Go's
// garbage collector does not scan memory obtained directly from the OS via
// mmap/VirtualAlloc, so a Go-heap pointer stored there would be invisible
// to the collector and could be freed out from under the arena while still
// referenced. Arena is intended for plain fixed-width payloads (integers,
// byte arrays, other arena-backed pointers) — the same restriction Go's
// own experimental arena package documents.
type Arena[T any] struct {
	blockSize uintptr
	m         mapper

	free   atomic.Pointer[freeSlot]
	chunks atomic.Pointer[chunkList]

	growMu chunkGrowLock
}

// chunkGrowLock serializes the (rare) path that maps a new chunk, so two
// racing Allocate calls that both observe an empty freelist don't each map
// their own chunk. It never blocks the hot allocate/deallocate path, which
// is pure CAS.
type chunkGrowLock struct {
	busy atomic.Bool
}

func (l *chunkGrowLock) tryAcquire() bool { return l.busy.CompareAndSwap(false, true) }
func (l *chunkGrowLock) release()         { l.busy.Store(false) }

type chunkList struct {
	addr unsafe.Pointer
	size uintptr
	next *chunkList
}

// NewArena creates an Arena for blocks sized and aligned for T.
func NewArena[T any](m mapper) *Arena[T] {
	var zero T
	return &Arena[T]{
		blockSize: unsafe.Sizeof(zero),
		m:         m,
	}
}

// Allocate returns a raw, zero-filled *T carved from the arena. It never
// returns nil: if the underlying OS mapping call fails, Allocate panics —
// per the L0 contract, that is a programmer-invariant violation (the
// process is out of address space or the arena was misconfigured), not a
// condition a caller can recover from.
func (a *Arena[T]) Allocate() *T {
	for {
		head := a.free.Load()
		if head == nil {
			a.growOnce()
			continue
		}
		next := (*freeSlot)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&head.next))))
		if a.free.CompareAndSwap(head, next) {
			return (*T)(zeroBlock(unsafe.Pointer(head), a.blockSize))
		}
	}
}

// Deallocate returns a block previously obtained from Allocate to the
// freelist. Precondition: p is not referenced by any other live pointer.
func (a *Arena[T]) Deallocate(p *T) {
	if p == nil {
		panic(ErrNilNode)
	}
	slot := (*freeSlot)(unsafe.Pointer(p))
	for {
		head := a.free.Load()
		atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&slot.next)), unsafe.Pointer(head))
		if a.free.CompareAndSwap(head, slot) {
			return
		}
	}
}

// growOnce maps one more chunk and pushes all of its blocks onto the
// freelist. Concurrent callers that lose the race to grow simply retry
// Allocate against the freelist the winner populated.
func (a *Arena[T]) growOnce() {
	if !a.growMu.tryAcquire() {
		return
	}
	defer a.growMu.release()

	// Another goroutine may have grown the arena between our caller seeing an
	// empty freelist and this goroutine taking the lock.
	if a.free.Load() != nil {
		return
	}

	size := a.blockSize * chunkBlocks
	addr, err := a.m.mapAnon(size)
	if err != nil || addr == nil {
		panic(fmt.Errorf("%w: %v", ErrAllocationFailed, err))
	}

	cl := &chunkList{addr: addr, size: size}
	for {
		head := a.chunks.Load()
		cl.next = head
		if a.chunks.CompareAndSwap(head, cl) {
			break
		}
	}

	var head *freeSlot
	for i := chunkBlocks - 1; i >= 0; i-- {
		blockAddr := unsafe.Add(addr, uintptr(i)*a.blockSize)
		slot := (*freeSlot)(blockAddr)
		slot.next = unsafe.Pointer(head)
		head = slot
	}
	a.free.Store(head)
}

// Close unmaps every chunk the arena ever grew. Callers must guarantee no
// concurrent Allocate/Deallocate is in flight.
func (a *Arena[T]) Close() error {
	var firstErr error
	for cl := a.chunks.Load(); cl != nil; cl = cl.next {
		if err := a.m.unmapAnon(cl.addr, cl.size); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.chunks.Store(nil)
	a.free.Store(nil)
	return firstErr
}

// zeroBlock clears a freshly popped block before it is handed back as a *T,
// so a reused block never leaks the previous occupant's bytes.
func zeroBlock(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	b := unsafe.Slice((*byte)(p), size)
	for i := range b {
		b[i] = 0
	}
	return p
}
