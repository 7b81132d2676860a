package alloc

import (
	"fmt"
	"sync"
	"testing"
)

type block struct {
	tag  int64
	data [56]byte
}

func TestArenaAllocateDeallocateReuse(t *testing.T) {
	a := NewDefaultArena[block]()
	defer a.Close()

	p1 := a.Allocate()
	p1.tag = 42
	addr1 := p1
	a.Deallocate(p1)

	p2 := a.Allocate()
	if p2 != addr1 {
		t.Fatalf("expected freed block to be reused, got different address")
	}
	if p2.tag != 0 {
		t.Fatalf("reused block was not zeroed: tag=%d", p2.tag)
	}
}

func TestArenaGrowsAcrossChunks(t *testing.T) {
	a := NewDefaultArena[block]()
	defer a.Close()

	n := chunkBlocks*2 + 5
	ptrs := make([]*block, n)
	for i := range ptrs {
		ptrs[i] = a.Allocate()
		ptrs[i].tag = int64(i)
	}
	for i, p := range ptrs {
		if p.tag != int64(i) {
			t.Fatalf("block %d: tag corrupted, got %d", i, p.tag)
		}
	}
}

func TestArenaConcurrentAllocateDeallocate(t *testing.T) {
	a := NewDefaultArena[block]()
	defer a.Close()

	const goroutines = 16
	const iterations = 2000

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				p := a.Allocate()
				p.tag = int64(g)
				if p.tag != int64(g) {
					errs <- fmt.Errorf("goroutine %d: unexpected concurrent mutation", g)
					return
				}
				a.Deallocate(p)
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
