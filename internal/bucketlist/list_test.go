package bucketlist

import (
	"sort"
	"sync"
	"testing"
)

func newTestList(buckets, maxThreads int) *List[int64, int64] {
	return New[int64, int64](Config[int64, int64]{
		Buckets:    buckets,
		MaxThreads: maxThreads,
		Hash:       HashInt64,
	})
}

func TestInsertGetRemoveGet(t *testing.T) {
	l := newTestList(8, 1)

	if !l.Insert(1, 100, 0) {
		t.Fatal("expected first insert of key 1 to succeed")
	}
	if v, ok := l.Get(1, 0); !ok || v != 100 {
		t.Fatalf("expected Get(1) = (100, true), got (%d, %t)", v, ok)
	}
	if v, ok := l.Remove(1, 0); !ok || v != 100 {
		t.Fatalf("expected Remove(1) = (100, true), got (%d, %t)", v, ok)
	}
	if _, ok := l.Get(1, 0); ok {
		t.Fatal("expected Get(1) to miss after remove")
	}
}

func TestDuplicateInsertFails(t *testing.T) {
	l := newTestList(8, 1)

	if !l.Insert(5, 1, 0) {
		t.Fatal("expected first insert to succeed")
	}
	if l.Insert(5, 2, 0) {
		t.Fatal("expected duplicate insert to return false")
	}
	v, ok := l.Get(5, 0)
	if !ok || v != 1 {
		t.Fatalf("expected duplicate insert to leave original value intact, got (%d, %t)", v, ok)
	}
}

// TestBucketStaysSorted pins every key to bucket 0 via a constant hash
// and checks the chain is maintained in ascending key order regardless of
// insertion order.
func TestBucketStaysSorted(t *testing.T) {
	l := New[int64, int64](Config[int64, int64]{
		Buckets:    1,
		MaxThreads: 1,
		Hash:       func(int64) uint64 { return 0 },
	})

	for _, k := range []int64{30, 10, 20, 5, 25} {
		if !l.Insert(k, k*10, 0) {
			t.Fatalf("expected insert of key %d to succeed", k)
		}
	}

	got := l.Sorted(0)
	want := []int64{5, 10, 20, 25, 30}
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sorted chain %v, got %v", want, got)
		}
	}
}

func TestRemoveMissingKeyFails(t *testing.T) {
	l := newTestList(8, 1)
	if _, ok := l.Remove(99, 0); ok {
		t.Fatal("expected remove of absent key to return false")
	}
}

// TestConcurrentInsertRace has two threads race to insert the same key at
// the same bucket position: exactly one must win.
func TestConcurrentInsertRace(t *testing.T) {
	for trial := 0; trial < 200; trial++ {
		l := New[int64, int64](Config[int64, int64]{
			Buckets:    1,
			MaxThreads: 2,
			Hash:       func(int64) uint64 { return 0 },
		})

		var wg sync.WaitGroup
		results := make([]bool, 2)
		wg.Add(2)
		for tid := 0; tid < 2; tid++ {
			go func(tid int) {
				defer wg.Done()
				results[tid] = l.Insert(1, int64(tid), tid)
			}(tid)
		}
		wg.Wait()

		if results[0] == results[1] {
			t.Fatalf("trial %d: expected exactly one winner, got %v", trial, results)
		}
		if !l.RetirementListEmpty() {
			t.Fatalf("trial %d: expected no retirements from a losing insert", trial)
		}
		if l.Len() != 1 {
			t.Fatalf("trial %d: expected exactly one live node, got %d", trial, l.Len())
		}
	}
}

// TestConcurrentRemoveAndReader has one thread removing a key while
// another is mid-traversal over the same bucket; the reader must never
// observe a torn or freed node.
func TestConcurrentRemoveAndReader(t *testing.T) {
	for trial := 0; trial < 100; trial++ {
		l := newTestList(4, 2)
		for _, k := range []int64{1, 2, 3, 4, 5} {
			l.Insert(k, k, 0)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Remove(3, 0)
		}()
		go func() {
			defer wg.Done()
			for k := int64(1); k <= 5; k++ {
				l.Get(k, 1)
			}
		}()
		wg.Wait()

		if _, ok := l.Get(3, 0); ok {
			t.Fatalf("trial %d: expected key 3 to be gone after remove", trial)
		}
	}
}

// TestHighContentionMix runs many threads through a random mix of
// insert/get/remove over a small key space and checks the engine settles
// to an empty retirement list with no crashes or corrupted chains.
func TestHighContentionMix(t *testing.T) {
	const threads = 16
	const opsPerThread = 5000
	const keySpace = 64

	l := newTestList(32, threads)

	var wg sync.WaitGroup
	wg.Add(threads)
	for tid := 0; tid < threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			seed := int64(tid)*2654435761 + 1
			for i := 0; i < opsPerThread; i++ {
				seed = seed*6364136223846793005 + 1442695040888963407
				k := (seed >> 33) % keySpace
				if k < 0 {
					k = -k
				}
				switch i % 3 {
				case 0:
					l.Insert(k, k, tid)
				case 1:
					l.Get(k, tid)
				default:
					l.Remove(k, tid)
				}
			}
		}(tid)
	}
	wg.Wait()

	// Settle: one more enter/leave per thread.
	for tid := 0; tid < threads; tid++ {
		l.Insert(-1, 0, tid)
		l.Remove(-1, tid)
	}

	if !l.RetirementListEmpty() {
		t.Fatal("expected retirement list empty after settling")
	}

	for i := 0; i < len(l.buckets); i++ {
		keys := l.Sorted(i)
		if !sort.SliceIsSorted(keys, func(a, b int) bool { return keys[a] < keys[b] }) {
			t.Fatalf("bucket %d not sorted: %v", i, keys)
		}
	}
}

func TestTidOutOfRangePanics(t *testing.T) {
	l := newTestList(4, 2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range tid")
		}
	}()
	l.Insert(1, 1, 5)
}
