// cmd/smrbench drives hyaline's Map with a fixed number of worker
// goroutines performing a random mix of insert/get/remove, the same
// control flow spec.md §2/§6 describes for the external harness. It does
// not implement the harness's CSV sampling, warmup, CPU pinning, or
// signal handling — those remain named-only external collaborators per
// spec.md §1; this binary only exercises the calls the harness would make
// into the core.
//
// Usage:
//
//	smrbench [-threads N] [-buckets B] [-ops N] [-read-pct P] [-keys K]
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"time"

	"hyaline/pkg/smrmap"
)

func main() {
	threads := flag.Int("threads", 8, "number of worker goroutines")
	buckets := flag.Int("buckets", 64, "number of hash buckets")
	ops := flag.Int("ops", 50_000, "operations per worker")
	readPct := flag.Int("read-pct", 50, "percentage of operations that are get")
	keys := flag.Int("keys", 1000, "key space size, keys drawn from [0, keys)")
	flag.Parse()

	summary, err := run(os.Stdout, *threads, *buckets, *ops, *readPct, *keys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "smrbench: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, summary)
}

// run spawns threads worker goroutines, each performing ops operations
// against a shared Map, and reports wall-clock time and final map size to
// out. It returns the same summary as a string so tests can assert on it
// without capturing stdout.
func run(out io.Writer, threads, buckets, ops, readPct, keys int) (string, error) {
	if threads < 1 {
		return "", fmt.Errorf("threads must be >= 1, got %d", threads)
	}
	if readPct < 0 || readPct > 100 {
		return "", fmt.Errorf("read-pct must be in [0, 100], got %d", readPct)
	}

	m := smrmap.New[int64, int64](buckets, threads, smrmap.HashInt64)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(threads)
	for tid := 0; tid < threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			worker(m, tid, ops, readPct, keys)
		}(tid)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// One more insert/remove per thread at the quiescent point, mirroring
	// spec.md property 4's "one additional enter/leave cycle" barrier. A
	// Leave walks only nodes retired after its own Enter, so this cycle
	// frees only the nodes it retires itself; the reported
	// retirement-list-empty reflects what the workers' own Leave calls freed.
	settle(m, threads)

	return fmt.Sprintf(
		"threads=%d buckets=%d ops/thread=%d read-pct=%d keys=%d elapsed=%s final-size=%d retirement-list-empty=%t\n",
		threads, buckets, ops, readPct, keys, elapsed, m.Len(), m.RetirementListEmpty(),
	), nil
}

func worker(m *smrmap.Map[int64, int64], tid, ops, readPct, keys int) {
	rng := rand.New(rand.NewSource(int64(tid) + 1))
	for i := 0; i < ops; i++ {
		k := int64(rng.Intn(keys))
		switch {
		case rng.Intn(100) < readPct:
			m.Get(k, tid)
		case rng.Intn(2) == 0:
			m.Insert(k, k, tid)
		default:
			m.Remove(k, tid)
		}
	}
}

func settle(m *smrmap.Map[int64, int64], threads int) {
	var wg sync.WaitGroup
	wg.Add(threads)
	for tid := 0; tid < threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			m.Insert(-1, 0, tid)
			m.Remove(-1, tid)
		}(tid)
	}
	wg.Wait()
}
