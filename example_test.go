package cdrc

import (
	"sync"
	"testing"

	"github.com/agilira/cdrc/smr/epoch"
)

// TestScenarioSingleThreadLifecycle covers spec scenario 1: a cell's payload
// is destructed exactly once, after its guard drops.
func TestScenarioSingleThreadLifecycle(t *testing.T) {
	b := epoch.NewBackend(1)
	g := b.Register().Pin()

	disposed := 0
	cell := NewStrongCell(42, b, func(int) { disposed++ }, nil)

	snap := cell.Load(g)
	if snap.Deref() != 42 {
		t.Fatalf("Deref() = %d, want 42", snap.Deref())
	}
	s := cell.LoadStrong(g)
	if s.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2 (cell + s)", s.RefCount())
	}
	s.Drop(g)

	cell.Drop()
	g.Release()
	b.Drain()

	if disposed != 1 {
		t.Fatalf("disposed = %d, want exactly 1", disposed)
	}
}

// TestScenarioProducerConsumer covers spec scenario 2: a producer stores
// three distinct values in sequence; a consumer observes a subset of them
// without ever seeing a freed pointer; once everything quiesces, exactly
// three payloads were destructed.
func TestScenarioProducerConsumer(t *testing.T) {
	b := epoch.NewBackend(2)
	producerHandle := b.Register()
	consumerHandle := b.Register()

	var disposedMu sync.Mutex
	disposed := 0
	dispose := func(string) {
		disposedMu.Lock()
		disposed++
		disposedMu.Unlock()
	}

	cell := NewStrongCell("hello", b, dispose, nil)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		g := producerHandle.Pin()
		defer g.Release()
		for _, v := range []string{"world", "end"} {
			next := NewStrong(v, b, dispose, nil)
			old := cell.Swap(next, g)
			old.Drop(g)
		}
	}()

	seen := make(map[string]bool)
	var seenMu sync.Mutex
	go func() {
		defer wg.Done()
		g := consumerHandle.Pin()
		defer g.Release()
		for i := 0; i < 50; i++ {
			s := cell.LoadStrong(g)
			if !s.IsNull() {
				seenMu.Lock()
				seen[s.Deref()] = true
				seenMu.Unlock()
				s.Drop(g)
			}
		}
	}()

	wg.Wait()

	final := cell.LoadStrong(b.UnprotectedGuard())
	finalVal := final.Deref()
	final.Drop(b.UnprotectedGuard())
	cell.Drop()
	b.Drain()

	if disposed != 3 {
		t.Fatalf("disposed = %d, want 3 (hello, world, end)", disposed)
	}
	if finalVal != "end" {
		t.Fatalf("final value = %q, want %q", finalVal, "end")
	}
}

// TestScenarioSnapshotPromotionRacingFree covers spec scenario 3: promoting
// a snapshot concurrently with the cell being cleared never yields a
// use-after-free — either the promotion succeeds and the payload is live,
// or it returns null.
func TestScenarioSnapshotPromotionRacingFree(t *testing.T) {
	b := epoch.NewBackend(2)
	clearerHandle := b.Register()
	readerHandle := b.Register()

	cell := NewStrongCell(7, b, nil, nil)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		g := clearerHandle.Pin()
		defer g.Release()
		old := cell.Swap(Strong[int]{}, g)
		old.Drop(g)
	}()

	var result Strong[int]
	go func() {
		defer wg.Done()
		g := readerHandle.Pin()
		defer g.Release()
		snap := cell.Load(g)
		result = snap.AsStrong(g)
	}()

	wg.Wait()

	if !result.IsNull() {
		if result.Deref() != 7 {
			t.Fatalf("promoted Deref() = %d, want 7", result.Deref())
		}
		result.Drop(b.UnprotectedGuard())
	}
	b.Drain()
}

// TestScenarioEpochBulk is a scaled-down version of spec scenario 6: many
// goroutines concurrently insert and immediately swap out strong
// references on a shared cell; once all guards drop and the cell itself is
// dropped, the number of payload destructions equals the number of payloads
// ever created: every item swapped out plus the one left in the cell (never
// double-counted, never skipped).
func TestScenarioEpochBulk(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 50

	b := epoch.NewBackend(goroutines)
	var disposedMu sync.Mutex
	disposed := 0
	dispose := func(int) {
		disposedMu.Lock()
		disposed++
		disposedMu.Unlock()
	}

	cell := NewStrongCell(-1, b, dispose, nil)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(base int) {
			defer wg.Done()
			h := b.Register()
			g := h.Pin()
			defer g.Release()
			for j := 0; j < perGoroutine; j++ {
				next := NewStrong(base*perGoroutine+j, b, dispose, nil)
				old := cell.Swap(next, g)
				old.Drop(g)
			}
		}(i)
	}
	wg.Wait()

	final := cell.LoadStrong(b.UnprotectedGuard())
	final.Drop(b.UnprotectedGuard())
	cell.Drop()
	b.Drain()

	want := goroutines*perGoroutine + 1 // +1 for the initial -1 payload
	if disposed != want {
		t.Fatalf("disposed = %d, want %d", disposed, want)
	}
}
