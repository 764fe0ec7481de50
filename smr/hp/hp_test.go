package hp

import (
	"sync"
	"testing"
	"unsafe"
)

func TestBackendRegisterExceedsMaxThreads(t *testing.T) {
	b := NewBackend(1)
	b.Register()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when exceeding max threads")
		}
	}()
	b.Register()
}

func TestProtectReturnsStableValue(t *testing.T) {
	b := NewBackend(2)
	h := b.Register()
	g := h.Pin()
	defer g.Release()

	var x int
	want := unsafe.Pointer(&x)
	got := g.Protect(func() unsafe.Pointer { return want })
	if got != want {
		t.Fatalf("Protect() = %v, want %v", got, want)
	}
}

func TestRetiredPointerNotReclaimedWhileProtected(t *testing.T) {
	b := NewBackend(2, WithScanThreshold(1))
	h1 := b.Register()
	h2 := b.Register()

	var x int
	target := unsafe.Pointer(&x)

	protector := h1.Pin()
	protected := protector.Protect(func() unsafe.Pointer { return target })
	if protected != target {
		t.Fatal("protect should return the protected target")
	}

	reclaimed := false
	retirer := h2.Pin()
	retirer.Retire(target, func() { reclaimed = true })
	retirer.Release()

	if reclaimed {
		t.Fatal("retired pointer must not be reclaimed while still protected")
	}

	protector.Release()
	b.Flush()
	if !reclaimed {
		t.Fatal("retired pointer should be reclaimed once no longer protected")
	}
}

func TestSlotGrowthAcrossManyProtects(t *testing.T) {
	b := NewBackend(1)
	h := b.Register()
	g := h.Pin()
	defer g.Release()

	values := make([]int, initialSlotCount*3)
	for i := range values {
		values[i] = i
		p := g.Protect(func() unsafe.Pointer { return unsafe.Pointer(&values[i]) })
		if p != unsafe.Pointer(&values[i]) {
			t.Fatalf("iteration %d: protect returned wrong pointer", i)
		}
	}
}

func TestConcurrentRetireAndScan(t *testing.T) {
	const n = 8
	b := NewBackend(n, WithScanThreshold(4))
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			h := b.Register()
			g := h.Pin()
			defer g.Release()
			for j := 0; j < 20; j++ {
				v := j
				g.Retire(unsafe.Pointer(&v), func() {})
			}
		}()
	}
	wg.Wait()
	b.Flush()
}
