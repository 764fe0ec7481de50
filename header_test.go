package cdrc

import (
	"testing"

	"github.com/agilira/cdrc/smr/epoch"
)

func TestHeaderSingleStrongDisposeDestroy(t *testing.T) {
	b := epoch.NewBackend(1)
	disposed := 0
	destroyed := 0
	h := newHeader(42, b, func(int) { disposed++ }, func() { destroyed++ })

	if n := h.loadStrongCount(); n != 1 {
		t.Fatalf("strong count = %d, want 1", n)
	}
	switch act := h.releaseStrong(1); act {
	case ejectDestroy:
		if !h.disposeAndReleaseWeak() {
			t.Fatal("weak release after sole strong-class weak should report destroy")
		}
		h.markDestroyed()
	default:
		t.Fatalf("releaseStrong on lone strong holder = %v, want ejectDestroy", act)
	}

	if disposed != 1 {
		t.Fatalf("disposed = %d, want 1", disposed)
	}
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
}

func TestHeaderWeakOutlivesStrong(t *testing.T) {
	b := epoch.NewBackend(1)
	disposed := 0
	destroyed := 0
	h := newHeader("hello", b, func(string) { disposed++ }, func() { destroyed++ })

	if !h.addWeak(1) {
		t.Fatal("addWeak on live header should succeed")
	}

	act := h.releaseStrong(1)
	if act != ejectDelay {
		t.Fatalf("releaseStrong with an extra weak holder = %v, want ejectDelay", act)
	}
	if h.disposeAndReleaseWeak() {
		t.Fatal("dispose should not yet zero the weak count while a weak reference remains")
	}
	if disposed != 1 {
		t.Fatalf("disposed = %d, want 1", disposed)
	}
	if destroyed != 0 {
		t.Fatal("header must not be destroyed while a weak reference is outstanding")
	}

	if h.releaseWeak(1) != ejectDestroy {
		t.Fatal("final releaseWeak should report destroy")
	}
	h.markDestroyed()
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
}

func TestHeaderAddStrongAfterZeroFails(t *testing.T) {
	b := epoch.NewBackend(1)
	h := newHeader(7, b, nil, nil)
	h.releaseStrong(1)
	if h.addStrong(1) {
		t.Fatal("addStrong after the strong count has reached zero must fail")
	}
}

func TestHeaderDisposeTwicePanics(t *testing.T) {
	b := epoch.NewBackend(1)
	h := newHeader(1, b, nil, nil)
	h.disposeAndReleaseWeak()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double dispose")
		}
	}()
	h.disposeAndReleaseWeak()
}

func TestHeaderEjectStrongDecrementDestroyInline(t *testing.T) {
	b := epoch.NewBackend(1)
	destroyed := 0
	h := newHeader(1, b, nil, func() { destroyed++ })

	h.ejectStrongDecrement()
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1 (destroy cascade runs inline)", destroyed)
	}
}

func TestHeaderEjectStrongDecrementDelaysDisposeViaBackend(t *testing.T) {
	b := epoch.NewBackend(1)
	disposed := 0
	destroyed := 0
	h := newHeader("x", b, func(string) { disposed++ }, func() { destroyed++ })
	h.addWeak(1)

	h.ejectStrongDecrement()
	if disposed != 1 {
		t.Fatalf("disposed = %d, want 1 (epoch's unprotected guard runs the delayed dispose synchronously)", disposed)
	}
	if destroyed != 0 {
		t.Fatal("header must not be destroyed while the extra weak reference is still outstanding")
	}

	h.releaseWeak(1)
	h.markDestroyed()
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
}
