// header.go: the counted control block shared by every cdrc reference
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import (
	"sync"
	"unsafe"

	"github.com/agilira/cdrc/smr"
)

// ejectAction tells a caller of releaseStrong/releaseWeak what follow-up
// work, if any, the cascade requires.
type ejectAction int

const (
	ejectNothing ejectAction = iota
	ejectDelay
	ejectDestroy
)

// Disposer runs exactly once, when a header's strong count first reaches
// zero, on the payload it is closing out. It is this module's substitute for
// a destructor: Go's collector reclaims the header's memory on its own
// schedule, so the only externally meaningful event is "the payload is done".
type Disposer[T any] func(T)

// DestroyObserver is notified exactly once per header, the moment its weak
// count reaches zero. Go has no explicit deallocation step to hook into, so
// this is the last point the library has any control over a header's fate
// and stands in for it in tests and metrics.
type DestroyObserver func()

// header is the control block co-allocated, conceptually, with every managed
// value: one payload slot plus two sticky counters tracking how many strong
// and weak holders remain.
type header[T any] struct {
	value T

	strong *stickyCounter
	weak   *stickyCounter

	backend smr.Backend
	dispose Disposer[T]
	observe DestroyObserver

	disposed bool // debug-assertion guard: dispose must run exactly once

	mu sync.Mutex // guards disposed and the value's disposal-in-progress section
}

// newHeader allocates a header with strong=1, weak=1, matching spec 4.3's
// new(value, guard) contract. backend is fixed for the header's lifetime: it
// is what a delayed eject action uses to schedule a further deferred retire
// (the Delay case of releaseStrong) without needing a caller-supplied guard
// at cascade time.
func newHeader[T any](value T, backend smr.Backend, dispose Disposer[T], observe DestroyObserver) *header[T] {
	return &header[T]{
		value:   value,
		strong:  newStickyCounter(1),
		weak:    newStickyCounter(1),
		backend: backend,
		dispose: dispose,
		observe: observe,
	}
}

// addStrong is the sticky-increment described in spec 4.2: returns false if
// the strong counter had already observed zero, in which case the header
// must be treated as dead by the caller.
func (h *header[T]) addStrong(n uint32) bool {
	return h.strong.increment(n)
}

// releaseStrong is spec 4.2's release_strong cascade: a sticky-decrement
// that, when it is the call that zeroes the counter, reports whether the
// payload can be disposed immediately (ejectDestroy, when the implicit
// strong-class weak reference is the only one left) or must wait for a
// racing weak promotion to finish first (ejectDelay).
func (h *header[T]) releaseStrong(n uint32) ejectAction {
	if !h.strong.decrement(n) {
		return ejectNothing
	}
	if w, _ := h.weak.load(); w == 1 {
		return ejectDestroy
	}
	return ejectDelay
}

// addWeak is the weak-count analogue of addStrong.
func (h *header[T]) addWeak(n uint32) bool {
	return h.weak.increment(n)
}

// releaseWeak is the weak-count analogue of releaseStrong: release-to-zero
// always means destroy, with no delay/destroy distinction (there is no
// payload left to race against once the last weak holder departs).
func (h *header[T]) releaseWeak(n uint32) ejectAction {
	if h.weak.decrement(n) {
		return ejectDestroy
	}
	return ejectNothing
}

// disposeAndReleaseWeak drops the payload and releases the strong-class weak
// reference the header was holding on its behalf, per spec 4.2's dispose:
// "drop payload; release one weak. If that release zeros the weak count,
// destroy immediately." Returns true if the header should be destroyed now.
func (h *header[T]) disposeAndReleaseWeak() bool {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		panic("cdrc: header disposed twice")
	}
	h.disposed = true
	v := h.value
	var zero T
	h.value = zero
	h.mu.Unlock()

	if h.dispose != nil {
		h.dispose(v)
	}
	return h.weak.decrement(1)
}

// markDestroyed fires the destroy observer. Called once the weak count has
// reached zero, the last event this library has any visibility into.
func (h *header[T]) markDestroyed() {
	if h.observe != nil {
		h.observe()
	}
}

// loadStrongCount reports the current strong count, or 0 if the header is
// already dead, mirroring the Strong/RefCount accessor's "show
// zero once expired" contract.
func (h *header[T]) loadStrongCount() uint32 {
	n, _ := h.strong.load()
	return n
}

func (h *header[T]) loadWeakCount() uint32 {
	n, _ := h.weak.load()
	return n
}

// ejectStrongDecrement runs release_strong's full cascade (spec 4.7's
// DecrementStrongCount retire type): on ejectDestroy the payload is disposed
// and the header destroyed inline, since reaching this point already means
// no guard live at retire time can observe the header any longer. On
// ejectDelay a second, later-safe retire is scheduled through an unprotected
// guard to perform the dispose, mirroring decrement_ref_cnt's
// retire(Dispose) call in the source cascade.
func (h *header[T]) ejectStrongDecrement() {
	switch h.releaseStrong(1) {
	case ejectDestroy:
		if h.disposeAndReleaseWeak() {
			h.markDestroyed()
		}
	case ejectDelay:
		h.backend.UnprotectedGuard().Retire(unsafe.Pointer(h), func() {
			if h.disposeAndReleaseWeak() {
				h.markDestroyed()
			}
		})
	}
}

// ejectWeakDecrement runs release_weak_refs' cascade (spec 4.7's
// DecrementWeakCount retire type).
func (h *header[T]) ejectWeakDecrement() {
	if h.releaseWeak(1) == ejectDestroy {
		h.markDestroyed()
	}
}

// scheduleStrongDecrement defers a strong-count release until g's guard (and
// every guard active at the time of this call) has been released, per spec
// 4.3's "previous pointer is scheduled for delayed strong-decrement via the
// guard" contract.
func (h *header[T]) scheduleStrongDecrement(g smr.Guard) {
	if h == nil {
		return
	}
	g.Retire(unsafe.Pointer(h), h.ejectStrongDecrement)
}

// scheduleWeakDecrement is the weak-count analogue of scheduleStrongDecrement.
func (h *header[T]) scheduleWeakDecrement(g smr.Guard) {
	if h == nil {
		return
	}
	g.Retire(unsafe.Pointer(h), h.ejectWeakDecrement)
}
