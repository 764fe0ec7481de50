// cell.go: the atomic shared cell holding a tagged pointer to a header
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import (
	"unsafe"

	"github.com/agilira/cdrc/smr"
)

// StrongCell is the atomic shared cell of spec 4.3: it holds one tagged
// pointer to a header and, when non-null, conceptually owns one unit of
// that header's strong count on behalf of whatever is currently stored.
type StrongCell[T any] struct {
	ptr     *taggedPointer[T]
	backend smr.Backend
}

// NewStrongCell publishes a freshly-allocated header with strong=1, weak=1,
// matching spec 4.3's new(value, guard). dispose and observe may be nil.
func NewStrongCell[T any](value T, backend smr.Backend, dispose Disposer[T], observe DestroyObserver) *StrongCell[T] {
	h := newHeader(value, backend, dispose, observe)
	return &StrongCell[T]{ptr: newTaggedPointer[T](h, 0), backend: backend}
}

// NullStrongCell constructs a cell holding null, per spec 4.3's null().
func NullStrongCell[T any](backend smr.Backend) *StrongCell[T] {
	return &StrongCell[T]{ptr: newTaggedPointer[T](nil, 0), backend: backend}
}

// loadProtected runs the common SMR load-and-verify sequence shared by Load
// and FetchOr: it protects the header pointer currently in the cell (or the
// result of an in-place mutation, for FetchOr) and pairs it with the tag
// observed at the moment protection was confirmed.
func loadProtected[T any](g smr.Guard, read func() (*header[T], uint8)) (*header[T], uint8) {
	var tag uint8
	loaded := g.Protect(func() unsafe.Pointer {
		h, t := read()
		tag = t
		return unsafe.Pointer(h)
	})
	return (*header[T])(loaded), tag
}

// Load returns a snapshot the guard will keep dereferenceable for the
// remainder of its lifetime (spec 4.3/4.5). A header already observed at
// strong=0 is reported as a null snapshot — it would be useless on a dying
// object.
func (c *StrongCell[T]) Load(g smr.Guard) Snapshot[T] {
	h, tag := loadProtected[T](g, c.ptr.load)
	if h != nil && h.loadStrongCount() == 0 {
		return Snapshot[T]{}
	}
	return Snapshot[T]{h: h, tag: tag}
}

// LoadStrong loads the cell and attempts to promote the result to an owned
// strong reference in one step (spec 4.3's load_strong). It may return null
// even on a non-null cell if the header has already reached strong=0.
func (c *StrongCell[T]) LoadStrong(g smr.Guard) Strong[T] {
	return c.Load(g).AsStrong(g)
}

// Store installs s, transferring its strong-count ownership into the cell.
// The previously-held pointer is scheduled for a delayed strong-decrement
// via g.
func (c *StrongCell[T]) Store(s Strong[T], g smr.Guard) {
	oldH, _ := c.ptr.swap(s.h, s.tag)
	oldH.scheduleStrongDecrement(g)
}

// Swap installs s and returns the displaced pointer as an owned strong
// reference, transferring its ownership out of the cell to the caller.
func (c *StrongCell[T]) Swap(s Strong[T], g smr.Guard) Strong[T] {
	oldH, oldTag := c.ptr.swap(s.h, s.tag)
	return Strong[T]{h: oldH, tag: oldTag}
}

// CompareExchange atomically replaces the cell's contents with desired,
// provided the cell currently holds exactly what expected identifies (spec
// 4.3's compare_exchange). On success the displaced pointer is returned as
// an owned strong reference and desired's ownership is consumed (moved) into
// the cell. On failure desired's ownership is untouched and the caller may
// reuse it.
func (c *StrongCell[T]) CompareExchange(expected Snapshot[T], desired Strong[T], g smr.Guard) (Strong[T], bool) {
	if c.ptr.compareAndSwap(expected.h, expected.tag, desired.h, desired.tag) {
		return Strong[T]{h: expected.h, tag: expected.tag}, true
	}
	return Strong[T]{}, false
}

// CompareExchangeSnapshot is the snapshot-sourced variant of CompareExchange:
// desired's ownership is obtained by sticky-incrementing its strong count
// rather than moving an existing owned reference, per spec 4.3's "sticky-
// increment if desired was a snapshot". If the increment itself fails
// (desired's header already observed strong=0) the call fails without
// touching the cell. If the subsequent CAS fails, the increment is unwound
// with a scheduled decrement so no strong unit leaks.
func (c *StrongCell[T]) CompareExchangeSnapshot(expected, desired Snapshot[T], g smr.Guard) (Strong[T], bool) {
	if desired.h != nil && !desired.h.addStrong(1) {
		return Strong[T]{}, false
	}
	if c.ptr.compareAndSwap(expected.h, expected.tag, desired.h, desired.tag) {
		return Strong[T]{h: expected.h, tag: expected.tag}, true
	}
	desired.h.scheduleStrongDecrement(g)
	return Strong[T]{}, false
}

// CompareExchangeProtect behaves like CompareExchange, but on failure
// protects the cell's current value into outSnap so the caller can retry
// without a second, separate load (spec 4.3's compare_exchange_protect).
func (c *StrongCell[T]) CompareExchangeProtect(expected Snapshot[T], desired Strong[T], outSnap *Snapshot[T], g smr.Guard) (Strong[T], bool) {
	if displaced, ok := c.CompareExchange(expected, desired, g); ok {
		return displaced, true
	}
	*outSnap = c.Load(g)
	return Strong[T]{}, false
}

// FetchOr atomically sets bits in the cell's tag without changing which
// header it points to (P7) and without touching any reference count, then
// returns the previous (header, tag) pair as a snapshot.
func (c *StrongCell[T]) FetchOr(tag uint8, g smr.Guard) Snapshot[T] {
	h, prevTag := loadProtected[T](g, func() (*header[T], uint8) {
		return c.ptr.fetchOr(tag)
	})
	if h != nil && h.loadStrongCount() == 0 {
		return Snapshot[T]{}
	}
	return Snapshot[T]{h: h, tag: prevTag}
}

// Drop schedules the cell's held pointer for a delayed strong-decrement
// using an unprotected guard, per spec 4.3: the cell itself may be going out
// of scope from a context with no guard of its own, and nothing else can
// hold a snapshot to an object whose sole cell is being torn down.
func (c *StrongCell[T]) Drop() {
	h, _ := c.ptr.load()
	h.scheduleStrongDecrement(c.backend.UnprotectedGuard())
}
