// weak.go: the non-owning weak family (spec 4.6)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import "github.com/agilira/cdrc/smr"

// Weak is an owned weak reference: it holds one unit of weak count on a
// header, keeping the header addressable but not the payload. The zero
// value is null.
type Weak[T any] struct {
	h   *header[T]
	tag uint8
}

// WeakFromStrong derives a weak reference from a live strong reference,
// incrementing the header's weak count.
func WeakFromStrong[T any](s Strong[T], g smr.Guard) Weak[T] {
	if s.h == nil {
		return Weak[T]{}
	}
	s.h.addWeak(1)
	return Weak[T]{h: s.h, tag: s.tag}
}

// IsNull reports whether this reference holds no header.
func (w Weak[T]) IsNull() bool {
	return w.h == nil
}

// Clone increments the weak count and returns a second owned reference.
func (w Weak[T]) Clone(g smr.Guard) Weak[T] {
	if w.h != nil {
		w.h.addWeak(1)
	}
	return w
}

// Drop releases this reference's weak-count unit, deferred via g.
func (w Weak[T]) Drop(g smr.Guard) {
	w.h.scheduleWeakDecrement(g)
}

// Upgrade attempts to promote this weak reference to an owned strong
// reference by sticky-incrementing the strong count (spec 4.6). Succeeds
// iff the strong count had not already observed zero.
func (w Weak[T]) Upgrade(g smr.Guard) Strong[T] {
	if w.h == nil {
		return Strong[T]{}
	}
	if !w.h.addStrong(1) {
		return Strong[T]{}
	}
	return Strong[T]{h: w.h, tag: w.tag}
}

// Tag returns the tag bits carried alongside this reference.
func (w Weak[T]) Tag() uint8 {
	return w.tag
}

// WithTag returns a copy of w carrying a different tag.
func (w Weak[T]) WithTag(tag uint8) Weak[T] {
	return Weak[T]{h: w.h, tag: tag & maxTag}
}

// WeakCell is the weak-family analogue of StrongCell: an atomic cell holding
// a tagged pointer that, when non-null, owns one unit of weak count.
type WeakCell[T any] struct {
	ptr     *taggedPointer[T]
	backend smr.Backend
}

// NewWeakCell publishes w into a fresh cell, consuming w's ownership.
func NewWeakCell[T any](w Weak[T], backend smr.Backend) *WeakCell[T] {
	return &WeakCell[T]{ptr: newTaggedPointer[T](w.h, w.tag), backend: backend}
}

// NullWeakCell constructs a cell holding null.
func NullWeakCell[T any](backend smr.Backend) *WeakCell[T] {
	return &WeakCell[T]{ptr: newTaggedPointer[T](nil, 0), backend: backend}
}

// Load returns an SMR-protected, non-owning view of the cell's contents.
func (c *WeakCell[T]) Load(g smr.Guard) WeakSnapshot[T] {
	h, tag := loadProtected[T](g, c.ptr.load)
	return WeakSnapshot[T]{h: h, tag: tag}
}

// Store installs w, transferring its weak-count ownership into the cell.
// The previously-held pointer is scheduled for a delayed weak-decrement.
func (c *WeakCell[T]) Store(w Weak[T], g smr.Guard) {
	oldH, _ := c.ptr.swap(w.h, w.tag)
	oldH.scheduleWeakDecrement(g)
}

// Swap installs w and returns the displaced pointer as an owned weak
// reference.
func (c *WeakCell[T]) Swap(w Weak[T], g smr.Guard) Weak[T] {
	oldH, oldTag := c.ptr.swap(w.h, w.tag)
	return Weak[T]{h: oldH, tag: oldTag}
}

// Drop schedules the cell's held pointer for a delayed weak-decrement using
// an unprotected guard, mirroring StrongCell.Drop.
func (c *WeakCell[T]) Drop() {
	h, _ := c.ptr.load()
	h.scheduleWeakDecrement(c.backend.UnprotectedGuard())
}

// WeakSnapshot is the weak family's SMR-protected, non-owning view.
type WeakSnapshot[T any] struct {
	h   *header[T]
	tag uint8
}

// IsNull reports whether this snapshot holds no header.
func (s WeakSnapshot[T]) IsNull() bool {
	return s.h == nil
}

// Tag returns the tag bits observed alongside this snapshot.
func (s WeakSnapshot[T]) Tag() uint8 {
	return s.tag
}

// Upgrade attempts to promote this snapshot to an owned strong reference,
// with the same contract as Weak.Upgrade.
func (s WeakSnapshot[T]) Upgrade(g smr.Guard) Strong[T] {
	if s.h == nil {
		return Strong[T]{}
	}
	if !s.h.addStrong(1) {
		return Strong[T]{}
	}
	return Strong[T]{h: s.h, tag: s.tag}
}

// AsWeak promotes this snapshot to an owned weak reference.
func (s WeakSnapshot[T]) AsWeak(g smr.Guard) Weak[T] {
	if s.h == nil {
		return Weak[T]{}
	}
	s.h.addWeak(1)
	return Weak[T]{h: s.h, tag: s.tag}
}
