// strong.go: owned strong reference
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import "github.com/agilira/cdrc/smr"

// NewStrong allocates a fresh header holding value and returns the one
// owned strong reference to it, without going through a StrongCell. Useful
// when building a node that will be published into a cell only after its
// own fields (e.g. a next pointer) are set up.
func NewStrong[T any](value T, backend smr.Backend, dispose Disposer[T], observe DestroyObserver) Strong[T] {
	return Strong[T]{h: newHeader(value, backend, dispose, observe)}
}

// Strong is an owned strong reference (spec 4.4): it holds one unit of
// strong count on a header, or is null. The zero value is null.
type Strong[T any] struct {
	h   *header[T]
	tag uint8
}

// IsNull reports whether this reference holds no header.
func (s Strong[T]) IsNull() bool {
	return s.h == nil
}

// Clone increments the strong count and returns a second owned reference to
// the same header. Calling Clone on a null reference returns null.
func (s Strong[T]) Clone(g smr.Guard) Strong[T] {
	if s.h != nil {
		s.h.addStrong(1)
	}
	return s
}

// Drop releases this reference's strong-count unit, deferred via g. A
// Strong value must not be used again after Drop.
func (s Strong[T]) Drop(g smr.Guard) {
	s.h.scheduleStrongDecrement(g)
}

// Deref returns the referenced payload. The caller asserts s is non-null;
// calling it on a null reference panics with a nil-pointer dereference, the
// same contract as the source's unsafe deref.
func (s Strong[T]) Deref() T {
	return s.h.value
}

// Tag returns the tag bits carried alongside this reference.
func (s Strong[T]) Tag() uint8 {
	return s.tag
}

// WithTag returns a copy of s carrying a different tag. Tag bits are
// orthogonal to identity (R2): they never affect the strong count.
func (s Strong[T]) WithTag(tag uint8) Strong[T] {
	return Strong[T]{h: s.h, tag: tag & maxTag}
}

// Untagged is shorthand for WithTag(0).
func (s Strong[T]) Untagged() Strong[T] {
	return s.WithTag(0)
}

// RefCount reports the header's current strong count, or 0 once it has
// observed zero.
func (s Strong[T]) RefCount() uint32 {
	if s.h == nil {
		return 0
	}
	return s.h.loadStrongCount()
}

// WeakCount reports the header's current weak count.
func (s Strong[T]) WeakCount() uint32 {
	if s.h == nil {
		return 0
	}
	return s.h.loadWeakCount()
}

// StrongFromSnapshot promotes snap to an owned strong reference by sticky-
// incrementing its header's strong count (spec 4.4's from_snapshot). Returns
// null if the increment observes the header already at strong=0.
func StrongFromSnapshot[T any](snap Snapshot[T], g smr.Guard) Strong[T] {
	if snap.h == nil {
		return Strong[T]{}
	}
	if !snap.h.addStrong(1) {
		return Strong[T]{}
	}
	return Strong[T]{h: snap.h, tag: snap.tag}
}
