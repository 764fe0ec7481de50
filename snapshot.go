// snapshot.go: thread-local, SMR-protected view of a cell
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import (
	"unsafe"

	"github.com/agilira/cdrc/smr"
)

// Snapshot is a thread-local, SMR-protected view of a header (spec 4.5). It
// owns no strong-count unit and must not outlive the guard it was obtained
// with (P6). The zero value is a null snapshot.
type Snapshot[T any] struct {
	h   *header[T]
	tag uint8
}

// IsNull reports whether this snapshot holds no header.
func (s Snapshot[T]) IsNull() bool {
	return s.h == nil
}

// Tag returns the tag bits observed alongside this snapshot.
func (s Snapshot[T]) Tag() uint8 {
	return s.tag
}

// WithTag returns a copy of s carrying a different tag.
func (s Snapshot[T]) WithTag(tag uint8) Snapshot[T] {
	return Snapshot[T]{h: s.h, tag: tag & maxTag}
}

// Protect re-protects strong's header under g and returns the resulting
// snapshot, per spec 4.5's protect(strong, guard). This actually publishes a
// hazard slot (or, on epoch backends, confirms the current epoch) the same
// way a cell Load does — a Snapshot is only as safe as the guard that
// produced it, not merely a copy of strong's fields.
func Protect[T any](strong Strong[T], g smr.Guard) Snapshot[T] {
	if strong.h == nil {
		return Snapshot[T]{}
	}
	h, tag := strong.h, strong.tag
	loaded := g.Protect(func() unsafe.Pointer {
		return unsafe.Pointer(h)
	})
	return Snapshot[T]{h: (*header[T])(loaded), tag: tag}
}

// Deref returns the referenced payload. Valid only while the snapshot's
// guard is still held (P6); the caller asserts non-null.
func (s Snapshot[T]) Deref() T {
	return s.h.value
}

// AsRef returns a pointer to the referenced payload, for callers that want
// to avoid copying T. Carries the same non-null, guard-lifetime contract as
// Deref.
func (s Snapshot[T]) AsRef() *T {
	return &s.h.value
}

// AsStrong attempts to promote this snapshot to an owned strong reference,
// sticky-incrementing the strong count. Returns null if the header had
// already observed strong=0.
func (s Snapshot[T]) AsStrong(g smr.Guard) Strong[T] {
	return StrongFromSnapshot(s, g)
}
