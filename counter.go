// counter.go: wait-free sticky reference counter
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package cdrc

import "sync/atomic"

// Sticky counter bit layout: the top two bits of the 32-bit word are stolen
// for bookkeeping, leaving [1, 2^30-1] as the usable value range.
const (
	zeroFlag        uint32 = 1 << 31
	zeroPendingFlag uint32 = 1 << 30
	counterMask     uint32 = zeroPendingFlag - 1

	// MaxCounterValue is the largest value a sticky counter can represent.
	MaxCounterValue = counterMask
)

// stickyCounter is a wait-free atomic counter whose zero observation is
// permanent: once the counter is seen at zero, every later increment is
// detected as coming-from-zero and discarded.
type stickyCounter struct {
	v atomic.Uint32
}

func newStickyCounter(initial uint32) *stickyCounter {
	c := &stickyCounter{}
	if initial == 0 {
		c.v.Store(zeroFlag)
	} else {
		c.v.Store(initial)
	}
	return c
}

// increment adds n unconditionally and reports whether the pre-update value
// had not yet observed zero. On failure the added units are harmless: the
// zero flag is sticky, so they can never cause another zero-to-nonzero
// transition.
func (c *stickyCounter) increment(n uint32) bool {
	pre := c.v.Add(n) - n
	return pre&zeroFlag == 0
}

// decrement subtracts n and reports whether this call was the one that drove
// the counter to zero. The caller must never decrement by more than the
// counter currently holds.
func (c *stickyCounter) decrement(n uint32) bool {
	post := c.v.Add(^(n - 1)) // two's-complement subtraction
	pre := post + n
	if pre != n {
		return false
	}

	// The raw value just hit zero; commit the zero flag.
	if c.v.CompareAndSwap(0, zeroFlag) {
		return true
	}

	// A concurrent load() observed zero first and set zeroPendingFlag.
	// Swap zeroFlag in (clearing the pending flag) and report whether the
	// pending flag had been set, per spec 3 (Sticky Counter operations).
	if c.v.Load()&zeroPendingFlag == 0 {
		return false
	}
	return c.v.Swap(zeroFlag)&zeroPendingFlag != 0
}

// load returns the current value and whether the counter is still live. Once
// it reports zero, it is guaranteed to report zero for the counter's entire
// remaining lifetime.
func (c *stickyCounter) load() (uint32, bool) {
	v := c.v.Load()
	if v != 0 && v&zeroFlag == 0 {
		return v, true
	}
	if v&zeroFlag != 0 {
		return 0, false
	}

	// v == 0: no decrementer has committed the flag yet. Race to mark the
	// counter as pending-zero so a concurrent decrement() can detect us.
	for {
		if c.v.CompareAndSwap(0, zeroFlag|zeroPendingFlag) {
			return 0, false
		}
		v = c.v.Load()
		if v&zeroFlag != 0 {
			return 0, false
		}
		if v != 0 {
			return v, true
		}
	}
}
