// hp.go: hazard-pointer safe memory reclamation backend
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package hp implements the hazard-pointer SMR backend described in spec
// section 4.8: each thread owns a dynamically-growing array of
// protected-pointer slots, and reclamation scans every peer's slots before
// acting on a retired pointer.
package hp

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/agilira/cdrc/smr"
)

// DefaultScanThreshold is how many retirements a thread accumulates locally
// before scanning every peer's hazard slots, matching spec 4.8's "every k
// retirements" cadence.
const DefaultScanThreshold = 128

const initialSlotCount = 8

// Logger is the minimal structured-logging surface the backend reports
// slow-path events to. Only registration is logged; slot-array growth is
// not.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
}

type noOpLogger struct{}

func (noOpLogger) Debug(string, ...interface{}) {}

// Metrics is the minimal metrics-reporting surface the backend calls into on
// its retire/reclaim paths. It mirrors the root package's MetricsCollector
// without importing it, which would create an import cycle (cdrc imports
// smr/hp).
type Metrics interface {
	RecordRetire(backend string)
	RecordReclaim(backend string, count int)
	RecordEpochAdvance(newEpoch uint64)
}

type noOpMetrics struct{}

func (noOpMetrics) RecordRetire(string)       {}
func (noOpMetrics) RecordReclaim(string, int) {}
func (noOpMetrics) RecordEpochAdvance(uint64) {}

type record struct {
	ptr    unsafe.Pointer
	action func()
}

// thread is a single participant's hazard state: a slot array only it ever
// grows or assigns, and a retired list only it ever scans. Peers only ever
// read the slot array (via atomic loads), never mutate it.
type thread struct {
	slots atomic.Pointer[[]unsafe.Pointer]

	// used tracks which indices of *slots.Load() are currently claimed by a
	// live guard. Owner-only bookkeeping; never read by peers.
	used []bool

	retiredMu sync.Mutex
	retired   []record
	sinceScan uint64
}

func newThread() *thread {
	s := make([]unsafe.Pointer, initialSlotCount)
	t := &thread{used: make([]bool, initialSlotCount)}
	t.slots.Store(&s)
	return t
}

func (t *thread) acquireSlot() int {
	for i, inUse := range t.used {
		if !inUse {
			t.used[i] = true
			return i
		}
	}
	// Every slot is claimed: double the array and publish it with release
	// ordering so peers scanning concurrently see either the old or the new
	// array, never a torn one. The old array stays alive for as long as any
	// peer that already loaded it keeps a reference — Go's collector, not
	// this backend, is responsible for reclaiming it once that's no longer
	// true, so no explicit retire of the array itself is required here.
	old := *t.slots.Load()
	grown := make([]unsafe.Pointer, len(old)*2)
	copy(grown, old)
	t.slots.Store(&grown)

	grownUsed := make([]bool, len(grown))
	copy(grownUsed, t.used)
	idx := len(old)
	grownUsed[idx] = true
	t.used = grownUsed
	return idx
}

func (t *thread) publish(idx int, p unsafe.Pointer) {
	s := t.slots.Load()
	atomic.StorePointer(&(*s)[idx], p)
}

func (t *thread) clearSlot(idx int) {
	s := t.slots.Load()
	atomic.StorePointer(&(*s)[idx], nil)
	t.used[idx] = false
}

func (t *thread) protectedSet(into map[unsafe.Pointer]struct{}) {
	s := *t.slots.Load()
	for i := range s {
		if p := atomic.LoadPointer(&s[i]); p != nil {
			into[p] = struct{}{}
		}
	}
}

// Backend is the hazard-pointer smr.Backend.
type Backend struct {
	maxThreads    int
	scanThreshold atomic.Uint64
	logger        Logger
	metrics       Metrics

	mu      sync.Mutex
	threads []*thread

	defaultOnce sync.Once
	defaultIdx  int
}

// Option configures a Backend at construction time.
type Option func(*Backend)

// WithScanThreshold overrides DefaultScanThreshold.
func WithScanThreshold(n uint64) Option {
	return func(b *Backend) { b.scanThreshold.Store(n) }
}

// WithLogger attaches a debug-level logger to the backend.
func WithLogger(l Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithMetrics attaches a metrics collector to the backend's retire and
// reclaim paths.
func WithMetrics(m Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// NewBackend constructs a hazard-pointer backend that supports at most
// maxThreads concurrently-registered participants.
func NewBackend(maxThreads int, opts ...Option) *Backend {
	if maxThreads <= 0 {
		panic("hp: maxThreads must be positive")
	}
	b := &Backend{
		maxThreads: maxThreads,
		logger:     noOpLogger{},
		metrics:    noOpMetrics{},
	}
	b.scanThreshold.Store(DefaultScanThreshold)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetScanThreshold changes the scan cadence on a running backend. Safe to
// call concurrently with Pin/Retire; takes effect on the next Retire call.
func (b *Backend) SetScanThreshold(n uint64) {
	b.scanThreshold.Store(n)
}

// SetFrequency is a no-op on the hazard-pointer backend, which has no epoch
// counter. It exists so Backend satisfies callers that tune either backend
// kind through one interface.
func (b *Backend) SetFrequency(uint64) {}

// Register obtains a handle bound to a freshly-allocated thread slot. It is
// a fatal precondition violation to register more than maxThreads handles.
func (b *Backend) Register() smr.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.threads) >= b.maxThreads {
		panic(fmt.Sprintf("hp: registered more than max threads (%d)", b.maxThreads))
	}
	t := newThread()
	b.threads = append(b.threads, t)
	b.logger.Debug("hp: participant registered", "slot", len(b.threads)-1)
	return &handle{backend: b, thread: t}
}

// UnprotectedGuard retires through a shared default thread rather than a
// caller-registered one, per spec 9's note that the hazard-pointer
// equivalent of an unprotected guard "defers to the default thread".
func (b *Backend) UnprotectedGuard() smr.Guard {
	b.defaultOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.threads = append(b.threads, newThread())
		b.defaultIdx = len(b.threads) - 1
	})
	b.mu.Lock()
	t := b.threads[b.defaultIdx]
	b.mu.Unlock()
	return &guard{backend: b, thread: t}
}

func (b *Backend) protectedSet() map[unsafe.Pointer]struct{} {
	b.mu.Lock()
	threads := make([]*thread, len(b.threads))
	copy(threads, b.threads)
	b.mu.Unlock()

	set := make(map[unsafe.Pointer]struct{})
	for _, t := range threads {
		t.protectedSet(set)
	}
	return set
}

type handle struct {
	backend *Backend
	thread  *thread
}

func (h *handle) Pin() smr.Guard {
	return &guard{backend: h.backend, thread: h.thread}
}

type guard struct {
	backend *Backend
	thread  *thread
	claimed []int
}

// Protect publishes load's result to a reserved slot, then re-reads load and
// retries if the value changed before the publication was visible — the
// classic hazard-pointer publish-then-verify protocol.
func (g *guard) Protect(load func() unsafe.Pointer) unsafe.Pointer {
	idx := g.thread.acquireSlot()
	g.claimed = append(g.claimed, idx)
	for {
		p := load()
		g.thread.publish(idx, p)
		if p2 := load(); p2 == p {
			return p
		}
	}
}

// Retire appends ptr to this guard's thread's retired list and, every
// scanThreshold retirements, scans every registered thread's hazard slots
// and reclaims whatever isn't currently protected.
func (g *guard) Retire(ptr unsafe.Pointer, action func()) {
	t := g.thread
	t.retiredMu.Lock()
	t.retired = append(t.retired, record{ptr: ptr, action: action})
	t.sinceScan++
	due := t.sinceScan >= g.backend.scanThreshold.Load()
	if due {
		t.sinceScan = 0
	}
	t.retiredMu.Unlock()
	g.backend.metrics.RecordRetire("hp")
	if !due {
		return
	}

	protected := g.backend.protectedSet()
	t.retiredMu.Lock()
	remaining := t.retired[:0]
	var reclaim []record
	for _, r := range t.retired {
		if _, live := protected[r.ptr]; live {
			remaining = append(remaining, r)
		} else {
			reclaim = append(reclaim, r)
		}
	}
	t.retired = remaining
	t.retiredMu.Unlock()
	if len(reclaim) > 0 {
		g.backend.metrics.RecordReclaim("hp", len(reclaim))
	}
	for _, r := range reclaim {
		r.action()
	}
}

func (g *guard) Release() {
	for _, idx := range g.claimed {
		g.thread.clearSlot(idx)
	}
	g.claimed = nil
}

// Flush forces an immediate scan-and-reclaim pass on every registered
// thread's retired list, bypassing the scanThreshold cadence. Intended for
// deterministic teardown/tests, not the hot path.
func (b *Backend) Flush() {
	protected := b.protectedSet()
	b.mu.Lock()
	threads := make([]*thread, len(b.threads))
	copy(threads, b.threads)
	b.mu.Unlock()

	for _, t := range threads {
		t.retiredMu.Lock()
		remaining := t.retired[:0]
		var reclaim []record
		for _, r := range t.retired {
			if _, live := protected[r.ptr]; live {
				remaining = append(remaining, r)
			} else {
				reclaim = append(reclaim, r)
			}
		}
		t.retired = remaining
		t.sinceScan = 0
		t.retiredMu.Unlock()
		if len(reclaim) > 0 {
			b.metrics.RecordReclaim("hp", len(reclaim))
		}
		for _, r := range reclaim {
			r.action()
		}
	}
}
