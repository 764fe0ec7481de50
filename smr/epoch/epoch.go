// epoch.go: epoch-based safe memory reclamation backend
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package epoch implements the epoch-based SMR backend described in spec
// section 4.7: participants announce the current global epoch on entering a
// critical section, and a retired pointer is safe to act on once the minimum
// announced epoch among all participants has advanced past the pointer's
// retire-time epoch.
package epoch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	timecache "github.com/agilira/go-timecache"

	"github.com/agilira/cdrc/smr"
)

// idle marks a participant slot as not currently in a critical section.
const idle = ^uint64(0)

// DefaultFrequency is the per-participant factor of the epoch-advance
// threshold: the global epoch advances once every DefaultFrequency *
// maxThreads retire() calls, counted across the whole backend, matching spec
// 4.7's "EPOCH_FREQUENCY * num_threads" heuristic with EPOCH_FREQUENCY = 64.
const DefaultFrequency = 64

// Logger is the minimal structured-logging surface the backend reports
// slow-path events to (registration, epoch advance). It mirrors the rest of
// the module's ambient Logger interface without importing the root package,
// which would create an import cycle (cdrc imports smr/epoch).
type Logger interface {
	Debug(msg string, keyvals ...interface{})
}

type noOpLogger struct{}

func (noOpLogger) Debug(string, ...interface{}) {}

// Metrics is the minimal metrics-reporting surface the backend calls into on
// its retire/reclaim/epoch-advance paths. It mirrors the root package's
// MetricsCollector without importing it, which would create an import cycle
// (cdrc imports smr/epoch).
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
	ptr        unsafe.Pointer
	action     func()
	retireAt   uint64
	retireTime int64
}

type participant struct {
	// epoch holds this participant's announced epoch, or idle when outside
	// a critical section. Owned by exactly one goroutine at a time.
	epoch atomic.Uint64

	// Padding keeps neighboring participants on separate cache lines; hot
	// pinning traffic from one goroutine must not false-share with another's.
	_ [56]byte

	mu       sync.Mutex
	deferred []record
}

// Backend is the epoch-based smr.Backend. It requires a fixed maximum
// participant count fixed at construction, per spec 5's "Participant
// registration" paragraph.
type Backend struct {
	maxThreads int
	frequency  atomic.Uint64
	logger     Logger
	metrics    Metrics

	globalEpoch atomic.Uint64
	nextSlot    atomic.Int64
	slots       []participant

	workDone atomic.Uint64
}

// Option configures a Backend at construction time.
type Option func(*Backend)

// WithFrequency overrides DefaultFrequency.
func WithFrequency(n uint64) Option {
	return func(b *Backend) { b.frequency.Store(n) }
}

// WithLogger attaches a debug-level logger to the backend.
func WithLogger(l Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithMetrics attaches a metrics collector to the backend's retire, reclaim
// and epoch-advance paths.
func WithMetrics(m Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// NewBackend constructs an epoch backend that supports at most maxThreads
// concurrently-registered participants.
func NewBackend(maxThreads int, opts ...Option) *Backend {
	if maxThreads <= 0 {
		panic("epoch: maxThreads must be positive")
	}
	b := &Backend{
		maxThreads: maxThreads,
		logger:     noOpLogger{},
		metrics:    noOpMetrics{},
		slots:      make([]participant, maxThreads),
	}
	b.frequency.Store(DefaultFrequency)
	for i := range b.slots {
		b.slots[i].epoch.Store(idle)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Reset clears all registrations, allowing the backend's slots to be handed
// out again. Callers must guarantee no goroutine holds a live Handle or
// Guard from before the reset.
func (b *Backend) Reset() {
	b.nextSlot.Store(0)
	for i := range b.slots {
		b.slots[i].epoch.Store(idle)
		b.slots[i].mu.Lock()
		b.slots[i].deferred = nil
		b.slots[i].mu.Unlock()
	}
	b.globalEpoch.Store(0)
	b.workDone.Store(0)
}

// Register obtains a handle bound to the next free participant slot. It is
// a fatal precondition violation to register more than maxThreads handles.
func (b *Backend) Register() smr.Handle {
	idx := b.nextSlot.Add(1) - 1
	if int(idx) >= b.maxThreads {
		panic(fmt.Sprintf("epoch: registered more than max threads (%d)", b.maxThreads))
	}
	b.logger.Debug("epoch: participant registered", "slot", idx)
	return &handle{backend: b, slot: int(idx)}
}

// UnprotectedGuard runs retired actions synchronously: nothing else can hold
// a snapshot of an object whose only cell is being torn down exclusively,
// so there is nothing to wait for.
func (b *Backend) UnprotectedGuard() smr.Guard {
	return &unprotectedGuard{backend: b}
}

// SetFrequency changes the epoch-advance threshold on a running backend.
// Safe to call concurrently with Pin/Retire; takes effect on the next
// maybeAdvance check.
func (b *Backend) SetFrequency(n uint64) {
	b.frequency.Store(n)
}

// SetScanThreshold is a no-op on the epoch backend, which has no hazard
// pointer scan cadence. It exists so Backend satisfies callers that tune
// either backend kind through one interface.
func (b *Backend) SetScanThreshold(uint64) {}

func (b *Backend) minAnnouncedEpoch() uint64 {
	min := idle
	for i := range b.slots {
		e := b.slots[i].epoch.Load()
		if e != idle && e < min {
			min = e
		}
	}
	return min
}

// maybeAdvance bumps the global epoch once enough retire-work has
// accumulated, per spec 4.7's "heuristic threshold of client work" rule.
func (b *Backend) maybeAdvance() {
	threshold := b.frequency.Load() * uint64(b.maxThreads)
	if threshold == 0 {
		threshold = DefaultFrequency
	}
	if b.workDone.Add(1)%threshold == 0 {
		newEpoch := b.globalEpoch.Add(1)
		b.logger.Debug("epoch: global epoch advanced", "epoch", newEpoch)
		b.metrics.RecordEpochAdvance(newEpoch)
	}
}

type handle struct {
	backend *Backend
	slot    int
}

func (h *handle) Pin() smr.Guard {
	cur := h.backend.globalEpoch.Load()
	h.backend.slots[h.slot].epoch.Store(cur)
	return &guard{backend: h.backend, slot: h.slot, epoch: cur}
}

type guard struct {
	backend *Backend
	slot    int
	epoch   uint64
}

// Protect needs no retry protocol under epoch reclamation: the critical
// section itself is what keeps the object alive, so a single load suffices.
func (g *guard) Protect(load func() unsafe.Pointer) unsafe.Pointer {
	return load()
}

func (g *guard) Retire(ptr unsafe.Pointer, action func()) {
	p := &g.backend.slots[g.slot]
	p.mu.Lock()
	p.deferred = append(p.deferred, record{
		ptr:        ptr,
		action:     action,
		retireAt:   g.epoch,
		retireTime: timecache.CachedTimeNano(),
	})
	p.mu.Unlock()
	g.backend.metrics.RecordRetire("epoch")
	g.backend.maybeAdvance()
	g.sweep()
}

func (g *guard) Release() {
	g.backend.slots[g.slot].epoch.Store(idle)
}

// sweep drains this participant's deferred list, running the eject action
// for every record whose retire epoch is now older than every live
// participant's announced epoch.
func (g *guard) sweep() {
	min := g.backend.minAnnouncedEpoch()
	p := &g.backend.slots[g.slot]

	p.mu.Lock()
	var ready []record
	remaining := p.deferred[:0]
	for _, r := range p.deferred {
		if r.retireAt < min {
			ready = append(ready, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	p.deferred = remaining
	p.mu.Unlock()

	if len(ready) > 0 {
		g.backend.metrics.RecordReclaim("epoch", len(ready))
	}
	for _, r := range ready {
		r.action()
	}
}

// unprotectedGuard executes retired actions immediately, matching spec 9's
// "Unprotected guard" note: used when tearing down a cell with exclusive
// access, where no snapshot can possibly be racing the retire.
type unprotectedGuard struct {
	backend *Backend
}

func (unprotectedGuard) Protect(load func() unsafe.Pointer) unsafe.Pointer {
	return load()
}

func (g unprotectedGuard) Retire(_ unsafe.Pointer, action func()) {
	g.backend.metrics.RecordRetire("epoch")
	action()
}

func (unprotectedGuard) Release() {}

// Drain runs sweep on every participant until all deferred lists are empty,
// because an eject action may itself schedule further deferred work (e.g. a
// Dispose that drops a field holding another cdrc cell). Intended for
// deterministic teardown/tests, not the hot path.
func (b *Backend) Drain() {
	for {
		anyWork := false
		for i := range b.slots {
			b.slots[i].mu.Lock()
			n := len(b.slots[i].deferred)
			b.slots[i].mu.Unlock()
			if n == 0 {
				continue
			}
			anyWork = true
			g := &guard{backend: b, slot: i, epoch: b.globalEpoch.Load()}
			g.sweep()
		}
		if !anyWork {
			return
		}
	}
}
