// doc.go: package documentation for cdrc
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package cdrc provides concurrent, deferred reference-counted cells for
// atomically shared objects: a set of generic types (StrongCell, WeakCell,
// Strong, Weak, Snapshot) that let multiple goroutines load, swap and
// compare-and-swap a shared pointer without taking a lock, while a pluggable
// safe-memory-reclamation backend (epoch-based or hazard-pointer) guarantees
// a loaded Snapshot stays valid for as long as its guard is held.
//
// # Overview
//
// cdrc is designed for lock-free data structures (lists, trees, queues)
// whose nodes are shared and reference-counted across goroutines:
//
//   - Deferred reclamation: a dropped reference never blocks on readers; the
//     underlying object is disposed only once no guard can still observe it.
//   - Two backends: smr/epoch (cheap Protect, batched global reclaim) and
//     smr/hp (publish-then-verify Protect, per-record reclaim), chosen via
//     Config.Backend.
//   - Tagged pointers: every cell stores an 8-bit tag alongside its pointer,
//     swapped atomically with it, for mark bits in lock-free algorithms
//     (e.g. a logically-deleted list node).
//   - Sticky counters: once a strong or weak count reaches zero it never
//     moves again, so a concurrent increment-from-zero is rejected rather
//     than resurrecting a disposed object.
//
// # Quick start
//
//	backend, err := cdrc.DefaultConfig().NewBackend()
//	if err != nil {
//		log.Fatal(err)
//	}
//	handle := backend.Register()
//	g := handle.Pin()
//	defer g.Release()
//
//	cell := cdrc.NewStrongCell(42, backend, nil, nil)
//	snap := cell.Load(g)
//	fmt.Println(snap.Deref())
//
// # Reference counting
//
// Strong references keep a payload alive; Weak references observe a header
// without keeping its payload alive. Disposer runs exactly once, when the
// last Strong reference drops; DestroyObserver runs exactly once, when the
// last Weak reference (which in cdrc always outlives the strong count,
// since every live Strong implicitly holds a weak unit) drops.
//
// # Backends
//
// Both smr/epoch and smr/hp implement smr.Backend and can be swapped via
// Config.Backend without touching cell code. Config.NewBackend constructs
// the concrete backend; HotConfig retunes EpochFrequency or ScanThreshold on
// a running backend from a watched configuration file, using
// github.com/agilira/argus.
//
// # Observability
//
// Logger and MetricsCollector are optional hooks; both default to no-op
// implementations so the hot path never pays for diagnostics it doesn't
// want. See the cdrc/otel subpackage for a MetricsCollector backed by
// OpenTelemetry.
//
// # Errors
//
// Config.Validate (called internally by Config.NewBackend) returns
// structured errors from github.com/agilira/go-errors for malformed
// configuration. Hot-path operations (CompareExchange losing a race,
// Upgrade on an expired target) are never errors: they are ordinary
// false/null return values, per their doc comments.
package cdrc
