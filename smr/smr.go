// smr.go: the pluggable safe-memory-reclamation interface
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package smr defines the capability set that the cdrc package's cells,
// strong references and snapshots need from a safe-memory-reclamation
// backend, independent of any concrete implementation. The two backends
// under smr/epoch and smr/hp each satisfy Backend without knowing anything
// about each other or about the payload types they end up protecting.
package smr

import "unsafe"

// Guard is a scoped critical-section token. All pointer loads and retires
// performed while a guard is active are safe from concurrent reclamation;
// releasing the guard ends that guarantee.
type Guard interface {
	// Protect calls load (possibly more than once) until it can guarantee
	// the returned pointer will stay valid for the remainder of the guard's
	// lifetime, then returns it. Epoch backends call load exactly once;
	// hazard-pointer backends publish-then-verify, retrying load as needed.
	Protect(load func() unsafe.Pointer) unsafe.Pointer

	// Retire schedules action to run once no guard that was active at the
	// time of this call can still observe ptr. ptr is used only as an
	// identity key by backends that need one (hazard pointers); it must be
	// the same address that was returned by a prior Protect call guarding
	// the object action will affect.
	Retire(ptr unsafe.Pointer, action func())

	// Release ends this guard's critical section. Guards must not be reused
	// after Release.
	Release()
}

// Handle is a per-thread (per-goroutine, in practice) registration token
// obtained once from a Backend.
type Handle interface {
	// Pin starts a new critical section and returns its guard.
	Pin() Guard
}

// Backend is the capability set a cdrc.StrongCell/WeakCell family is
// parameterized over: object creation is left to the caller (cdrc allocates
// headers itself, since Go's GC — not the backend — owns that memory), and
// the backend only needs to answer "is it safe to act on this pointer yet".
type Backend interface {
	// Register obtains a new per-goroutine handle. Each goroutine that will
	// touch a cell built on this backend must call Register once.
	Register() Handle

	// UnprotectedGuard returns a guard usable without first registering a
	// handle, for retiring a pointer from a context that owns exclusive
	// access to it already (e.g. a cell's own teardown). Epoch backends run
	// the retired action synchronously; hazard-pointer backends route it
	// through a default housekeeping thread.
	UnprotectedGuard() Guard
}
