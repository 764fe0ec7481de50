// interfaces.go: public interfaces for cdrc
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

// Logger defines a minimal logging interface with zero overhead.
// Implementations should use structured logging and be allocation-free.
// The epoch and hazard-pointer backends log only slow-path events
// (registration, and epoch advance on the epoch backend) at Debug level.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})

	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
}

// NoOpLogger is a logger that does nothing. Used as the default to avoid nil
// checks on every log call.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, keyvals ...interface{}) {}
func (NoOpLogger) Info(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Warn(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Error(msg string, keyvals ...interface{}) {}

// MetricsCollector records reclamation-path metrics (retirements, reclaim
// batch sizes, epoch advances). Implementations must be safe for concurrent
// use and fast enough to call from a retire path.
type MetricsCollector interface {
	// RecordRetire is called once per Retire call, with the backend name
	// ("epoch" or "hp") that handled it.
	RecordRetire(backend string)

	// RecordReclaim is called once per reclamation sweep or scan that ejects
	// at least one record, with the number of records it ejected. A sweep
	// that ejects nothing is not reported.
	RecordReclaim(backend string, count int)

	// RecordEpochAdvance is called each time the epoch backend bumps its
	// global epoch counter.
	RecordEpochAdvance(newEpoch uint64)
}

// NoOpMetricsCollector is a MetricsCollector that does nothing. Used as the
// default so the reclamation path never pays for metrics it doesn't want.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordRetire(backend string)             {}
func (NoOpMetricsCollector) RecordReclaim(backend string, count int) {}
func (NoOpMetricsCollector) RecordEpochAdvance(newEpoch uint64)      {}
