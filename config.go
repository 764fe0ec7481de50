// config.go: configuration for cdrc backends
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import (
	"github.com/agilira/cdrc/smr"
	"github.com/agilira/cdrc/smr/epoch"
	"github.com/agilira/cdrc/smr/hp"
)

// BackendKind selects which safe-memory-reclamation strategy a Config
// builds.
type BackendKind int

const (
	// BackendEpoch selects smr/epoch: cheap Protect, deferred batch reclaim
	// gated by a global epoch counter. Default.
	BackendEpoch BackendKind = iota

	// BackendHazardPointer selects smr/hp: publish-then-verify Protect,
	// per-record reclaim once no hazard pointer still holds it.
	BackendHazardPointer
)

const (
	// DefaultMaxThreads is used when Config.MaxThreads is <= 0.
	DefaultMaxThreads = 64

	// DefaultEpochFrequency is used when Config.EpochFrequency is <= 0.
	DefaultEpochFrequency = 110

	// DefaultScanThreshold is used when Config.ScanThreshold is <= 0.
	DefaultScanThreshold = 100
)

// Config holds configuration parameters for a cdrc backend.
type Config struct {
	// Backend selects the reclamation strategy. Default: BackendEpoch.
	Backend BackendKind

	// MaxThreads is the maximum number of goroutines that may Register
	// against the backend concurrently. Must be > 0. Default:
	// DefaultMaxThreads.
	MaxThreads int

	// EpochFrequency is the per-participant factor of the epoch-advance
	// threshold: the global epoch advances once every EpochFrequency *
	// MaxThreads retires, counted across all participants. Only used when
	// Backend is BackendEpoch. Default: DefaultEpochFrequency.
	EpochFrequency uint64

	// ScanThreshold is how many retires a participant accumulates before
	// scanning hazard pointers for reclaimable records. Only used when
	// Backend is BackendHazardPointer. Default: DefaultScanThreshold.
	ScanThreshold uint64

	// Logger is used for slow-path diagnostic logging (registration, and
	// epoch advance on the epoch backend). If nil, NoOpLogger is used.
	Logger Logger

	// MetricsCollector is used for collecting reclamation-path metrics. If
	// nil, NoOpMetricsCollector is used (zero overhead).
	MetricsCollector MetricsCollector
}

// DefaultConfig returns a configuration with sensible defaults: the epoch
// backend, DefaultMaxThreads participants, no-op logging and metrics.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendEpoch,
		MaxThreads:       DefaultMaxThreads,
		EpochFrequency:   DefaultEpochFrequency,
		ScanThreshold:    DefaultScanThreshold,
		Logger:           NoOpLogger{},
		MetricsCollector: NoOpMetricsCollector{},
	}
}

// Validate normalizes zero-value fields to their defaults and rejects
// values that can never be normalized (a negative MaxThreads, an unknown
// Backend kind).
func (c *Config) Validate() error {
	if c.MaxThreads < 0 {
		return NewErrInvalidMaxThreads(c.MaxThreads)
	}
	if c.MaxThreads == 0 {
		c.MaxThreads = DefaultMaxThreads
	}

	if c.EpochFrequency == 0 {
		c.EpochFrequency = DefaultEpochFrequency
	}

	if c.ScanThreshold == 0 {
		c.ScanThreshold = DefaultScanThreshold
	}

	if c.Backend != BackendEpoch && c.Backend != BackendHazardPointer {
		return NewErrUnknownBackend(c.Backend)
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	return nil
}

// loggerAdapter satisfies both epoch.Logger and hp.Logger (each a
// single-method Debug interface) by forwarding to a cdrc.Logger.
type loggerAdapter struct{ l Logger }

func (a loggerAdapter) Debug(msg string, keyvals ...interface{}) { a.l.Debug(msg, keyvals...) }

// metricsAdapter satisfies both epoch.Metrics and hp.Metrics by forwarding to
// a cdrc.MetricsCollector.
type metricsAdapter struct{ m MetricsCollector }

func (a metricsAdapter) RecordRetire(backend string)             { a.m.RecordRetire(backend) }
func (a metricsAdapter) RecordReclaim(backend string, count int) { a.m.RecordReclaim(backend, count) }
func (a metricsAdapter) RecordEpochAdvance(newEpoch uint64)      { a.m.RecordEpochAdvance(newEpoch) }

// NewBackend validates c and constructs the concrete smr.Backend it
// describes. Config is consumed by value so later mutation of the caller's
// struct can't retroactively change a live backend's parameters.
func (c Config) NewBackend() (smr.Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Backend {
	case BackendHazardPointer:
		return hp.NewBackend(c.MaxThreads,
			hp.WithScanThreshold(c.ScanThreshold),
			hp.WithLogger(loggerAdapter{c.Logger}),
			hp.WithMetrics(metricsAdapter{c.MetricsCollector}),
		), nil
	default:
		return epoch.NewBackend(c.MaxThreads,
			epoch.WithFrequency(c.EpochFrequency),
			epoch.WithLogger(loggerAdapter{c.Logger}),
			epoch.WithMetrics(metricsAdapter{c.MetricsCollector}),
		), nil
	}
}
