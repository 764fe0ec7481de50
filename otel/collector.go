// collector.go: OpenTelemetry MetricsCollector for cdrc
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package otel provides an OpenTelemetry implementation of cdrc.MetricsCollector.
//
// # Usage
//
//	provider := metric.NewMeterProvider(metric.WithReader(exporter))
//	collector, err := cdrcotel.NewOTelMetricsCollector(provider)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := cdrc.DefaultConfig()
//	cfg.MetricsCollector = collector
//	backend, _ := cfg.NewBackend()
//
// # Metrics exposed
//
//   - cdrc_retires_total: counter of Retire calls, by backend
//   - cdrc_reclaims_total: counter of records actually reclaimed, by backend
//   - cdrc_epoch_advances_total: counter of global epoch advances
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func backendAttr(backend string) attribute.KeyValue {
	return attribute.String("backend", backend)
}

// OTelMetricsCollector implements cdrc.MetricsCollector using OpenTelemetry.
//
// Thread-safety: safe for concurrent use; the underlying OTEL instruments
// are thread-safe and lock-free.
type OTelMetricsCollector struct {
	retires       metric.Int64Counter
	reclaims      metric.Int64Counter
	epochAdvances metric.Int64Counter
}

// Options configures OTelMetricsCollector.
type Options struct {
	// MeterName is the name of the OpenTelemetry meter.
	// Default: "github.com/agilira/cdrc"
	MeterName string
}

// Option is a functional option for configuring OTelMetricsCollector.
type Option func(*Options)

// WithMeterName sets a custom meter name.
func WithMeterName(name string) Option {
	return func(o *Options) { o.MeterName = name }
}

// NewOTelMetricsCollector creates a collector backed by provider. provider
// must not be nil.
func NewOTelMetricsCollector(provider metric.MeterProvider, opts ...Option) (*OTelMetricsCollector, error) {
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}

	options := Options{MeterName: "github.com/agilira/cdrc"}
	for _, opt := range opts {
		opt(&options)
	}

	meter := provider.Meter(options.MeterName)
	c := &OTelMetricsCollector{}

	var err error
	c.retires, err = meter.Int64Counter(
		"cdrc_retires_total",
		metric.WithDescription("Total number of Retire calls"),
	)
	if err != nil {
		return nil, err
	}

	c.reclaims, err = meter.Int64Counter(
		"cdrc_reclaims_total",
		metric.WithDescription("Total number of records reclaimed"),
	)
	if err != nil {
		return nil, err
	}

	c.epochAdvances, err = meter.Int64Counter(
		"cdrc_epoch_advances_total",
		metric.WithDescription("Total number of global epoch advances"),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RecordRetire implements cdrc.MetricsCollector.
func (c *OTelMetricsCollector) RecordRetire(backend string) {
	c.retires.Add(context.Background(), 1, metric.WithAttributes(backendAttr(backend)))
}

// RecordReclaim implements cdrc.MetricsCollector.
func (c *OTelMetricsCollector) RecordReclaim(backend string, count int) {
	if count <= 0 {
		return
	}
	c.reclaims.Add(context.Background(), int64(count), metric.WithAttributes(backendAttr(backend)))
}

// RecordEpochAdvance implements cdrc.MetricsCollector.
func (c *OTelMetricsCollector) RecordEpochAdvance(newEpoch uint64) {
	c.epochAdvances.Add(context.Background(), 1)
}
