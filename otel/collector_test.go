package otel

import (
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
)

func TestNewOTelMetricsCollectorRejectsNilProvider(t *testing.T) {
	if _, err := NewOTelMetricsCollector(nil); err == nil {
		t.Fatal("NewOTelMetricsCollector(nil) must return an error")
	}
}

func TestOTelMetricsCollectorRecordsWithoutPanicking(t *testing.T) {
	provider := metric.NewMeterProvider()
	c, err := NewOTelMetricsCollector(provider)
	if err != nil {
		t.Fatalf("NewOTelMetricsCollector failed: %v", err)
	}

	c.RecordRetire("epoch")
	c.RecordReclaim("epoch", 3)
	c.RecordReclaim("hp", 0)
	c.RecordEpochAdvance(42)
}

func TestWithMeterNameOverridesDefault(t *testing.T) {
	provider := metric.NewMeterProvider()
	c, err := NewOTelMetricsCollector(provider, WithMeterName("custom"))
	if err != nil {
		t.Fatalf("NewOTelMetricsCollector failed: %v", err)
	}
	if c == nil {
		t.Fatal("expected a non-nil collector")
	}
}
