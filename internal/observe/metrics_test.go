package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect gathers all metrics from the reader into a flat name → data map.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.RecognitionDuration == nil || m.SessionsStarted == nil || m.QueueDepth == nil {
		t.Fatal("instruments not initialised")
	}
}

func TestRecordRecognition(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordRecognition(context.Background(), "de-CH", 120*time.Millisecond)
	m.RecordRecognition(context.Background(), "de-CH", 80*time.Millisecond)

	data := collect(t, reader)
	counter, ok := data["ordervox.recognitions"]
	if !ok {
		t.Fatal("ordervox.recognitions not collected")
	}
	sum, ok := counter.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", counter.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("recognitions total = %d, want 2", total)
	}
}

func TestRecordCacheLookup_Outcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordCacheLookup(context.Background(), true)
	m.RecordCacheLookup(context.Background(), true)
	m.RecordCacheLookup(context.Background(), false)

	data := collect(t, reader)
	sum, ok := data["ordervox.synthesis.cache.lookups"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("cache lookups not collected as int64 sum")
	}
	// One data point per outcome attribute.
	if len(sum.DataPoints) != 2 {
		t.Fatalf("got %d data points, want 2 (hit and miss)", len(sum.DataPoints))
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics must return the same instance")
	}
}
