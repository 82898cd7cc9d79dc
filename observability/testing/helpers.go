// Package testing provides in-memory OpenTelemetry providers and assertions for
// checking the spans and metrics emitted by API calls in unit tests.
//
//	tp := NewTestTraceProvider()
//	mp := NewTestMeterProvider()
//	c := httpclient.NewBuilder(log).WithTracerProvider(tp).WithMeterProvider(mp).Build()
//	// ... perform calls
//	NewSpanCollector(t, tp.Exporter).WithName("HTTP GET").AssertCount(1)
//	assert.Equal(t, int64(3), SumInt64(t, mp.Collect(t), "apiclient.attempts"))
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const metricNotFoundErrMsg = "metric %s not found"

// TestTraceProvider is an SDK TracerProvider that exports synchronously into memory.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider whose ended spans are available
// immediately through Exporter.GetSpans.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	return &TestTraceProvider{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		Exporter:       exporter,
	}
}

// TestMeterProvider is an SDK MeterProvider read on demand through a ManualReader.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider backed by a manual reader.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	return &TestMeterProvider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		Reader:        reader,
	}
}

// Collect reads the current state of every instrument.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// SpanCollector filters captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector snapshots the spans held by exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{t: t, spans: exporter.GetSpans()}
}

// Len returns the number of collected spans.
func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// WithName keeps the spans called name.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	var filtered tracetest.SpanStubs
	for i := range sc.spans {
		if sc.spans[i].Name == name {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// First returns the first span, failing the test when there is none.
func (sc *SpanCollector) First() tracetest.SpanStub {
	sc.t.Helper()
	require.NotEmpty(sc.t, sc.spans, "no spans in collection")
	return sc.spans[0]
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

// AssertSpanAttribute asserts that span carries key with the expected value.
// Supported expected types are string, int, int64, float64 and bool.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) != key {
			continue
		}
		switch v := expected.(type) {
		case string:
			assert.Equal(t, v, attr.Value.AsString(), "attribute %s", key)
		case int:
			assert.Equal(t, int64(v), attr.Value.AsInt64(), "attribute %s", key)
		case int64:
			assert.Equal(t, v, attr.Value.AsInt64(), "attribute %s", key)
		case float64:
			assert.InDelta(t, v, attr.Value.AsFloat64(), 1e-9, "attribute %s", key)
		case bool:
			assert.Equal(t, v, attr.Value.AsBool(), "attribute %s", key)
		default:
			t.Fatalf("unsupported attribute value type: %T", expected)
		}
		return
	}
	t.Errorf("attribute %s not found in span %s", key, span.Name)
}

// AssertSpanError asserts an error status, and its description when desc is not empty.
func AssertSpanError(t *testing.T, span *tracetest.SpanStub, desc string) {
	t.Helper()
	assert.Equal(t, codes.Error, span.Status.Code, "expected error status")
	if desc != "" {
		assert.Equal(t, desc, span.Status.Description)
	}
}

// EventsNamed returns the events of span called name.
func EventsNamed(span *tracetest.SpanStub, name string) []sdktrace.Event {
	var out []sdktrace.Event
	for _, ev := range span.Events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// FindMetric returns the metric called name, or nil.
func FindMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func int64Sum(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	m := FindMetric(rm, name)
	require.NotNil(t, m, metricNotFoundErrMsg, name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T, not Sum[int64]", name, m.Data)
	return sum
}

// SumInt64 totals an int64 counter over all attribute sets.
func SumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, dp := range int64Sum(t, rm, name).DataPoints {
		total += dp.Value
	}
	return total
}

// SumInt64ByAttribute groups an int64 counter by the value of one attribute,
// rendered with attribute.Value.Emit.
func SumInt64ByAttribute(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	out := make(map[string]int64)
	for _, dp := range int64Sum(t, rm, name).DataPoints {
		v, ok := dp.Attributes.Value(key)
		if !ok {
			continue
		}
		out[v.Emit()] += dp.Value
	}
	return out
}

// HistogramCount totals the recorded measurements of a float64 histogram.
func HistogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	m := FindMetric(rm, name)
	require.NotNil(t, m, metricNotFoundErrMsg, name)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is %T, not Histogram[float64]", name, m.Data)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	return count
}
