package httpclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/gaborage/apiclient/httpclient"

	metricCalls        = "apiclient.calls"
	metricAttempts     = "apiclient.attempts"
	metricRateLimited  = "apiclient.rate_limited"
	metricCallDuration = "apiclient.call.duration"

	attrMethod  = "http.request.method"
	attrStatus  = "http.response.status_code"
	attrAttempt = "apiclient.attempt"
	attrOutcome = "apiclient.outcome"
)

var callDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// callMetrics mirrors CallStats into OpenTelemetry instruments.
// Instruments that fail to initialize are left nil and skipped.
type callMetrics struct {
	calls       metric.Int64Counter
	attempts    metric.Int64Counter
	rateLimited metric.Int64Counter
	duration    metric.Float64Histogram
}

func newCallMetrics(mp metric.MeterProvider) (*callMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName, metric.WithInstrumentationVersion(Version))

	m := &callMetrics{}
	var err error
	if m.calls, err = meter.Int64Counter(metricCalls,
		metric.WithDescription("Number of API calls initiated"),
		metric.WithUnit("{call}"),
	); err != nil {
		return m, err
	}
	if m.attempts, err = meter.Int64Counter(metricAttempts,
		metric.WithDescription("Number of HTTP attempts sent"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return m, err
	}
	if m.rateLimited, err = meter.Int64Counter(metricRateLimited,
		metric.WithDescription("Number of 429 responses by attempt ordinal"),
		metric.WithUnit("{response}"),
	); err != nil {
		return m, err
	}
	if m.duration, err = meter.Float64Histogram(metricCallDuration,
		metric.WithDescription("Duration of API calls including retries and backoff"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callDurationBuckets...),
	); err != nil {
		return m, err
	}
	return m, nil
}

func (m *callMetrics) recordCall(ctx context.Context, method string) {
	if m == nil || m.calls == nil {
		return
	}
	m.calls.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
}

func (m *callMetrics) recordAttempt(ctx context.Context, method string, a Attempt) {
	if m == nil || m.attempts == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(attrMethod, method)}
	if a.StatusCode > 0 {
		attrs = append(attrs, attribute.Int(attrStatus, a.StatusCode))
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *callMetrics) recordRateLimited(ctx context.Context, ordinal int) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.Int(attrAttempt, ordinal)))
}

func (m *callMetrics) recordDuration(ctx context.Context, method, outcome string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
	))
}
