package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	obtest "github.com/gaborage/apiclient/observability/testing"
	"github.com/gaborage/apiclient/testing/apitest"
)

func TestCallMetrics(t *testing.T) {
	mp := obtest.NewTestMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	srv := apitest.New(t)
	srv.Enqueue(
		apitest.Reply{Status: http.StatusTooManyRequests},
		apitest.Reply{Status: http.StatusTooManyRequests},
		apitest.Reply{Status: http.StatusOK, JSON: map[string]any{}},
	)

	c, _ := newTestClient(t, srv.URL, func(b *Builder) { b.WithMeterProvider(mp) })
	_, err := c.Get(context.Background(), &Request{})
	require.NoError(t, err)

	rm := mp.Collect(t)
	assert.Equal(t, int64(1), obtest.SumInt64(t, rm, metricCalls))
	assert.Equal(t, int64(3), obtest.SumInt64(t, rm, metricAttempts))
	assert.Equal(t, map[string]int64{"1": 1, "2": 1}, obtest.SumInt64ByAttribute(t, rm, metricRateLimited, attrAttempt))
	assert.Equal(t, map[string]int64{"200": 1, "429": 2}, obtest.SumInt64ByAttribute(t, rm, metricAttempts, attrStatus))
	assert.Equal(t, uint64(1), obtest.HistogramCount(t, rm, metricCallDuration))
}

func TestNilMetricsAreSkipped(t *testing.T) {
	var m *callMetrics
	assert.NotPanics(t, func() {
		m.recordCall(context.Background(), "GET")
		m.recordAttempt(context.Background(), "GET", Attempt{StatusCode: 200})
		m.recordRateLimited(context.Background(), 1)
		m.recordDuration(context.Background(), "GET", "success", 0)
	})
}

func TestCallSpans(t *testing.T) {
	tp := obtest.NewTestTraceProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	t.Run("success with retry", func(t *testing.T) {
		tp.Exporter.Reset()
		srv := apitest.New(t)
		srv.Enqueue(apitest.Reply{Status: http.StatusBadGateway})

		c, _ := newTestClient(t, srv.URL, func(b *Builder) { b.WithTracerProvider(tp) })
		_, err := c.Get(context.Background(), &Request{Path: "/v2/acts"})
		require.NoError(t, err)

		span := obtest.NewSpanCollector(t, tp.Exporter).WithName("HTTP GET").AssertCount(1).First()
		assert.Equal(t, codes.Ok, span.Status.Code)
		obtest.AssertSpanAttribute(t, &span, "url.full", srv.URL+"/v2/acts")
		obtest.AssertSpanAttribute(t, &span, "apiclient.attempts", 2)
		obtest.AssertSpanAttribute(t, &span, "http.response.status_code", 200)

		events := obtest.EventsNamed(&span, "attempt")
		require.Len(t, events, 2)
		assert.Contains(t, events[0].Attributes, attribute.String("apiclient.verdict", VerdictRetryable.String()))
		assert.Contains(t, events[1].Attributes, attribute.String("apiclient.verdict", VerdictSuccess.String()))
	})

	t.Run("terminal failure", func(t *testing.T) {
		tp.Exporter.Reset()
		srv := apitest.New(t)
		srv.Enqueue(apitest.Reply{Status: http.StatusForbidden, JSON: map[string]any{"error": map[string]any{"type": "insufficient-permissions", "message": "Forbidden"}}})

		c, _ := newTestClient(t, srv.URL, func(b *Builder) { b.WithTracerProvider(tp) })
		_, err := c.Delete(context.Background(), &Request{})
		require.Error(t, err)

		span := obtest.NewSpanCollector(t, tp.Exporter).WithName("HTTP DELETE").First()
		obtest.AssertSpanError(t, &span, "Forbidden")
		obtest.AssertSpanAttribute(t, &span, "error.type", "insufficient-permissions")
		obtest.AssertSpanAttribute(t, &span, "http.response.status_code", 403)
	})
}

func TestCallPropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	clientTP := obtest.NewTestTraceProvider()
	serverTP := obtest.NewTestTraceProvider()
	t.Cleanup(func() {
		_ = clientTP.Shutdown(context.Background())
		_ = serverTP.Shutdown(context.Background())
	})

	srv := apitest.New(t, apitest.WithTracing(serverTP))
	c, _ := newTestClient(t, srv.URL, func(b *Builder) { b.WithTracerProvider(clientTP) })

	_, err := c.Get(context.Background(), &Request{Path: "/v2/runs"})
	require.NoError(t, err)

	require.NotEmpty(t, srv.Requests()[0].Header.Get("Traceparent"))
	clientSpan := obtest.NewSpanCollector(t, clientTP.Exporter).First()
	require.Eventually(t, func() bool { return len(serverTP.Exporter.GetSpans()) == 1 }, time.Second, 10*time.Millisecond)
	serverSpan := serverTP.Exporter.GetSpans()[0]
	assert.Equal(t, clientSpan.SpanContext.TraceID(), serverSpan.SpanContext.TraceID())
	assert.Equal(t, clientSpan.SpanContext.SpanID(), serverSpan.Parent.SpanID())
}
