package httpclient

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gaborage/apiclient/httpclient"

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName, trace.WithInstrumentationVersion(Version))
}

// startCallSpan opens the client span covering every attempt of one call.
func (c *client) startCallSpan(ctx context.Context, d CallDescriptor) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "HTTP "+d.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", d.Method),
			attribute.String("url.full", d.URL()),
			attribute.String("apiclient.api_version", string(d.APIVersion)),
			attribute.Int("apiclient.max_attempts", d.MaxAttempts),
		),
	)
}

func recordAttemptEvent(span trace.Span, a Attempt, v Verdict) {
	attrs := []attribute.KeyValue{
		attribute.Int("apiclient.attempt", a.Ordinal),
		attribute.String("apiclient.verdict", v.String()),
	}
	if a.StatusCode > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", a.StatusCode))
	}
	if a.Err != nil {
		attrs = append(attrs, attribute.String("error.message", a.Err.Error()))
	}
	span.AddEvent("attempt", trace.WithAttributes(attrs...))
}

func endCallSpan(span trace.Span, resp *Response, err *APIError) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)
		span.SetAttributes(
			attribute.String("error.type", err.Type),
			attribute.Int("apiclient.attempts", err.Details.Attempt),
		)
		if err.Details.StatusCode > 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", err.Details.StatusCode))
		}
		return
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.Int("apiclient.attempts", resp.Stats.Attempts),
	)
	span.SetStatus(codes.Ok, "")
}
