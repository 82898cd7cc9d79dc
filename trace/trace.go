// Package trace carries request identifiers through context and onto outbound requests.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderXRequestID is the header used to correlate a call across client and server logs
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the stored request ID or a fresh UUID.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// Inject writes the request ID under header (HeaderXRequestID when empty) unless the
// caller already set one, then lets the global OTel propagator add trace context.
// It returns the request ID actually carried by h.
func Inject(ctx context.Context, h http.Header, header, requestID string) string {
	if header == "" {
		header = HeaderXRequestID
	}
	if existing := h.Get(header); existing != "" {
		requestID = existing
	} else {
		h.Set(header, requestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	return requestID
}
