package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apitrace "github.com/gaborage/apiclient/trace"
)

const (
	// HeaderXRequestID is the default header carrying the per-call request ID
	HeaderXRequestID = apitrace.HeaderXRequestID
)

// Client executes API calls with retries and structured errors.
type Client interface {
	// Call executes req and returns the full response envelope.
	Call(ctx context.Context, req *Request) (*Response, error)
	// CallJSON executes req and returns only the decoded payload.
	CallJSON(ctx context.Context, req *Request) (any, error)
	Get(ctx context.Context, req *Request) (*Response, error)
	Head(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
	// Stats returns a point-in-time copy of the client's call counters.
	Stats() StatsSnapshot
}

// APIVersion selects the error taxonomy used for failures of a call.
type APIVersion string

const (
	// APIv1 is the legacy API; errors use upper-case type tags.
	APIv1 APIVersion = "v1"
	// APIv2 is the current API and the default.
	APIv2 APIVersion = "v2"
)

// Request describes one API operation. Zero values fall back to the client Config.
type Request struct {
	// BaseURL overrides Config.BaseURL, e.g. "https://api.example.com/v2".
	BaseURL string
	// Path is appended to the base URL, e.g. "/acts/abc/runs".
	Path   string
	Method string

	// TokenRequired makes a missing token an invalid-parameter error.
	TokenRequired bool
	// Token overrides Config.Token. It is sent as the "token" query parameter.
	Token string

	Query   map[string]string
	Headers map[string]string

	// Body is JSON-encoded unless Raw is set, in which case it must be a string or []byte.
	Body any
	// RawBody is sent verbatim. It cannot be combined with Body.
	RawBody []byte
	// Raw disables JSON content negotiation for both the request and the response.
	Raw bool

	BackoffBase   time.Duration
	MaxAttempts   int
	RetryOnStatus []int
	APIVersion    APIVersion
}

// Response is the envelope of a successful call.
type Response struct {
	StatusCode int
	Body       []byte
	// Payload is the decoded JSON body; nil for raw calls or empty bodies.
	Payload any
	Headers nethttp.Header
	Stats   Stats
}

// Stats contains per-call execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
}

// RequestInterceptor is called before each attempt is sent
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after each attempt's response is read
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds client-wide defaults and collaborators.
type Config struct {
	BaseURL    string
	Token      string
	APIVersion APIVersion

	// Timeout bounds a single attempt. Zero leaves only the network stack's limits.
	Timeout time.Duration
	// MaxAttempts caps the attempts of one call (default 8).
	MaxAttempts int
	// BackoffBase is the delay before the second attempt (default 500ms); it doubles per attempt.
	BackoffBase time.Duration
	// DisableJitter makes backoff delays deterministic.
	DisableJitter bool
	// MaxRetryAfter caps waits requested by Retry-After headers (default 60s).
	MaxRetryAfter time.Duration
	// RetryOnStatus lists statuses retried in addition to 5xx (default {429}).
	RetryOnStatus []int

	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor

	// UserAgent replaces the generated client identification string.
	UserAgent string
	// RequestIDHeader configures the header used for request ID propagation (default: X-Request-ID)
	RequestIDHeader string

	// RateLimit is a client-side ceiling in attempts per second; zero disables it.
	RateLimit float64
	// RateBurst is the limiter burst size (default 1).
	RateBurst int

	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int

	// Transport replaces the pooled transports for both http and https.
	Transport nethttp.RoundTripper
	// Stats is shared by every call of the client; a fresh instance is created when nil.
	Stats          *CallStats
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// WithRequestID stores the request ID sent with every attempt of calls made with ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return apitrace.WithRequestID(ctx, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return apitrace.RequestIDFromContext(ctx)
}
