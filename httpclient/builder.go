package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/apiclient/logger"
)

// Builder assembles a Client step by step.
type Builder struct {
	logger logger.Logger
	config *Config
}

// NewBuilder creates a builder with default settings
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		logger: log,
		config: &Config{
			APIVersion:         APIv2,
			MaxAttempts:        DefaultMaxAttempts,
			BackoffBase:        DefaultBackoffBase,
			MaxRetryAfter:      DefaultMaxRetryAfter,
			RetryOnStatus:      []int{StatusTooManyRequests},
			DefaultHeaders:     make(map[string]string),
			RequestIDHeader:    HeaderXRequestID,
			MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
		},
	}
}

// WithConfig replaces every setting with cfg. Zero values still get defaults at Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = &cfg
	return b
}

// WithBaseURL sets the base URL used when a request carries none
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithToken sets the default credential token
func (b *Builder) WithToken(token string) *Builder {
	b.config.Token = token
	return b
}

// WithAPIVersion selects the error taxonomy
func (b *Builder) WithAPIVersion(v APIVersion) *Builder {
	b.config.APIVersion = v
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the attempt ceiling and the backoff base delay
func (b *Builder) WithRetries(maxAttempts int, backoffBase time.Duration) *Builder {
	b.config.MaxAttempts = maxAttempts
	b.config.BackoffBase = backoffBase
	return b
}

// WithoutJitter makes backoff delays exactly base × 2^(attempt−1)
func (b *Builder) WithoutJitter() *Builder {
	b.config.DisableJitter = true
	return b
}

// WithMaxRetryAfter caps waits requested through Retry-After
func (b *Builder) WithMaxRetryAfter(d time.Duration) *Builder {
	b.config.MaxRetryAfter = d
	return b
}

// WithRetryOnStatus replaces the set of retried non-5xx statuses
func (b *Builder) WithRetryOnStatus(codes ...int) *Builder {
	b.config.RetryOnStatus = codes
	return b
}

// WithDefaultHeader adds a header sent with every request
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	if b.config.DefaultHeaders == nil {
		b.config.DefaultHeaders = make(map[string]string)
	}
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithUserAgent replaces the generated User-Agent
func (b *Builder) WithUserAgent(ua string) *Builder {
	b.config.UserAgent = ua
	return b
}

// WithRequestIDHeader configures the header used to carry the request ID
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	b.config.RequestIDHeader = header
	return b
}

// WithRateLimit throttles attempts to perSecond with the given burst
func (b *Builder) WithRateLimit(perSecond float64, burst int) *Builder {
	b.config.RateLimit = perSecond
	b.config.RateBurst = burst
	return b
}

// WithPayloadLogging enables debug logging of headers and bodies up to maxBytes
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// WithTransport replaces both connection pools with rt
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.config.Transport = rt
	return b
}

// WithStats shares an existing accumulator with the client
func (b *Builder) WithStats(stats *CallStats) *Builder {
	b.config.Stats = stats
	return b
}

// WithMeterProvider sets the provider for call metrics (default: global)
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.config.MeterProvider = mp
	return b
}

// WithTracerProvider sets the provider for call spans (default: global)
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.config.TracerProvider = tp
	return b
}

// Build creates the client
func (b *Builder) Build() Client {
	return NewClient(b.logger, *b.config)
}

// NewClient creates a client from cfg, applying defaults to unset fields.
func NewClient(log logger.Logger, cfg Config) Client {
	applyDefaults(&cfg)

	stats := cfg.Stats
	if stats == nil {
		stats = NewCallStats()
		cfg.Stats = stats
	}

	metrics, err := newCallMetrics(cfg.MeterProvider)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize API client metrics")
	}

	return &client{
		logger: log,
		config: &cfg,
		defaults: Defaults{
			BaseURL:       cfg.BaseURL,
			Token:         cfg.Token,
			APIVersion:    cfg.APIVersion,
			BackoffBase:   cfg.BackoffBase,
			MaxAttempts:   cfg.MaxAttempts,
			RetryOnStatus: cfg.RetryOnStatus,
		},
		transport: newTransport(&cfg),
		stats:     stats,
		metrics:   metrics,
		tracer:    newTracer(cfg.TracerProvider),
	}
}

// New creates a client with default settings
func New(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = APIv2
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.MaxRetryAfter == 0 {
		cfg.MaxRetryAfter = DefaultMaxRetryAfter
	}
	if len(cfg.RetryOnStatus) == 0 {
		cfg.RetryOnStatus = []int{StatusTooManyRequests}
	}
	if cfg.RequestIDHeader == "" {
		cfg.RequestIDHeader = HeaderXRequestID
	}
	if cfg.MaxPayloadLogBytes == 0 {
		cfg.MaxPayloadLogBytes = defaultMaxPayloadLogBytes
	}
}
