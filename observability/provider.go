// Package observability builds the OpenTelemetry tracer and meter providers used by API clients.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"
	_ "google.golang.org/grpc/encoding/gzip" // registers the gzip compressor for OTLP/gRPC
)

// Provider manages the lifecycle of the tracer and meter providers handed to API clients.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and stops the exporters.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately exports pending telemetry.
	ForceFlush(ctx context.Context) error
}

// Option customizes NewProvider.
type Option func(*providerOptions)

type providerOptions struct {
	stdout    io.Writer
	setGlobal bool
}

// WithStdoutWriter sends stdout exporter output to w instead of os.Stdout.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *providerOptions) {
		o.stdout = w
	}
}

// WithoutGlobal keeps the providers and propagator out of the otel globals.
func WithoutGlobal() Option {
	return func(o *providerOptions) {
		o.setGlobal = false
	}
}

type provider struct {
	config         Config
	opts           providerOptions
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates an observability provider from cfg. Defaults are applied to a
// copy of cfg before validation. A disabled config yields a no-op provider.
// Unless WithoutGlobal is given, the providers and a W3C trace context propagator
// are installed as otel globals.
func NewProvider(cfg *Config, opts ...Option) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	safeCfg := *cfg
	safeCfg.ApplyDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if !safeCfg.Enabled {
		return newNoopProvider(), nil
	}

	o := providerOptions{stdout: os.Stdout, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	p := &provider{config: safeCfg, opts: o}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if safeCfg.TraceEnabled() {
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
	}
	if safeCfg.MetricsEnabled() {
		if err := p.initMeterProvider(res); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
	}

	if o.setGlobal {
		if p.tracerProvider != nil {
			otel.SetTracerProvider(p.tracerProvider)
		}
		if p.meterProvider != nil {
			otel.SetMeterProvider(p.meterProvider)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return p, nil
}

// MustNewProvider is NewProvider that panics on error.
func MustNewProvider(cfg *Config, opts ...Option) Provider {
	p, err := NewProvider(cfg, opts...)
	if err != nil {
		panic(fmt.Errorf("failed to create observability provider: %w", err))
	}
	return p
}

func (p *provider) createResource() (*resource.Resource, error) {
	customRes, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service.Name),
			semconv.ServiceVersion(p.config.Service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), customRes)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(p.config.Trace.Batch.Timeout),
		sdktrace.WithExportTimeout(p.config.Trace.Export.Timeout),
		sdktrace.WithMaxExportBatchSize(p.config.Trace.Batch.Size),
	)

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*p.config.Trace.Sample.Rate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	tc := p.config.Trace
	if tc.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.opts.stdout), stdouttrace.WithPrettyPrint())
	}

	switch tc.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(tc.Headers))
		}
		if tc.Compression == CompressionGzip {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(tc.Headers))
		}
		if tc.Compression == CompressionGzip {
			opts = append(opts, otlptracegrpc.WithCompressor(CompressionGzip))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", tc.Protocol, ErrInvalidProtocol)
	}
}

// TracerProvider returns the configured trace provider, or a no-op one when tracing is off.
func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noopTracerProvider
	}
	return p.tracerProvider
}

// MeterProvider returns the configured meter provider, or a no-op one when metrics are off.
func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return noopMeterProvider
	}
	return p.meterProvider
}

//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("flush errors: %w", errors.Join(errs...))
	}
	return nil
}
