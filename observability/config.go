package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	CompressionGzip = "gzip"
	CompressionNone = "none"

	// TemporalityDelta reports the change in value since the last export.
	TemporalityDelta = "delta"

	// TemporalityCumulative reports the total value since the start of the measurement.
	TemporalityCumulative = "cumulative"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to v, for optional boolean fields.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v, for optional float fields.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	return maps.Clone(headers)
}

// Config defines where the client's spans and metrics are exported.
// It is read from the "observability" section of the application config.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns no-op providers.
	Enabled bool `koanf:"enabled"`

	Service ServiceConfig `koanf:"service"`

	// Environment indicates the deployment environment (e.g., production, staging, development).
	Environment string `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the service in exported telemetry.
type ServiceConfig struct {
	// Name is required when observability is enabled.
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// Enabled: nil applies the default (true when observability is enabled).
	Enabled *bool `koanf:"enabled"`

	// Endpoint is "stdout" or an OTLP endpoint: "http://localhost:4318" for HTTP,
	// "localhost:4317" for gRPC.
	Endpoint string `koanf:"endpoint"`

	// Protocol is "http" or "grpc". Ignored for stdout.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS for OTLP endpoints.
	Insecure bool `koanf:"insecure"`

	// Headers are sent with every export, e.g. API keys.
	Headers map[string]string `koanf:"headers"`

	// Compression is "gzip" (default) or "none".
	Compression string `koanf:"compression"`

	Sample SampleConfig `koanf:"sample"`
	Batch  BatchConfig  `koanf:"batch"`
	Export ExportConfig `koanf:"export"`
}

// SampleConfig defines sampling configuration for traces.
type SampleConfig struct {
	// Rate is the fraction of traces to collect, 0.0 to 1.0.
	// nil applies the default of 1.0; an explicit 0.0 records nothing.
	Rate *float64 `koanf:"rate"`
}

// BatchConfig defines batch processing configuration for traces.
type BatchConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Size    int           `koanf:"size"`
}

// ExportConfig defines export timeout configuration.
type ExportConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig defines configuration for metrics export.
// Protocol, Insecure and Headers inherit the trace values when unset.
type MetricsConfig struct {
	Enabled     *bool             `koanf:"enabled"`
	Endpoint    string            `koanf:"endpoint"`
	Protocol    string            `koanf:"protocol"`
	Insecure    *bool             `koanf:"insecure"`
	Headers     map[string]string `koanf:"headers"`
	Compression string            `koanf:"compression"`

	// Temporality is "cumulative" (default) or "delta".
	Temporality string `koanf:"temporality"`

	// Interval between periodic exports.
	Interval time.Duration `koanf:"interval"`

	Export ExportConfig `koanf:"export"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

func (c *Config) isDevelopment(endpoint string) bool {
	return c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Endpoint == EndpointStdout {
		c.Trace.Insecure = true
	}
	if c.Trace.Compression == "" {
		c.Trace.Compression = CompressionGzip
	}
	if c.Trace.Sample.Rate == nil {
		c.Trace.Sample.Rate = Float64Ptr(1.0)
	}

	// Development exports quickly so spans show up while debugging.
	if c.Trace.Batch.Timeout == 0 {
		c.Trace.Batch.Timeout = 5 * time.Second
		if c.isDevelopment(c.Trace.Endpoint) {
			c.Trace.Batch.Timeout = 500 * time.Millisecond
		}
	}
	if c.Trace.Batch.Size == 0 {
		c.Trace.Batch.Size = 512
	}
	if c.Trace.Export.Timeout == 0 {
		c.Trace.Export.Timeout = 60 * time.Second
		if c.isDevelopment(c.Trace.Endpoint) {
			c.Trace.Export.Timeout = 10 * time.Second
		}
	}
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Insecure == nil {
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure)
	}
	// Cloned so later edits to one section don't leak into the other.
	if c.Metrics.Headers == nil {
		c.Metrics.Headers = cloneHeaderMap(c.Trace.Headers)
	}
	if c.Metrics.Compression == "" {
		c.Metrics.Compression = CompressionGzip
	}
	if c.Metrics.Temporality == "" {
		c.Metrics.Temporality = TemporalityCumulative
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.Export.Timeout == 0 {
		c.Metrics.Export.Timeout = 60 * time.Second
		if c.isDevelopment(c.Metrics.Endpoint) {
			c.Metrics.Export.Timeout = 10 * time.Second
		}
	}
}

// TraceEnabled reports whether spans are exported.
func (c *Config) TraceEnabled() bool {
	return c.Enabled && c.Trace.Enabled != nil && *c.Trace.Enabled
}

// MetricsEnabled reports whether metrics are exported.
func (c *Config) MetricsEnabled() bool {
	return c.Enabled && c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Validate checks the configuration. Call ApplyDefaults first.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if err := c.validateTraceConfig(); err != nil {
		return err
	}
	return c.validateMetricsConfig()
}

func (c *Config) validateTraceConfig() error {
	if !c.TraceEnabled() {
		return nil
	}
	if c.Trace.Sample.Rate != nil && (*c.Trace.Sample.Rate < 0.0 || *c.Trace.Sample.Rate > 1.0) {
		return ErrInvalidSampleRate
	}
	if err := validateEndpointFormat(c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if err := validateCompression(c.Trace.Compression); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	return nil
}

func (c *Config) validateMetricsConfig() error {
	if !c.MetricsEnabled() {
		return nil
	}
	if err := validateEndpointFormat(c.Metrics.Endpoint, c.Metrics.Protocol); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := validateCompression(c.Metrics.Compression); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	switch c.Metrics.Temporality {
	case TemporalityDelta, TemporalityCumulative:
		return nil
	default:
		return fmt.Errorf("metrics temporality '%s': %w", c.Metrics.Temporality, ErrInvalidTemporality)
	}
}

func validateEndpointFormat(endpoint, protocol string) error {
	if endpoint == EndpointStdout {
		return nil
	}
	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	switch protocol {
	case ProtocolHTTP:
		if !hasScheme {
			return fmt.Errorf("endpoint '%s' needs an http:// or https:// scheme: %w", endpoint, ErrInvalidEndpointFormat)
		}
	case ProtocolGRPC:
		if hasScheme {
			return fmt.Errorf("endpoint '%s' must be host:port without scheme: %w", endpoint, ErrInvalidEndpointFormat)
		}
	default:
		return fmt.Errorf("protocol '%s': %w", protocol, ErrInvalidProtocol)
	}
	return nil
}

func validateCompression(compression string) error {
	switch compression {
	case CompressionGzip, CompressionNone:
		return nil
	default:
		return fmt.Errorf("compression '%s': %w", compression, ErrInvalidCompression)
	}
}
