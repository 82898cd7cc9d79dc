package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"
)

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(p.config.Metrics.Interval),
		sdkmetric.WithTimeout(p.config.Metrics.Export.Timeout),
	)

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return nil
}

func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	mc := p.config.Metrics
	selector := temporalitySelector(mc.Temporality)

	if mc.Endpoint == EndpointStdout {
		return stdoutmetric.New(
			stdoutmetric.WithWriter(p.opts.stdout),
			stdoutmetric.WithPrettyPrint(),
			stdoutmetric.WithTemporalitySelector(selector),
		)
	}

	insecureConn := mc.Insecure != nil && *mc.Insecure
	switch mc.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(mc.Endpoint),
			otlpmetrichttp.WithTemporalitySelector(selector),
		}
		if insecureConn {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(mc.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(mc.Headers))
		}
		if mc.Compression == CompressionGzip {
			opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(mc.Endpoint),
			otlpmetricgrpc.WithTemporalitySelector(selector),
		}
		if insecureConn {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(mc.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(mc.Headers))
		}
		if mc.Compression == CompressionGzip {
			opts = append(opts, otlpmetricgrpc.WithCompressor(CompressionGzip))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", mc.Protocol, ErrInvalidProtocol)
	}
}

// temporalitySelector maps the configured temporality onto the SDK selector.
// Delta applies to counters and histograms; up-down counters stay cumulative.
func temporalitySelector(temporality string) sdkmetric.TemporalitySelector {
	if temporality != TemporalityDelta {
		return sdkmetric.DefaultTemporalitySelector
	}
	return func(kind sdkmetric.InstrumentKind) metricdata.Temporality {
		switch kind {
		case sdkmetric.InstrumentKindCounter,
			sdkmetric.InstrumentKindHistogram,
			sdkmetric.InstrumentKindObservableCounter:
			return metricdata.DeltaTemporality
		default:
			return metricdata.CumulativeTemporality
		}
	}
}
