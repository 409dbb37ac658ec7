// Package exporter turns usage events into OpenTelemetry spans.
package exporter

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter kinds accepted by Config.Exporter.
const (
	KindNone   = "none"
	KindStdout = "stdout"
	KindOTLP   = "otlp"
)

// Config configures span export.
type Config struct {
	// Enabled turns span export on.
	Enabled bool `mapstructure:"enabled"`
	// Exporter selects the backend: "none", "stdout" or "otlp".
	Exporter string `mapstructure:"exporter"`
	// OTLPEndpoint is the collector address for "otlp". Default: "localhost:4317".
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `mapstructure:"insecure"`
	// ServiceName is the service.name resource attribute.
	ServiceName string `mapstructure:"service_name"`
	// SessionTTL is how long a session's trace id is kept after its last span.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Defaults.
const (
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultServiceName  = "mcpcat"
	DefaultSessionTTL   = 30 * time.Minute
)

// DefaultConfig returns a disabled configuration with defaults filled in.
func DefaultConfig() Config {
	return Config{
		Exporter:     KindOTLP,
		OTLPEndpoint: DefaultOTLPEndpoint,
		ServiceName:  DefaultServiceName,
		SessionTTL:   DefaultSessionTTL,
	}
}

// Provider owns the tracer provider spans are exported through.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
}

// NewProvider builds a provider for cfg. A disabled config yields a no-op
// tracer. The provider is not installed globally.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer("noop")}, nil
	}

	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch cfg.Exporter {
	case KindStdout:
		// stdout may carry an MCP stdio stream, so spans go to stderr.
		exp, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
	case KindOTLP:
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}

		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		exp, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
	case KindNone, "":
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	var opts []sdktrace.TracerProviderOption
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	return NewProviderWith(cfg.ServiceName, opts...), nil
}

// NewProviderWith builds an enabled provider from explicit options.
func NewProviderWith(serviceName string, opts ...sdktrace.TracerProviderOption) *Provider {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Schemaless avoids schema URL conflicts with resource.Default().
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	opts = append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	provider := sdktrace.NewTracerProvider(opts...)

	return &Provider{
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
		enabled:  true,
	}
}

// Tracer returns the tracer spans are created with.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// ForceFlush exports all finished spans.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}

	return p.provider.ForceFlush(ctx)
}

// Shutdown flushes pending spans and releases exporter resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}

	return p.provider.Shutdown(ctx)
}
