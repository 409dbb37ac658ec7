// Package config resolves tracker configuration: defaults, environment
// overrides and validation.
package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mcpcat/mcpcat-go-sdk/internal/dispatch"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
	"github.com/mcpcat/mcpcat-go-sdk/internal/exporter"
	"github.com/mcpcat/mcpcat-go-sdk/internal/redact"
)

// Defaults.
const (
	DefaultEndpoint        = "https://api.mcpcat.io/v1/events/batch"
	DefaultBufferCapacity  = 1000
	DefaultShutdownTimeout = 5 * time.Second
)

// Options configures a tracker.
type Options struct {
	// Logger receives diagnostic output. If nil, logging is disabled unless
	// MCPCAT_DEBUG_MODE is set.
	Logger *slog.Logger

	// Endpoint is the batch submission URL. Empty disables HTTP delivery.
	Endpoint string
	// APIKey is sent as a bearer token.
	APIKey string
	// ProjectID identifies the MCPcat project.
	ProjectID string
	// HTTPClient overrides the client used for submission.
	HTTPClient *http.Client

	// MaxBatchSize is the largest number of events per submission.
	MaxBatchSize int
	// MaxBatchDelay is the longest an event waits before its batch is sent.
	MaxBatchDelay time.Duration
	// BufferCapacity bounds the number of undelivered events kept in memory.
	BufferCapacity int

	// MaxAttempts bounds submission attempts per batch.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay between retries.
	BackoffMultiplier float64

	// Backend replaces the HTTP client as the batch destination.
	Backend dispatch.Backend
	// Exporters receive every processed batch, best-effort.
	Exporters []dispatch.Exporter
	// Tracing exports events as OpenTelemetry spans.
	Tracing exporter.Config

	// RedactArguments enables redaction of arguments, intent and error
	// messages before delivery.
	RedactArguments bool
	// RedactionPatterns are applied after the builtin patterns.
	RedactionPatterns []redact.Pattern
	// Redactor is applied to every string after the patterns.
	Redactor redact.Func

	// CaptureIntent adds an optional "context" argument to tool schemas and
	// records it as the caller's intent.
	CaptureIntent bool
	// VersionHint restricts detection to one library, as "module[@version]".
	VersionHint string

	// Identify resolves the user behind a call, once per MCP session.
	Identify event.IdentifyFunc

	// OnEvent observes every closed event on the calling goroutine. It must
	// not block.
	OnEvent func(event.UsageEvent)

	// ShutdownTimeout bounds the final flush when closing without a deadline.
	ShutdownTimeout time.Duration
}

// Default returns options with every default filled in.
func Default() *Options {
	d := dispatch.DefaultConfig()

	return &Options{
		MaxBatchSize:      d.MaxBatchSize,
		MaxBatchDelay:     d.MaxBatchDelay,
		BufferCapacity:    DefaultBufferCapacity,
		MaxAttempts:       d.MaxAttempts,
		InitialBackoff:    d.InitialBackoff,
		MaxBackoff:        d.MaxBackoff,
		BackoffMultiplier: d.BackoffMultiplier,
		Tracing:           exporter.DefaultConfig(),
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

// Dispatch returns the reporter configuration.
func (o *Options) Dispatch() dispatch.Config {
	cfg := dispatch.DefaultConfig()
	cfg.MaxBatchSize = o.MaxBatchSize
	cfg.MaxBatchDelay = o.MaxBatchDelay
	cfg.MaxAttempts = o.MaxAttempts
	cfg.InitialBackoff = o.InitialBackoff
	cfg.MaxBackoff = o.MaxBackoff
	cfg.BackoffMultiplier = o.BackoffMultiplier

	return cfg
}

// HasDestination reports whether events are delivered anywhere.
func (o *Options) HasDestination() bool {
	return o.Endpoint != "" || o.Backend != nil || len(o.Exporters) > 0 || o.Tracing.Enabled || o.OnEvent != nil
}
