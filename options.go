package mcpcat

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcpcat/mcpcat-go-sdk/internal/config"
)

// Options is the resolved tracker configuration.
type Options = config.Options

// Option configures Track using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options over the defaults.
func applyOptions(opts []Option) *Options {
	options := config.Default()
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled unless MCPCAT_DEBUG_MODE is set.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithProjectID sets the MCPcat project events are reported to.
// Setting a project without an endpoint selects the hosted API.
func WithProjectID(projectID string) Option {
	return func(o *Options) {
		o.ProjectID = projectID
	}
}

// WithEndpoint sets the batch submission URL.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

// WithAPIKey sets the credential sent as a bearer token.
func WithAPIKey(apiKey string) Option {
	return func(o *Options) {
		o.APIKey = apiKey
	}
}

// WithHTTPClient overrides the HTTP client used for submission.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// ===== Batching and Retry =====

// WithMaxBatchSize sets the largest number of events per submission.
func WithMaxBatchSize(n int) Option {
	return func(o *Options) {
		o.MaxBatchSize = n
	}
}

// WithMaxBatchDelay sets how long an event may wait before its batch is sent.
func WithMaxBatchDelay(d time.Duration) Option {
	return func(o *Options) {
		o.MaxBatchDelay = d
	}
}

// WithBufferCapacity bounds the number of undelivered events kept in memory.
// When full, the oldest events are dropped.
func WithBufferCapacity(n int) Option {
	return func(o *Options) {
		o.BufferCapacity = n
	}
}

// WithRetry sets the submission attempt limit and backoff bounds.
func WithRetry(maxAttempts int, initial, maxBackoff time.Duration) Option {
	return func(o *Options) {
		o.MaxAttempts = maxAttempts
		o.InitialBackoff = initial
		o.MaxBackoff = maxBackoff
	}
}

// WithBackoffMultiplier sets the growth factor between retries.
func WithBackoffMultiplier(m float64) Option {
	return func(o *Options) {
		o.BackoffMultiplier = m
	}
}

// WithShutdownTimeout bounds the final flush performed by Close when its
// context has no deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = d
	}
}

// ===== Destinations =====

// WithBackend replaces the HTTP client as the batch destination.
func WithBackend(backend Backend) Option {
	return func(o *Options) {
		o.Backend = backend
	}
}

// WithExporters adds best-effort batch exporters.
func WithExporters(exporters ...Exporter) Option {
	return func(o *Options) {
		o.Exporters = append(o.Exporters, exporters...)
	}
}

// WithTracing exports events as OpenTelemetry spans.
func WithTracing(cfg TracingConfig) Option {
	return func(o *Options) {
		o.Tracing = cfg
	}
}

// WithOnEvent registers an observer called with every closed event on the
// tool call goroutine. It must not block.
func WithOnEvent(fn func(UsageEvent)) Option {
	return func(o *Options) {
		o.OnEvent = fn
	}
}

// WithIdentify registers a callback that names the user behind a call. It
// is asked once per MCP session (every call when the transport has no
// session id) and runs on the tool call goroutine, so it must not block. A
// nil result or a panic leaves the event anonymous.
func WithIdentify(fn func(ctx context.Context, call ToolCall) *UserIdentity) Option {
	return func(o *Options) {
		o.Identify = fn
	}
}

// ===== Privacy =====

// WithRedactArguments enables redaction of arguments, user intent and error
// messages before delivery.
func WithRedactArguments(enabled bool) Option {
	return func(o *Options) {
		o.RedactArguments = enabled
	}
}

// WithRedactionPatterns adds patterns applied after the builtin ones.
// Implies WithRedactArguments(true).
func WithRedactionPatterns(patterns ...RedactionPattern) Option {
	return func(o *Options) {
		o.RedactArguments = true
		o.RedactionPatterns = append(o.RedactionPatterns, patterns...)
	}
}

// WithRedactor sets a function applied to every recorded string.
// Implies WithRedactArguments(true).
func WithRedactor(fn func(string) string) Option {
	return func(o *Options) {
		o.RedactArguments = true
		o.Redactor = fn
	}
}

// ===== Detection and Interception =====

// WithCaptureIntent adds an optional "context" argument to every tool schema
// and records its value as the caller's intent. Supported on go-sdk servers
// and ToolServer.
func WithCaptureIntent(enabled bool) Option {
	return func(o *Options) {
		o.CaptureIntent = enabled
	}
}

// WithVersionHint restricts detection to one library, given as
// "module[@version]" or a shape name such as "go-sdk".
func WithVersionHint(hint string) Option {
	return func(o *Options) {
		o.VersionHint = hint
	}
}
