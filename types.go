package mcpcat

import (
	"github.com/mcpcat/mcpcat-go-sdk/internal/dispatch"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
	"github.com/mcpcat/mcpcat-go-sdk/internal/exporter"
	"github.com/mcpcat/mcpcat-go-sdk/internal/intercept"
	"github.com/mcpcat/mcpcat-go-sdk/internal/redact"
	"github.com/mcpcat/mcpcat-go-sdk/internal/shape"
)

// Usage events.
type (
	// UsageEvent is one observed tool call.
	UsageEvent = event.UsageEvent

	// Outcome classifies how a tool call finished.
	Outcome = event.Outcome

	// ErrorDetail describes a failed call, with its wrapped errors and, for
	// a panic, the stack frames.
	ErrorDetail = event.ErrorDetail

	// Frame is one stack frame of a panicking handler.
	Frame = event.Frame

	// UserIdentity names the end user behind a client session.
	UserIdentity = event.UserIdentity

	// ToolCall is the request metadata handed to an identify callback.
	ToolCall = event.Call
)

// Outcome values.
const (
	OutcomeSuccess       = event.OutcomeSuccess
	OutcomeToolError     = event.OutcomeToolError
	OutcomeInternalError = event.OutcomeInternalError
	OutcomeCancelled     = event.OutcomeCancelled
)

// Shapes.
type (
	// ShapeDescriptor identifies one supported server flavor.
	ShapeDescriptor = shape.Descriptor

	// Flavor is the structural family of a server.
	Flavor = shape.Flavor
)

// Flavor values.
const (
	FlavorFastMCP  = shape.FlavorFastMCP
	FlavorLowLevel = shape.FlavorLowLevel
)

// Delivery.
type (
	// Backend accepts batches of usage events.
	Backend = dispatch.Backend

	// BackendFunc adapts a function to Backend.
	BackendFunc = dispatch.BackendFunc

	// Exporter receives every processed batch once, best-effort.
	Exporter = dispatch.Exporter

	// ExporterFunc adapts a function to Exporter.
	ExporterFunc = dispatch.ExporterFunc

	// Stats is a snapshot of delivery counters.
	Stats = dispatch.Stats

	// TracingConfig configures OpenTelemetry span export.
	TracingConfig = exporter.Config

	// RedactionPattern is a named redaction rule.
	RedactionPattern = redact.Pattern

	// UnwrapHandle disarms an interception installed with Install.
	UnwrapHandle = intercept.Handle
)
