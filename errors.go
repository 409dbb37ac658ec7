package mcpcat

import "github.com/mcpcat/mcpcat-go-sdk/internal/errors"

// Re-export error types from internal package

// UnsupportedServerError indicates no shape matched the server.
type UnsupportedServerError = errors.UnsupportedServerError

// TransmissionError indicates a batch could not be submitted.
type TransmissionError = errors.TransmissionError

// ConfigError indicates an invalid option value.
type ConfigError = errors.ConfigError

// MCPCatError is the base interface for all SDK errors.
type MCPCatError = errors.MCPCatError

// Re-export sentinel errors from internal package.
var (
	// ErrNilServer indicates a nil server was passed.
	ErrNilServer = errors.ErrNilServer

	// ErrNotComparable indicates the server value cannot be used as an identity.
	ErrNotComparable = errors.ErrNotComparable

	// ErrAlreadyInstrumented indicates the server was instrumented with
	// Install and cannot also be tracked until that handle is reverted.
	ErrAlreadyInstrumented = errors.ErrAlreadyInstrumented

	// ErrTrackerClosed indicates the tracker has been closed.
	ErrTrackerClosed = errors.ErrReporterClosed

	// ErrMissingDestination indicates no endpoint, backend, exporter or
	// observer was configured.
	ErrMissingDestination = errors.ErrMissingDestination
)
