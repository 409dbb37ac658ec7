package errors

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MCPCatError is the base interface for all SDK errors.
type MCPCatError interface {
	error
	IsMCPCatError() bool
}

// Compile-time verification that all error types implement MCPCatError.
var (
	_ MCPCatError = (*UnsupportedServerError)(nil)
	_ MCPCatError = (*AdapterExtractionError)(nil)
	_ MCPCatError = (*TransmissionError)(nil)
	_ MCPCatError = (*ConfigError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNilServer indicates a nil server handle was passed for instrumentation.
	ErrNilServer = errors.New("server is nil")

	// ErrNotComparable indicates the server handle cannot be used as an identity key.
	ErrNotComparable = errors.New("server handle is not comparable")

	// ErrAlreadyInstrumented indicates the server carries an active
	// interception that belongs to another owner.
	ErrAlreadyInstrumented = errors.New("server is already instrumented")

	// ErrReporterClosed indicates the reporter has been shut down.
	ErrReporterClosed = errors.New("reporter closed")

	// ErrMissingDestination indicates no endpoint, backend, exporter, or observer was configured.
	ErrMissingDestination = errors.New("no event destination configured: set an endpoint, a backend, an exporter, or an event observer")
)

// UnsupportedServerError indicates that no known server shape matched the
// instrumented object. Missing maps each probed shape name to the capability
// names the server lacked.
type UnsupportedServerError struct {
	ServerType string
	Missing    map[string][]string
	Supported  []string
	Err        error
}

func (e *UnsupportedServerError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "unsupported MCP server type %s", e.ServerType)

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	if len(e.Missing) > 0 {
		shapes := make([]string, 0, len(e.Missing))
		for name := range e.Missing {
			shapes = append(shapes, name)
		}

		slices.Sort(shapes)

		for _, name := range shapes {
			fmt.Fprintf(&b, "; %s missing [%s]", name, strings.Join(e.Missing[name], ", "))
		}
	}

	if len(e.Supported) > 0 {
		fmt.Fprintf(&b, "; supported: %s", strings.Join(e.Supported, ", "))
	}

	return b.String()
}

func (e *UnsupportedServerError) Unwrap() error {
	return e.Err
}

// IsMCPCatError implements MCPCatError.
func (e *UnsupportedServerError) IsMCPCatError() bool { return true }

// MissingFor returns the capabilities the named shape was missing.
func (e *UnsupportedServerError) MissingFor(shape string) []string {
	return e.Missing[shape]
}

// AdapterExtractionError indicates the tool name or arguments could not be
// read from a tool call request.
type AdapterExtractionError struct {
	Shape  string
	Reason string
	Err    error
}

func (e *AdapterExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract tool call (%s): %s: %v", e.Shape, e.Reason, e.Err)
	}

	return fmt.Sprintf("extract tool call (%s): %s", e.Shape, e.Reason)
}

func (e *AdapterExtractionError) Unwrap() error {
	return e.Err
}

// IsMCPCatError implements MCPCatError.
func (e *AdapterExtractionError) IsMCPCatError() bool { return true }

// TransmissionError indicates an event batch could not be delivered.
type TransmissionError struct {
	StatusCode int
	Attempts   int
	Retryable  bool
	Err        error
}

func (e *TransmissionError) Error() string {
	msg := "submit batch"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("submit batch (status %d)", e.StatusCode)
	}

	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}

// IsMCPCatError implements MCPCatError.
func (e *TransmissionError) IsMCPCatError() bool { return true }

// IsRetryable reports whether err is a transmission failure worth retrying.
// Errors that are not TransmissionErrors are treated as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if te, ok := errors.AsType[*TransmissionError](err); ok {
		return te.Retryable
	}

	return true
}

// ConfigError indicates an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Reason)
}

// IsMCPCatError implements MCPCatError.
func (e *ConfigError) IsMCPCatError() bool { return true }
