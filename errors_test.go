package mcpcat

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsupportedServerError_Message(t *testing.T) {
	err := &UnsupportedServerError{
		ServerType: "*main.customServer",
		Missing: map[string][]string{
			"go-sdk": {"AddReceivingMiddleware(...mcp.Middleware)"},
			"mcp-go": {"WithToolHandlerMiddleware"},
		},
		Supported: []string{"mcp-go v0.31.0..v1.0.0", "go-sdk v1.0.0..v2.0.0"},
	}

	require.Contains(t, err.Error(), "unsupported MCP server type *main.customServer")
	require.Contains(t, err.Error(), "go-sdk missing [AddReceivingMiddleware(...mcp.Middleware)]")
	require.Less(t,
		strings.Index(err.Error(), "go-sdk missing"),
		strings.Index(err.Error(), "mcp-go missing"),
		"missing capabilities should be listed in name order",
	)
	require.Equal(t, []string{"WithToolHandlerMiddleware"}, err.MissingFor("mcp-go"))
	require.True(t, err.IsMCPCatError())
}

func TestTransmissionError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	err := &TransmissionError{StatusCode: 503, Attempts: 3, Retryable: true, Err: inner}

	require.Contains(t, err.Error(), "status 503")
	require.Contains(t, err.Error(), "after 3 attempts")
	require.ErrorIs(t, err, inner)
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Field: "MaxBatchSize", Reason: "must be positive"}

	require.Equal(t, "invalid option MaxBatchSize: must be positive", err.Error())
}

func TestErrorTypes_ImplementMCPCatError(t *testing.T) {
	wrapped := fmt.Errorf("track: %w", &ConfigError{Field: "Endpoint", Reason: "empty"})

	var base MCPCatError
	require.True(t, errors.As(wrapped, &base))
	require.True(t, base.IsMCPCatError())
}

func TestSentinelErrors(t *testing.T) {
	require.NotErrorIs(t, ErrNilServer, ErrNotComparable)
	require.ErrorIs(t, fmt.Errorf("flush: %w", ErrTrackerClosed), ErrTrackerClosed)
}
