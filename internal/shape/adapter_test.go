package shape

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpcaterrors "github.com/mcpcat/mcpcat-go-sdk/internal/errors"
)

func TestExtractGoSDK(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		req      any
		wantName string
		wantArgs map[string]any
		wantErr  string
	}{
		{
			name:     "object arguments",
			req:      &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}},
			wantName: "echo",
			wantArgs: map[string]any{"text": "hi"},
		},
		{
			name:     "no arguments",
			req:      &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "ping"}},
			wantName: "ping",
		},
		{
			name:     "null arguments",
			req:      &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "ping", Arguments: json.RawMessage(`null`)}},
			wantName: "ping",
		},
		{
			name:    "wrong request type",
			req:     &mcp.ListToolsRequest{},
			wantErr: "unexpected request type",
		},
		{
			name:    "missing params",
			req:     &mcp.CallToolRequest{},
			wantErr: "missing params",
		},
		{
			name:    "empty name",
			req:     &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}},
			wantErr: "empty tool name",
		},
		{
			name:    "malformed arguments",
			req:     &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "echo", Arguments: json.RawMessage(`[1,2]`)}},
			wantErr: "decode arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := extractGoSDK(ctx, tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				extractErr, ok := errors.AsType[*mcpcaterrors.AdapterExtractionError](err)
				require.True(t, ok)
				assert.Equal(t, NameGoSDK, extractErr.Shape)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantName, call.ToolName)
			assert.Equal(t, tt.wantArgs, call.Arguments)
		})
	}
}

func TestExtractToolServer_TagsShape(t *testing.T) {
	_, err := extractToolServer(context.Background(), "not a request")

	extractErr, ok := errors.AsType[*mcpcaterrors.AdapterExtractionError](err)
	require.True(t, ok)
	assert.Equal(t, NameToolServer, extractErr.Shape)
}

func TestExtractMCPGo(t *testing.T) {
	ctx := context.Background()

	valueReq := mcpgo.CallToolRequest{}
	valueReq.Params.Name = "echo"
	valueReq.Params.Arguments = map[string]any{"text": "hi"}

	rawReq := mcpgo.CallToolRequest{}
	rawReq.Params.Name = "echo"
	rawReq.Params.Arguments = json.RawMessage(`{"n":1}`)

	badReq := mcpgo.CallToolRequest{}
	badReq.Params.Name = "echo"
	badReq.Params.Arguments = 42

	unnamed := mcpgo.CallToolRequest{}

	t.Run("value request", func(t *testing.T) {
		call, err := extractMCPGo(ctx, valueReq)
		require.NoError(t, err)
		assert.Equal(t, "echo", call.ToolName)
		assert.Equal(t, map[string]any{"text": "hi"}, call.Arguments)
		assert.Empty(t, call.MCPSessionID)
	})

	t.Run("pointer request", func(t *testing.T) {
		call, err := extractMCPGo(ctx, &valueReq)
		require.NoError(t, err)
		assert.Equal(t, "echo", call.ToolName)
	})

	t.Run("raw json arguments", func(t *testing.T) {
		call, err := extractMCPGo(ctx, rawReq)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": float64(1)}, call.Arguments)
	})

	t.Run("unsupported argument type", func(t *testing.T) {
		_, err := extractMCPGo(ctx, badReq)
		require.ErrorContains(t, err, "arguments of type int")
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := extractMCPGo(ctx, unnamed)
		require.ErrorContains(t, err, "empty tool name")
	})

	t.Run("nil pointer", func(t *testing.T) {
		_, err := extractMCPGo(ctx, (*mcpgo.CallToolRequest)(nil))
		require.ErrorContains(t, err, "nil request")
	})

	t.Run("foreign type", func(t *testing.T) {
		_, err := extractMCPGo(ctx, &mcp.CallToolRequest{})
		require.ErrorContains(t, err, "unexpected request type")
	})
}
