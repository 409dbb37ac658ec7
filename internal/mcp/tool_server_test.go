package mcp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err
	}

	text, _ := args["text"].(string)

	return TextResult("echo: " + text), nil
}

func TestToolServerMetadata(t *testing.T) {
	server := NewToolServer("demo", "1.2.3", nil)

	require.Equal(t, "demo", server.Name())
	require.Equal(t, "1.2.3", server.Version())
	require.NotNil(t, server.LowLevel())
	require.Same(t, server.Server, server.LowLevel())
}

func TestToolServerToolsAndCallTool(t *testing.T) {
	server := NewToolServer("demo", "1.0.0", nil)
	server.AddTool(NewTool("echo", "echoes text", SimpleSchema(map[string]string{"text": "string"})), echoHandler)
	server.AddTool(NewTool("alpha", "first alphabetically", nil), echoHandler)

	tools := server.Tools()
	require.Len(t, tools, 2)
	require.Equal(t, "alpha", tools[0].Name)
	require.Equal(t, "echo", tools[1].Name)
	require.Equal(t, "echoes text", tools[1].Description)
	require.NotNil(t, tools[0].InputSchema, "tools without a schema get an object schema")

	result, err := server.CallTool(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "echo: hello", ResultText(result))

	missing, err := server.CallTool(context.Background(), "unknown", map[string]any{})
	require.NoError(t, err)
	require.True(t, missing.IsError)
	require.Equal(t, "unknown tool: unknown", ResultText(missing))
	require.False(t, server.HasTool("unknown"))
}

func TestToolServerAddTool_MissingSchema(t *testing.T) {
	tool := NewTool("bare", "no schema", nil)
	require.Nil(t, tool.InputSchema, "a nil schema must not be stored as a typed nil")

	tests := []struct {
		name string
		tool *mcp.Tool
	}{
		{name: "from NewTool", tool: NewTool("bare", "no schema", nil)},
		{name: "typed nil pointer", tool: &mcp.Tool{Name: "bare", InputSchema: (*jsonschema.Schema)(nil)}},
		{name: "unset", tool: &mcp.Tool{Name: "bare"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewToolServer("demo", "1.0.0", nil)
			require.NotPanics(t, func() { server.AddTool(tt.tool, echoHandler) })

			tools := server.Tools()
			require.Len(t, tools, 1)
			schema, ok := tools[0].InputSchema.(*jsonschema.Schema)
			require.True(t, ok)
			require.NotNil(t, schema)
			require.Equal(t, "object", schema.Type)

			result, err := server.CallTool(context.Background(), "bare", map[string]any{"text": "x"})
			require.NoError(t, err)
			require.Equal(t, "echo: x", ResultText(result))
		})
	}
}

func TestToolServerCallTool_HandlerError(t *testing.T) {
	server := NewToolServer("demo", "1.0.0", nil)
	server.AddTool(
		NewTool("fails", "always fails", nil),
		func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, errors.New("boom")
		},
	)

	result, err := server.CallTool(context.Background(), "fails", map[string]any{})

	require.EqualError(t, err, "boom")
	require.Nil(t, result)
}

func TestToolServerCallTool_UnencodableArguments(t *testing.T) {
	server := NewToolServer("demo", "1.0.0", nil)
	server.AddTool(NewTool("echo", "echoes text", nil), echoHandler)

	_, err := server.CallTool(context.Background(), "echo", map[string]any{"ch": make(chan int)})
	require.ErrorContains(t, err, `encode arguments for "echo"`)
}

func TestToolServerMiddlewareOrder(t *testing.T) {
	server := NewToolServer("demo", "1.0.0", nil)
	server.AddTool(NewTool("echo", "echoes text", nil), echoHandler)

	var order []string

	tag := func(name string) ToolMiddleware {
		return func(next mcp.ToolHandler) mcp.ToolHandler {
			return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				order = append(order, name+":before")
				res, err := next(ctx, req)
				order = append(order, name+":after")

				return res, err
			}
		}
	}

	server.UseToolMiddleware(tag("outer"), tag("inner"))

	_, err := server.CallTool(context.Background(), "echo", map[string]any{"text": "x"})
	require.NoError(t, err)
	require.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, order)
}

func TestToolServerMiddlewareAddedLaterApplies(t *testing.T) {
	server := NewToolServer("demo", "1.0.0", nil)
	server.AddTool(NewTool("echo", "echoes text", nil), echoHandler)

	var calls atomic.Int32

	server.UseToolMiddleware(func(next mcp.ToolHandler) mcp.ToolHandler {
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			calls.Add(1)

			return next(ctx, req)
		}
	})

	for range 3 {
		_, err := server.CallTool(context.Background(), "echo", nil)
		require.NoError(t, err)
	}

	require.Equal(t, int32(3), calls.Load())
}

func TestToolServerServesOverTransport(t *testing.T) {
	ctx := context.Background()

	server := NewToolServer("demo", "1.0.0", nil)
	server.AddTool(NewTool("echo", "echoes text", SimpleSchema(map[string]string{"text": "string"})), echoHandler)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer clientSession.Close()

	result, err := clientSession.CallTool(ctx, &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "wire"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "echo: wire", ResultText(result))
}
