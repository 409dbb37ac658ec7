package shape

import (
	"context"
	"encoding/json"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	toolserver "github.com/mcpcat/mcpcat-go-sdk/internal/mcp"
)

// ModulePath is the module providing ToolServer.
const ModulePath = "github.com/mcpcat/mcpcat-go-sdk"

// Registry names.
const (
	NameMCPGo      = "mcp-go"
	NameToolServer = "toolserver"
	NameGoSDK      = "go-sdk"
)

// Library module paths.
const (
	LibraryMCPGo = "github.com/mark3labs/mcp-go"
	LibraryGoSDK = "github.com/modelcontextprotocol/go-sdk"
)

// registry lists supported shapes in detection priority order. FastMCP-like
// entries come first because ToolServer embeds the go-sdk server and also
// satisfies the low-level probes.
var registry = []Descriptor{
	{
		Name:           NameMCPGo,
		Flavor:         FlavorFastMCP,
		Library:        LibraryMCPGo,
		MinVersion:     "v0.31.0",
		MaxVersion:     "v1.0.0",
		ToolsMember:    "AddTool",
		DispatchMember: "ToolHandlerFunc",
		Requires: []Capability{
			{Name: "AddTool(mcp.Tool, server.ToolHandlerFunc)", Probe: implements[mcpGoToolAdder]},
			{Name: "HandleMessage(context.Context, json.RawMessage)", Probe: implements[mcpGoMessageHandler]},
			{Name: "WithToolHandlerMiddleware", Probe: isMCPGoServer},
		},
		Hook:    HookToolHandlerMiddleware,
		Adapter: extractMCPGo,
	},
	{
		Name:           NameToolServer,
		Flavor:         FlavorFastMCP,
		Library:        ModulePath,
		ToolsMember:    "AddTool",
		DispatchMember: "UseToolMiddleware",
		Requires: []Capability{
			{Name: "UseToolMiddleware(...ToolMiddleware)", Probe: implements[toolServerMiddleware]},
			{Name: "CallTool(context.Context, string, map[string]any) (*mcp.CallToolResult, error)", Probe: implements[toolServerCaller]},
			{Name: "LowLevel() *mcp.Server", Probe: implements[lowLevelProvider]},
		},
		Hook:          HookToolMiddleware,
		Adapter:       extractToolServer,
		IntentCapture: true,
	},
	{
		Name:           NameGoSDK,
		Flavor:         FlavorLowLevel,
		Library:        LibraryGoSDK,
		MinVersion:     "v1.0.0",
		MaxVersion:     "v2.0.0",
		ToolsMember:    "AddTool",
		DispatchMember: "tools/call",
		Requires: []Capability{
			{Name: "AddTool(*mcp.Tool, mcp.ToolHandler)", Probe: implements[goSDKToolAdder]},
			{Name: "AddReceivingMiddleware(...mcp.Middleware)", Probe: implements[goSDKMiddleware]},
			{Name: "Connect(context.Context, mcp.Transport, *mcp.ServerSessionOptions)", Probe: implements[goSDKConnector]},
		},
		Hook:          HookReceivingMiddleware,
		Adapter:       extractGoSDK,
		IntentCapture: true,
	},
}

type mcpGoToolAdder interface {
	AddTool(tool mcpgo.Tool, handler mcpgoserver.ToolHandlerFunc)
}

type mcpGoMessageHandler interface {
	HandleMessage(ctx context.Context, message json.RawMessage) mcpgo.JSONRPCMessage
}

type toolServerMiddleware interface {
	UseToolMiddleware(mw ...toolserver.ToolMiddleware)
}

type toolServerCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

type lowLevelProvider interface {
	LowLevel() *mcp.Server
}

type goSDKToolAdder interface {
	AddTool(t *mcp.Tool, h mcp.ToolHandler)
}

type goSDKMiddleware interface {
	AddReceivingMiddleware(middleware ...mcp.Middleware)
}

type goSDKConnector interface {
	Connect(ctx context.Context, t mcp.Transport, opts *mcp.ServerSessionOptions) (*mcp.ServerSession, error)
}

func implements[T any](server any) bool {
	_, ok := server.(T)

	return ok
}

func isMCPGoServer(server any) bool {
	s, ok := server.(*mcpgoserver.MCPServer)

	return ok && s != nil
}
