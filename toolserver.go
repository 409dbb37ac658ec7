package mcpcat

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/mcpcat/mcpcat-go-sdk/internal/mcp"
)

// Aliases for the go-sdk protocol types used by ToolServer handlers, so
// callers building a ToolServer need only this package.
type (
	CallToolResult  = mcp.CallToolResult
	CallToolRequest = mcp.CallToolRequest
	Tool            = mcp.Tool
	ToolHandler     = mcp.ToolHandler
	Schema          = jsonschema.Schema

	// ToolServer keeps its own tool table and middleware chain on top of an
	// embedded *mcp.Server, so it serves over any go-sdk transport and can
	// also be called in process. Track recognises it as the "toolserver"
	// shape.
	ToolServer = internalmcp.ToolServer

	// ToolMiddleware wraps every ToolServer tool call, in process or remote.
	ToolMiddleware = internalmcp.ToolMiddleware
)

// NewToolServer returns an empty ToolServer. opts is handed to the embedded
// go-sdk server and may be nil.
//
//	server := mcpcat.NewToolServer("calculator", "1.0.0", nil)
//	server.AddTool(
//		mcpcat.NewTool("add", "Add two numbers", mcpcat.SimpleSchema(map[string]string{"a": "float64", "b": "float64"})),
//		addHandler,
//	)
//	tracker, err := mcpcat.Track(server, mcpcat.WithProjectID("proj_123"))
func NewToolServer(name, version string, opts *mcp.ServerOptions) *ToolServer {
	return internalmcp.NewToolServer(name, version, opts)
}

// NewTool describes a tool for ToolServer.AddTool. A nil inputSchema is
// replaced by an empty object schema when the tool is added.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return internalmcp.NewTool(name, description, inputSchema)
}

// SimpleSchema builds a required-fields object schema from Go type
// spellings. Integer kinds map to "integer", float kinds to "number", a
// "[]T" prefix to an array of T, and unknown spellings to "string".
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	return internalmcp.SimpleSchema(props)
}

// TextResult returns a successful result holding a single text part.
func TextResult(text string) *mcp.CallToolResult {
	return internalmcp.TextResult(text)
}

// ErrorResult reports a tool-level failure. Tracked servers record such
// calls with the tool_error outcome.
func ErrorResult(message string) *mcp.CallToolResult {
	return internalmcp.ErrorResult(message)
}

// ImageResult returns a successful result holding one image. data is the
// raw image; the protocol layer base64-encodes it on the wire.
func ImageResult(data []byte, mimeType string) *mcp.CallToolResult {
	return internalmcp.ImageResult(data, mimeType)
}

// ParseArguments decodes call arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	return internalmcp.ParseArguments(req)
}

// ResultText joins the text parts of a result with newlines.
func ResultText(result *mcp.CallToolResult) string {
	return internalmcp.ResultText(result)
}
