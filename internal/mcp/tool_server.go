package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolMiddleware wraps the dispatch of a single tool call.
type ToolMiddleware func(next mcp.ToolHandler) mcp.ToolHandler

// ToolServer is a high-level MCP server built on the official SDK server.
type ToolServer struct {
	*mcp.Server

	name    string
	version string

	mu         sync.RWMutex
	tools      map[string]*registeredTool
	middleware []ToolMiddleware
}

type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewToolServer creates a ToolServer. opts is passed to the underlying SDK
// server and may be nil.
func NewToolServer(name, version string, opts *mcp.ServerOptions) *ToolServer {
	return &ToolServer{
		Server:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, opts),
		name:    name,
		version: version,
		tools:   make(map[string]*registeredTool, 8),
	}
}

// AddTool registers a tool. A tool without an input schema accepts any object.
func (s *ToolServer) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	if missingSchema(tool.InputSchema) {
		withSchema := *tool
		withSchema.InputSchema = &jsonschema.Schema{Type: "object"}
		tool = &withSchema
	}

	s.mu.Lock()
	s.tools[tool.Name] = &registeredTool{tool: tool, handler: handler}
	s.mu.Unlock()

	s.Server.AddTool(tool, s.dispatch)
}

// missingSchema reports an unset schema, including a typed nil pointer
// stored in the interface.
func missingSchema(schema any) bool {
	switch v := schema.(type) {
	case nil:
		return true
	case *jsonschema.Schema:
		return v == nil
	case json.RawMessage:
		return len(v) == 0
	}

	return false
}

// UseToolMiddleware appends middleware to the dispatch chain. The first
// middleware added is the outermost.
func (s *ToolServer) UseToolMiddleware(mw ...ToolMiddleware) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.middleware = append(s.middleware, mw...)
}

// LowLevel returns the embedded SDK server.
func (s *ToolServer) LowLevel() *mcp.Server {
	return s.Server
}

// Name returns the server name.
func (s *ToolServer) Name() string {
	return s.name
}

// Version returns the server version.
func (s *ToolServer) Version() string {
	return s.version
}

// HasTool reports whether a tool with the given name is registered.
func (s *ToolServer) HasTool(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tools[name]

	return ok
}

// dispatch routes a call through the middleware chain to the tool handler.
func (s *ToolServer) dispatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := ""
	if req != nil && req.Params != nil {
		name = req.Params.Name
	}

	s.mu.RLock()
	t, exists := s.tools[name]
	chain := slices.Clone(s.middleware)
	s.mu.RUnlock()

	var handler mcp.ToolHandler = func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !exists {
			return ErrorResult("unknown tool: " + name), nil
		}

		return t.handler(ctx, req)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	return handler(ctx, req)
}

// Tools returns the registered tool definitions ordered by name.
func (s *ToolServer) Tools() []*mcp.Tool {
	s.mu.RLock()
	out := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t.tool)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *mcp.Tool) int { return cmp.Compare(a.Name, b.Name) })

	return out
}

// CallTool invokes a tool in process through the same middleware chain a
// session uses. An unknown tool yields an error result; a handler error is
// returned as is.
func (s *ToolServer) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments for %q: %w", name, err)
	}

	return s.dispatch(ctx, &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: raw},
	})
}
