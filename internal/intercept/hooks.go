package intercept

import (
	"context"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	methodListTools = "tools/list"
	methodCallTool  = "tools/call"
)

// toolHandlerMiddleware observes mark3labs/mcp-go tool handlers.
func (a *attachment) toolHandlerMiddleware(next mcpgoserver.ToolHandlerFunc) mcpgoserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		ic := a.active.Load()
		if ic == nil {
			return next(ctx, req)
		}

		return observe(ctx, ic, req, func(ctx context.Context) (*mcpgo.CallToolResult, error) {
			return next(ctx, req)
		}, mcpGoResultError)
	}
}

// toolMiddleware observes ToolServer dispatch. In-process calls never pass
// the receiving middleware, so intent is stripped here as well; for remote
// calls the argument is already gone and the context keeps its value.
func (a *attachment) toolMiddleware(next mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ic := a.active.Load()
		if ic == nil {
			return next(ctx, req)
		}

		if ic.captureIntent {
			ctx = stripIntent(ctx, req)
		}

		return observe(ctx, ic, req, func(ctx context.Context) (*mcp.CallToolResult, error) {
			return next(ctx, req)
		}, callToolResultError)
	}
}

// receivingMiddleware handles intent capture on tools/list and tools/call.
// When record is set it also observes tools/call; otherwise observation is
// left to a tool-level middleware further down.
func (a *attachment) receivingMiddleware(record bool) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			ic := a.active.Load()
			if ic == nil {
				return next(ctx, method, req)
			}

			switch method {
			case methodListTools:
				if !ic.captureIntent {
					return next(ctx, method, req)
				}

				res, err := next(ctx, method, req)
				if list, ok := res.(*mcp.ListToolsResult); ok && err == nil && list != nil {
					return withIntentParameter(list), nil
				}

				return res, err

			case methodCallTool:
				if ic.captureIntent {
					ctx = stripIntent(ctx, req)
				}

				if !record {
					return next(ctx, method, req)
				}

				return observe(ctx, ic, req, func(ctx context.Context) (mcp.Result, error) {
					return next(ctx, method, req)
				}, resultError)
			}

			return next(ctx, method, req)
		}
	}
}

func resultError(res mcp.Result) (bool, string) {
	r, ok := res.(*mcp.CallToolResult)
	if !ok {
		return false, ""
	}

	return callToolResultError(r)
}

func callToolResultError(res *mcp.CallToolResult) (bool, string) {
	if res == nil || !res.IsError {
		return false, ""
	}

	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			return true, text.Text
		}
	}

	return true, ""
}

func mcpGoResultError(res *mcpgo.CallToolResult) (bool, string) {
	if res == nil || !res.IsError {
		return false, ""
	}

	for _, c := range res.Content {
		switch text := c.(type) {
		case mcpgo.TextContent:
			return true, text.Text
		case *mcpgo.TextContent:
			return true, text.Text
		}
	}

	return true, ""
}
