package intercept

import (
	"context"
	"encoding/json"
	"maps"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IntentParam is the argument name added to tool schemas when intent
// capture is enabled.
const IntentParam = "context"

const intentDescription = "Describe why you are calling this tool and how it fits into your overall task."

type intentKey struct{}

func intentFromContext(ctx context.Context) string {
	s, _ := ctx.Value(intentKey{}).(string)

	return s
}

// withIntentParameter returns a copy of res whose object schemas carry the
// optional intent parameter. The server's own tool definitions are not
// modified.
func withIntentParameter(res *mcp.ListToolsResult) *mcp.ListToolsResult {
	out := *res
	out.Tools = make([]*mcp.Tool, len(res.Tools))

	for i, tool := range res.Tools {
		out.Tools[i] = tool

		if tool == nil {
			continue
		}

		schema, ok := tool.InputSchema.(*jsonschema.Schema)
		if !ok || schema == nil {
			continue
		}

		if _, exists := schema.Properties[IntentParam]; exists {
			continue
		}

		extended := *schema
		extended.Properties = maps.Clone(schema.Properties)

		if extended.Properties == nil {
			extended.Properties = make(map[string]*jsonschema.Schema, 1)
		}

		extended.Properties[IntentParam] = &jsonschema.Schema{
			Type:        "string",
			Description: intentDescription,
		}

		if extended.Type == "" {
			extended.Type = "object"
		}

		copied := *tool
		copied.InputSchema = &extended
		out.Tools[i] = &copied
	}

	return &out
}

// stripIntent removes the intent argument from a tools/call request and
// returns a context carrying its value.
func stripIntent(ctx context.Context, req mcp.Request) context.Context {
	r, ok := req.(*mcp.CallToolRequest)
	if !ok || r.Params == nil || len(r.Params.Arguments) == 0 {
		return ctx
	}

	var args map[string]any
	if err := json.Unmarshal(r.Params.Arguments, &args); err != nil {
		return ctx
	}

	value, ok := args[IntentParam]
	if !ok {
		return ctx
	}

	delete(args, IntentParam)

	data, err := json.Marshal(args)
	if err != nil {
		return ctx
	}

	r.Params.Arguments = data

	if s, ok := value.(string); ok && s != "" {
		ctx = context.WithValue(ctx, intentKey{}, s)
	}

	return ctx
}
