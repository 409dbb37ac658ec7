package mcp

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// jsonTypes maps Go type spellings to JSON Schema types.
var jsonTypes = map[string]string{
	"string": "string", "bool": "boolean", "boolean": "boolean",
	"int": "integer", "int8": "integer", "int16": "integer", "int32": "integer", "int64": "integer",
	"uint": "integer", "uint8": "integer", "uint16": "integer", "uint32": "integer", "uint64": "integer",
	"float": "number", "float32": "number", "float64": "number", "number": "number",
	"any": "object", "object": "object", "map[string]any": "object",
}

// SimpleSchema turns a map of property name to Go type spelling, such as
// "float64" or "[]string", into an object schema that requires every
// property.
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(props)),
		Required:   slices.Sorted(maps.Keys(props)),
	}
	for prop, goType := range props {
		schema.Properties[prop] = schemaForGoType(goType)
	}

	return schema
}

// schemaForGoType falls back to string for spellings it does not know.
func schemaForGoType(goType string) *jsonschema.Schema {
	if elem, isSlice := strings.CutPrefix(goType, "[]"); isSlice && elem != "" {
		return &jsonschema.Schema{Type: "array", Items: schemaForGoType(elem)}
	}

	if t, ok := jsonTypes[goType]; ok {
		return &jsonschema.Schema{Type: t}
	}

	return &jsonschema.Schema{Type: "string"}
}

func result(isError bool, content ...mcp.Content) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: content, IsError: isError}
}

// TextResult wraps text as a successful tool result.
func TextResult(text string) *mcp.CallToolResult {
	return result(false, &mcp.TextContent{Text: text})
}

// ErrorResult wraps message as a tool-level failure. The call itself
// succeeds at the protocol level.
func ErrorResult(message string) *mcp.CallToolResult {
	return result(true, &mcp.TextContent{Text: message})
}

// ImageResult wraps raw image bytes.
func ImageResult(data []byte, mimeType string) *mcp.CallToolResult {
	return result(false, &mcp.ImageContent{Data: data, MIMEType: mimeType})
}

// NewTool returns a tool definition. A nil schema leaves InputSchema unset,
// and ToolServer.AddTool fills in an empty object schema.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	tool := &mcp.Tool{Name: name, Description: description}
	if inputSchema != nil {
		tool.InputSchema = inputSchema
	}

	return tool
}

// ParseArguments decodes the raw arguments of a call. Absent or null
// arguments decode to an empty map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	args := map[string]any{}
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return args, nil
	}

	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

// ResultText joins the text content of a result.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}

	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}

	return strings.Join(parts, "\n")
}
