package shape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
)

func extractMCPGo(ctx context.Context, req any) (Call, error) {
	var r mcpgo.CallToolRequest

	switch v := req.(type) {
	case mcpgo.CallToolRequest:
		r = v
	case *mcpgo.CallToolRequest:
		if v == nil {
			return Call{}, extractionError(NameMCPGo, "nil request", nil)
		}

		r = *v
	default:
		return Call{}, extractionError(NameMCPGo, fmt.Sprintf("unexpected request type %T", req), nil)
	}

	if r.Params.Name == "" {
		return Call{}, extractionError(NameMCPGo, "empty tool name", nil)
	}

	args := r.GetArguments()
	if args == nil && r.Params.Arguments != nil {
		var err error

		switch raw := r.Params.Arguments.(type) {
		case json.RawMessage:
			args, err = decodeArguments(NameMCPGo, raw)
		case []byte:
			args, err = decodeArguments(NameMCPGo, raw)
		default:
			err = extractionError(NameMCPGo, fmt.Sprintf("arguments of type %T", raw), nil)
		}

		if err != nil {
			return Call{}, err
		}
	}

	call := Call{ToolName: r.Params.Name, Arguments: args}

	if session := mcpgoserver.ClientSessionFromContext(ctx); session != nil {
		call.MCPSessionID = session.SessionID()
	}

	return call, nil
}

func extractGoSDK(_ context.Context, req any) (Call, error) {
	return extractCallToolRequest(NameGoSDK, req)
}

func extractToolServer(_ context.Context, req any) (Call, error) {
	return extractCallToolRequest(NameToolServer, req)
}

func extractCallToolRequest(shapeName string, req any) (Call, error) {
	r, ok := req.(*mcp.CallToolRequest)
	if !ok {
		return Call{}, extractionError(shapeName, fmt.Sprintf("unexpected request type %T", req), nil)
	}

	if r == nil || r.Params == nil {
		return Call{}, extractionError(shapeName, "missing params", nil)
	}

	if r.Params.Name == "" {
		return Call{}, extractionError(shapeName, "empty tool name", nil)
	}

	args, err := decodeArguments(shapeName, r.Params.Arguments)
	if err != nil {
		return Call{}, err
	}

	call := Call{ToolName: r.Params.Name, Arguments: args}

	if r.Session != nil {
		call.MCPSessionID = r.Session.ID()

		if params := r.Session.InitializeParams(); params != nil && params.ClientInfo != nil {
			call.ClientName = params.ClientInfo.Name
			call.ClientVersion = params.ClientInfo.Version
		}
	}

	return call, nil
}

func decodeArguments(shapeName string, raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var args map[string]any
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, extractionError(shapeName, "decode arguments", err)
	}

	return args, nil
}

func extractionError(shapeName, reason string, err error) error {
	return &errors.AdapterExtractionError{Shape: shapeName, Reason: reason, Err: err}
}
