// Package mcpcat adds usage analytics to Go MCP servers.
//
// Track detects which MCP library a server is built with, attaches
// interception to its tool dispatch, and delivers one usage event per tool
// call to the MCPcat backend in the background. Tool calls are never slowed
// down or altered by delivery: events are buffered in a bounded queue and
// submitted in batches with bounded retry.
//
// # Basic Usage
//
//	server := mcp.NewServer(&mcp.Implementation{Name: "weather", Version: "1.0.0"}, nil)
//	mcp.AddTool(server, forecastTool, forecast)
//
//	tracker, err := mcpcat.Track(server,
//	    mcpcat.WithProjectID("proj_123"),
//	    mcpcat.WithRedactArguments(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracker.Close(context.Background())
//
// # Supported Servers
//
// Three server shapes are recognised, checked in this order:
//
//   - *server.MCPServer from github.com/mark3labs/mcp-go
//   - *mcpcat.ToolServer, the in-process tool server shipped with this module
//   - *mcp.Server from github.com/modelcontextprotocol/go-sdk
//
// An unrecognised server fails with *UnsupportedServerError listing the
// capabilities each shape found missing, and the server is left untouched.
//
// # Telemetry Only
//
// Events can be exported as OpenTelemetry spans or handed to a callback
// without an MCPcat project:
//
//	tracker, err := mcpcat.Track(server,
//	    mcpcat.WithTracing(mcpcat.TracingConfig{Enabled: true, Exporter: "otlp"}),
//	)
//
// # Debugging
//
// Set MCPCAT_DEBUG_MODE=1 to write a JSON debug log to ~/mcpcat.log when no
// logger is supplied with WithLogger.
package mcpcat
