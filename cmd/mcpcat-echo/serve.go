package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mcpcat "github.com/mcpcat/mcpcat-go-sdk"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the echo toolset over stdio",
		Long: `Serve the echo toolset over stdio and report every tool call.

Events are sent to the MCPcat API when a project or endpoint is configured,
exported as OpenTelemetry spans when tracing is enabled, and logged to
stderr with --log-events.

Examples:
  # Report to the hosted API
  MCPCAT_PROJECT_ID=proj_123 mcpcat-echo serve

  # Print spans to stderr instead
  mcpcat-echo serve --tracing --tracing-exporter stdout`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, s, &mcp.StdioTransport{})
		},
	}

	flags := cmd.Flags()
	flags.String("endpoint", "", "batch submission URL")
	flags.String("project-id", "", "MCPcat project id")
	flags.Bool("capture-intent", false, "record the caller's stated intent")
	flags.Bool("redact", false, "redact secrets from recorded arguments")
	flags.Bool("log-events", true, "log each tool call to stderr")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("tracing", false, "export tool calls as OpenTelemetry spans")
	flags.String("tracing-exporter", "stdout", "span exporter: none, stdout or otlp")
	flags.String("otlp-endpoint", "", "OTLP collector address")

	for key, flag := range map[string]string{
		"endpoint":              "endpoint",
		"project_id":            "project-id",
		"capture_intent":        "capture-intent",
		"redact_arguments":      "redact",
		"log_events":            "log-events",
		"debug":                 "debug",
		"tracing.enabled":       "tracing",
		"tracing.exporter":      "tracing-exporter",
		"tracing.otlp_endpoint": "otlp-endpoint",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

// serve runs the echo server on transport until ctx is cancelled or the
// client disconnects.
func serve(ctx context.Context, s settings, transport mcp.Transport) error {
	log := newLogger(s.Debug)
	server := newEchoServer()

	tracker, err := mcpcat.Track(server, s.options(log)...)
	if err != nil {
		return fmt.Errorf("tracking server: %w", err)
	}

	defer func() {
		if closeErr := tracker.Close(context.WithoutCancel(ctx)); closeErr != nil {
			log.Warn("Failed to flush events", "error", closeErr)
		}
	}()

	log.Info("Serving", "shape", tracker.Shape().Name, "session_id", tracker.SessionID())

	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving: %w", err)
	}

	return nil
}

func newEchoServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "mcpcat-echo", Version: mcpcat.Version}, nil)

	server.AddTool(
		mcpcat.NewTool("echo", "Echo the given text", mcpcat.SimpleSchema(map[string]string{"text": "string"})),
		func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := mcpcat.ParseArguments(req)
			if err != nil {
				return mcpcat.ErrorResult(err.Error()), nil
			}

			text, _ := args["text"].(string)

			return mcpcat.TextResult(text), nil
		},
	)

	server.AddTool(
		mcpcat.NewTool("reverse", "Reverse the given text", mcpcat.SimpleSchema(map[string]string{"text": "string"})),
		func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := mcpcat.ParseArguments(req)
			if err != nil {
				return mcpcat.ErrorResult(err.Error()), nil
			}

			text, ok := args["text"].(string)
			if !ok || text == "" {
				return mcpcat.ErrorResult("text is required"), nil
			}

			runes := []rune(text)
			slices.Reverse(runes)

			return mcpcat.TextResult(string(runes)), nil
		},
	)

	server.AddTool(
		mcpcat.NewTool("upper", "Upper-case the given text", mcpcat.SimpleSchema(map[string]string{"text": "string"})),
		func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := mcpcat.ParseArguments(req)
			if err != nil {
				return nil, err
			}

			text, _ := args["text"].(string)

			return mcpcat.TextResult(strings.ToUpper(text)), nil
		},
	)

	return server
}
