// Package main is the entry point for mcpcat-echo, a demo MCP server that
// reports its tool calls through the mcpcat SDK.
package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := newRootCmd(fmt.Sprintf("%s (commit: %s)", version, commit))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
