// Package mcp implements ToolServer, an in-process Model Context Protocol
// server with a high-level tool registry.
//
// ToolServer embeds the official SDK server, so it can be served over any
// go-sdk transport, while keeping its own name-indexed tool table for direct
// programmatic invocation. Tool dispatch passes through a middleware chain
// that instrumentation attaches to.
package mcp
