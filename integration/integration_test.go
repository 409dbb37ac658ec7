//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	mcpcat "github.com/mcpcat/mcpcat-go-sdk"
)

// clearEnv keeps ambient MCPCAT_* variables from redirecting delivery.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"MCPCAT_API_URL", "MCPCAT_API_KEY", "MCPCAT_PROJECT_ID", "MCPCAT_DEBUG_MODE"} {
		t.Setenv(key, "")
	}
}

// collector is an MCPcat-compatible batch endpoint.
type collector struct {
	*httptest.Server

	mu       sync.Mutex
	batches  []batch
	statuses []int
	calls    int
}

type batch struct {
	BatchID   string           `json:"batch_id"`
	ProjectID string           `json:"project_id"`
	SessionID string           `json:"session_id"`
	Events    []map[string]any `json:"events"`
	IdemKey   string           `json:"-"`
}

// newCollector answers with statuses in order, then 202 for every later
// request.
func newCollector(t *testing.T, statuses ...int) *collector {
	t.Helper()

	c := &collector{statuses: statuses}
	c.Server = httptest.NewServer(http.HandlerFunc(c.handle))
	t.Cleanup(c.Close)

	return c
}

func (c *collector) handle(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := http.StatusAccepted
	if c.calls < len(c.statuses) {
		status = c.statuses[c.calls]
	}

	c.calls++

	if status/100 == 2 {
		var b batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		b.IdemKey = r.Header.Get("Idempotency-Key")
		c.batches = append(c.batches, b)
	}

	w.WriteHeader(status)
}

func (c *collector) events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, b := range c.batches {
		out = append(out, b.Events...)
	}

	return out
}

func (c *collector) requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func newEchoServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "integration-echo", Version: "1.0.0"}, nil)
	server.AddTool(
		mcpcat.NewTool("echo", "Echo text", mcpcat.SimpleSchema(map[string]string{"text": "string"})),
		func(_ context.Context, req *mcpcat.CallToolRequest) (*mcpcat.CallToolResult, error) {
			args, err := mcpcat.ParseArguments(req)
			if err != nil {
				return nil, err
			}

			text, _ := args["text"].(string)
			if text == "" {
				return mcpcat.ErrorResult("text is required"), nil
			}

			return mcpcat.TextResult(text), nil
		},
	)

	return server
}

// serveStreamable exposes server over streamable HTTP and returns a
// connected client session.
func serveStreamable(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-client", Version: "2.0.0"}, nil)

	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: srv.URL}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}
