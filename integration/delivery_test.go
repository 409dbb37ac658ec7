//go:build integration

package integration

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpcat "github.com/mcpcat/mcpcat-go-sdk"
)

func TestStreamableHTTP_EndToEnd(t *testing.T) {
	clearEnv(t)

	backend := newCollector(t)
	server := newEchoServer()

	tracker, err := mcpcat.Track(server,
		mcpcat.WithEndpoint(backend.URL),
		mcpcat.WithProjectID("proj_integration"),
		mcpcat.WithMaxBatchDelay(20*time.Millisecond),
	)
	require.NoError(t, err)

	session := serveStreamable(t, server)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	require.NoError(t, err)
	require.Equal(t, "hi", mcpcat.ResultText(res))

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.True(t, res.IsError)

	require.Eventually(t, func() bool { return len(backend.events()) == 2 }, 5*time.Second, 10*time.Millisecond)

	events := backend.events()
	assert.Equal(t, "echo", events[0]["resource_name"])
	assert.Equal(t, false, events[0]["is_error"])
	assert.Equal(t, true, events[1]["is_error"])
	assert.Equal(t, "integration-client", events[0]["client_name"])
	assert.NotEmpty(t, events[0]["mcp_session_id"])

	require.NoError(t, tracker.Close(ctx))
}

func TestRetriesTransientFailures(t *testing.T) {
	clearEnv(t)

	backend := newCollector(t, http.StatusServiceUnavailable, http.StatusTooManyRequests)
	server := newEchoServer()

	tracker, err := mcpcat.Track(server,
		mcpcat.WithEndpoint(backend.URL),
		mcpcat.WithRetry(5, 5*time.Millisecond, 20*time.Millisecond),
	)
	require.NoError(t, err)

	session := serveStreamable(t, server)

	_, err = session.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "retry"}})
	require.NoError(t, err)

	require.NoError(t, tracker.Close(context.Background()))

	stats := tracker.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(2), stats.Retries)
	assert.Zero(t, stats.FailedBatches)
	assert.Equal(t, 3, backend.requests())
	require.Len(t, backend.events(), 1)
}

func TestDropsRejectedBatch(t *testing.T) {
	clearEnv(t)

	backend := newCollector(t, http.StatusBadRequest)
	server := newEchoServer()

	tracker, err := mcpcat.Track(server,
		mcpcat.WithEndpoint(backend.URL),
		mcpcat.WithRetry(5, 5*time.Millisecond, 20*time.Millisecond),
	)
	require.NoError(t, err)

	session := serveStreamable(t, server)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "x"}})
	require.NoError(t, err)
	require.Equal(t, "x", mcpcat.ResultText(res), "delivery failures never reach the client")

	require.NoError(t, tracker.Close(context.Background()))

	stats := tracker.Stats()
	assert.Equal(t, uint64(1), stats.FailedBatches)
	assert.Equal(t, uint64(1), stats.DroppedOnFailure)
	assert.Equal(t, 1, backend.requests())
}

func TestConcurrentCallsGetDistinctSequences(t *testing.T) {
	clearEnv(t)

	const calls = 20

	backend := newCollector(t)
	server := newEchoServer()

	tracker, err := mcpcat.Track(server, mcpcat.WithEndpoint(backend.URL), mcpcat.WithMaxBatchSize(7))
	require.NoError(t, err)

	session := serveStreamable(t, server)

	var wg sync.WaitGroup
	for range calls {
		wg.Go(func() {
			_, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "c"}})
			assert.NoError(t, err)
		})
	}

	wg.Wait()
	require.NoError(t, tracker.Close(context.Background()))

	seen := make(map[float64]bool)
	for _, ev := range backend.events() {
		seq, ok := ev["sequence"].(float64)
		require.True(t, ok)
		require.False(t, seen[seq], "duplicate sequence %v", seq)
		seen[seq] = true
	}

	require.Len(t, seen, calls)

	for i := 1; i <= calls; i++ {
		assert.True(t, seen[float64(i)], "missing sequence %d", i)
	}
}
