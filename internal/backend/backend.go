// Package backend submits usage event batches to the MCPcat HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mcpcat/mcpcat-go-sdk/internal/dispatch"
	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

// SDKLanguage identifies this SDK in submitted batches.
const SDKLanguage = "go"

// DefaultTimeout bounds one submission attempt when no HTTP client is given.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	Endpoint   string
	APIKey     string
	ProjectID  string
	SessionID  string
	SDKVersion string
	HTTPClient *http.Client
}

// Client posts batches as JSON.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// New creates a Client. Endpoint is required.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, &errors.ConfigError{Field: "Endpoint", Reason: "must not be empty"}
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		cfg:  cfg,
		http: hc,
		log:  log.With("component", "backend"),
	}, nil
}

// Batch is the request body of one submission.
type Batch struct {
	BatchID     string      `json:"batch_id"`
	ProjectID   string      `json:"project_id,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	SDKLanguage string      `json:"sdk_language"`
	SDKVersion  string      `json:"sdk_version,omitempty"`
	Events      []WireEvent `json:"events"`
}

// WireEvent is the JSON form of a usage event.
type WireEvent struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"session_id,omitempty"`
	MCPSessionID  string             `json:"mcp_session_id,omitempty"`
	ClientName    string             `json:"client_name,omitempty"`
	ClientVersion string             `json:"client_version,omitempty"`
	Sequence      uint64             `json:"sequence"`
	EventType     string             `json:"event_type"`
	ToolName      string             `json:"resource_name"`
	Arguments     map[string]any     `json:"parameters,omitempty"`
	UserIntent    string             `json:"user_intent,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
	DurationMS    int64              `json:"duration"`
	Outcome       event.Outcome      `json:"outcome"`
	IsError       bool               `json:"is_error"`
	Error         *event.ErrorDetail `json:"error,omitempty"`

	IdentifyActorID   string            `json:"identify_actor_given_id,omitempty"`
	IdentifyActorName string            `json:"identify_actor_name,omitempty"`
	IdentifyData      map[string]string `json:"identify_data,omitempty"`
}

// eventTypeToolCall is the event type recorded for every tool call.
const eventTypeToolCall = "mcp:tools/call"

// NewBatch converts events to their wire form under batchID.
func (c *Client) NewBatch(batchID string, events []event.UsageEvent) Batch {
	wire := make([]WireEvent, 0, len(events))
	for _, ev := range events {
		w := WireEvent{
			ID:            ev.ID,
			SessionID:     ev.SessionID,
			MCPSessionID:  ev.MCPSessionID,
			ClientName:    ev.ClientName,
			ClientVersion: ev.ClientVersion,
			Sequence:      ev.Sequence,
			EventType:     eventTypeToolCall,
			ToolName:      ev.ToolName,
			Arguments:     ev.Arguments,
			UserIntent:    ev.UserIntent,
			Timestamp:     ev.StartedAt.UTC(),
			DurationMS:    ev.Duration.Milliseconds(),
			Outcome:       ev.Outcome,
			IsError:       ev.Failed(),
			Error:         ev.Error,
		}

		if ev.Identity != nil {
			w.IdentifyActorID = ev.Identity.UserID
			w.IdentifyActorName = ev.Identity.UserName
			w.IdentifyData = ev.Identity.UserData
		}

		wire = append(wire, w)
	}

	return Batch{
		BatchID:     batchID,
		ProjectID:   c.cfg.ProjectID,
		SessionID:   c.cfg.SessionID,
		SDKLanguage: SDKLanguage,
		SDKVersion:  c.cfg.SDKVersion,
		Events:      wire,
	}
}

// SubmitBatch posts events. The batch id, sent as the Idempotency-Key, is
// taken from ctx so retries of one batch share it; a fresh one is made when
// ctx has none. Failures are returned as *errors.TransmissionError whose
// Retryable field follows the response status.
func (c *Client) SubmitBatch(ctx context.Context, events []event.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	batchID := dispatch.BatchID(ctx)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	batch := c.NewBatch(batchID, events)

	body, err := json.Marshal(batch)
	if err != nil {
		return &errors.TransmissionError{Err: fmt.Errorf("encode batch: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &errors.TransmissionError{Err: fmt.Errorf("build request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", batch.BatchID)
	req.Header.Set("User-Agent", c.userAgent())

	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.TransmissionError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)

		c.log.Debug("Batch accepted",
			"batch_id", batch.BatchID,
			"events", len(events),
			"status", resp.StatusCode,
		)

		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &errors.TransmissionError{
		StatusCode: resp.StatusCode,
		Retryable:  Retryable(resp.StatusCode),
		Err:        fmt.Errorf("%s: %s", http.StatusText(resp.StatusCode), bytes.TrimSpace(snippet)),
	}
}

func (c *Client) userAgent() string {
	version := c.cfg.SDKVersion
	if version == "" {
		version = "dev"
	}

	return "mcpcat-go-sdk/" + version
}

// Retryable reports whether a response status warrants another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}

	return status >= 500
}
