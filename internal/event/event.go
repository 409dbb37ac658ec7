// Package event records one usage event per observed tool call.
//
// A Recorder hands out sequence numbers in call-start order. Each Open returns
// a Handle that transitions exactly once from open to closed.
package event

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// UnknownTool is the tool name recorded when a call could not be decoded.
const UnknownTool = "unknown"

// Outcome classifies how a tool call finished.
type Outcome string

const (
	// OutcomeSuccess indicates the handler returned a normal result.
	OutcomeSuccess Outcome = "success"
	// OutcomeToolError indicates the handler failed or flagged its result as an error.
	OutcomeToolError Outcome = "tool_error"
	// OutcomeInternalError marks a degraded event caused by instrumentation itself.
	OutcomeInternalError Outcome = "internal_error"
	// OutcomeCancelled indicates the call context ended before the handler returned.
	OutcomeCancelled Outcome = "cancelled"
)

// ErrorDetail describes a failed call.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	// Chain lists the errors wrapped by the failure, outermost first.
	Chain []ErrorDetail `json:"chained_errors,omitempty"`
	// Frames is the stack of a panicking handler, innermost first.
	Frames []Frame `json:"frames,omitempty"`
}

// Frame is one stack frame of a panic.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"filename"`
	Line     int    `json:"lineno"`
}

// UserIdentity tags events with the end user behind a client session.
type UserIdentity struct {
	UserID   string            `json:"user_id"`
	UserName string            `json:"user_name,omitempty"`
	UserData map[string]string `json:"user_data,omitempty"`
}

// IdentifyFunc resolves the user behind a call. It runs on the tool call
// path and must not block; a nil result leaves the event anonymous.
type IdentifyFunc func(ctx context.Context, call Call) *UserIdentity

// UsageEvent is one observed tool call.
type UsageEvent struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id,omitempty"`
	MCPSessionID  string         `json:"mcp_session_id,omitempty"`
	ClientName    string         `json:"client_name,omitempty"`
	ClientVersion string         `json:"client_version,omitempty"`
	Sequence      uint64         `json:"sequence"`
	ToolName      string         `json:"tool_name"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	UserIntent    string         `json:"user_intent,omitempty"`
	StartedAt     time.Time      `json:"timestamp"`
	Duration      time.Duration  `json:"duration"`
	Outcome       Outcome        `json:"outcome"`
	Error         *ErrorDetail   `json:"error,omitempty"`
	Identity      *UserIdentity  `json:"identity,omitempty"`
}

// Failed reports whether the event carries a failure outcome.
func (e UsageEvent) Failed() bool {
	return e.Outcome != OutcomeSuccess
}

// Call carries the request metadata available when a call opens.
type Call struct {
	ToolName      string
	Arguments     map[string]any
	MCPSessionID  string
	ClientName    string
	ClientVersion string
	UserIntent    string
	Identity      *UserIdentity
}

// Recorder assigns sequence numbers for a single server instance.
type Recorder struct {
	sessionID string
	now       func() time.Time

	mu  sync.Mutex
	seq uint64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder whose events carry sessionID.
func NewRecorder(sessionID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sessionID: sessionID,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SessionID returns the session identifier stamped on every event.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Last returns the most recently assigned sequence number.
func (r *Recorder) Last() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.seq
}

// Open starts an event for a call. The arguments map is copied so later
// mutation by the handler does not leak into the record.
func (r *Recorder) Open(call Call) *Handle {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	started := r.now()
	r.mu.Unlock()

	name := call.ToolName
	if name == "" {
		name = UnknownTool
	}

	return &Handle{
		now: r.now,
		event: UsageEvent{
			ID:            ulid.Make().String(),
			SessionID:     r.sessionID,
			MCPSessionID:  call.MCPSessionID,
			ClientName:    call.ClientName,
			ClientVersion: call.ClientVersion,
			Sequence:      seq,
			ToolName:      name,
			Arguments:     maps.Clone(call.Arguments),
			UserIntent:    call.UserIntent,
			Identity:      call.Identity,
			StartedAt:     started,
		},
	}
}

// Handle is an open event.
type Handle struct {
	now func() time.Time

	once  sync.Once
	event UsageEvent
}

// Sequence returns the sequence number assigned at open.
func (h *Handle) Sequence() uint64 {
	return h.event.Sequence
}

// Close finalizes the event. Only the first call has effect; it returns the
// closed event and true. Later calls return the same event and false.
func (h *Handle) Close(outcome Outcome, detail *ErrorDetail) (UsageEvent, bool) {
	first := false

	h.once.Do(func() {
		first = true
		h.event.Duration = h.now().Sub(h.event.StartedAt)
		h.event.Outcome = outcome

		if detail != nil {
			d := *detail
			h.event.Error = &d
		}
	})

	return h.event, first
}
