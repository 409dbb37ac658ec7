package intercept

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
	"github.com/mcpcat/mcpcat-go-sdk/internal/shape"
)

// interceptor is the armed state of an attachment.
type interceptor struct {
	desc          shape.Descriptor
	rec           *event.Recorder
	sink          Sink
	log           *slog.Logger
	captureIntent bool
	identify      event.IdentifyFunc

	// identities caches resolved users by MCP session id.
	identities sync.Map

	// mu guards running and idle, the in-flight call count and the channel
	// closed when it falls back to zero.
	mu      sync.Mutex
	running int
	idle    chan struct{}
}

func (ic *interceptor) begin() {
	ic.mu.Lock()
	ic.running++
	ic.mu.Unlock()
}

func (ic *interceptor) end() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.running--
	if ic.running == 0 && ic.idle != nil {
		close(ic.idle)
		ic.idle = nil
	}
}

// wait blocks until no observed call is running or ctx ends.
func (ic *interceptor) wait(ctx context.Context) error {
	ic.mu.Lock()
	if ic.running == 0 {
		ic.mu.Unlock()

		return nil
	}

	if ic.idle == nil {
		ic.idle = make(chan struct{})
	}

	idle := ic.idle
	ic.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call is one observed tool call in flight.
type call struct {
	handle *event.Handle
	// degraded is set when metadata extraction failed; the event is then
	// closed as an internal error whatever the tool returned.
	degraded *event.ErrorDetail
}

// observe runs next as one tool call of req. The value and error next
// returns are passed back unchanged; a panic is recorded and re-raised.
func observe[R any](
	ctx context.Context,
	ic *interceptor,
	req any,
	next func(context.Context) (R, error),
	resultError func(R) (bool, string),
) (R, error) {
	ic.begin()
	defer ic.end()

	c := ic.open(ctx, req)

	completed := false

	defer func() {
		if completed {
			return
		}

		r := recover()
		if r == nil {
			ic.finish(c, event.OutcomeCancelled, &event.ErrorDetail{Type: "goexit", Message: "tool handler exited"})

			return
		}

		ic.finish(c, event.OutcomeToolError, event.PanicDetail(r, 1))

		panic(r)
	}()

	res, err := next(ctx)
	completed = true

	isError, message := false, ""
	if err == nil {
		isError, message = resultError(res)
	}

	outcome, detail := classify(ctx, err, isError, message)
	ic.finish(c, outcome, detail)

	return res, err
}

func (ic *interceptor) open(ctx context.Context, req any) (c call) {
	intent := intentFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			c = ic.degrade(intent, fmt.Sprintf("adapter panic: %v", r))
		}
	}()

	extracted, err := ic.desc.Adapter(ctx, req)
	if err != nil {
		return ic.degrade(intent, err.Error())
	}

	meta := event.Call{
		ToolName:      extracted.ToolName,
		Arguments:     extracted.Arguments,
		MCPSessionID:  extracted.MCPSessionID,
		ClientName:    extracted.ClientName,
		ClientVersion: extracted.ClientVersion,
		UserIntent:    intent,
	}
	meta.Identity = ic.identity(ctx, meta)

	return call{handle: ic.rec.Open(meta)}
}

// identity resolves the caller once per MCP session. Calls without a
// session id ask every time. A panicking callback leaves the event
// anonymous.
func (ic *interceptor) identity(ctx context.Context, meta event.Call) (user *event.UserIdentity) {
	if ic.identify == nil {
		return nil
	}

	if meta.MCPSessionID != "" {
		if cached, ok := ic.identities.Load(meta.MCPSessionID); ok {
			return cached.(*event.UserIdentity)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			ic.log.Warn("Identify callback panicked", "panic", r, "tool", meta.ToolName)
			user = nil
		}
	}()

	user = ic.identify(ctx, meta)
	if user != nil && meta.MCPSessionID != "" {
		ic.identities.Store(meta.MCPSessionID, user)
	}

	return user
}

func (ic *interceptor) degrade(intent, reason string) call {
	ic.log.Debug("Tool call metadata extraction failed", "shape", ic.desc.Name, "reason", reason)

	return call{
		handle: ic.rec.Open(event.Call{ToolName: event.UnknownTool, UserIntent: intent}),
		degraded: &event.ErrorDetail{
			Type:    "extraction_failed",
			Message: reason,
		},
	}
}

func (ic *interceptor) finish(c call, outcome event.Outcome, detail *event.ErrorDetail) {
	if c.degraded != nil {
		outcome, detail = event.OutcomeInternalError, c.degraded
	}

	ev, first := c.handle.Close(outcome, detail)
	if !first || ic.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			ic.log.Warn("Usage event sink panicked", "panic", r, "tool", ev.ToolName)
		}
	}()

	ic.sink(ev)
}

func classify(ctx context.Context, err error, isError bool, message string) (event.Outcome, *event.ErrorDetail) {
	switch {
	case err != nil && (ctx.Err() != nil ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)):
		return event.OutcomeCancelled, &event.ErrorDetail{Type: "cancelled", Message: err.Error()}
	case err != nil:
		return event.OutcomeToolError, event.NewErrorDetail(err)
	case ctx.Err() != nil:
		return event.OutcomeCancelled, &event.ErrorDetail{Type: "cancelled", Message: ctx.Err().Error()}
	case isError:
		return event.OutcomeToolError, &event.ErrorDetail{Type: "tool_error", Message: message}
	default:
		return event.OutcomeSuccess, nil
	}
}
