package exporter

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

const instrumentationName = "github.com/mcpcat/mcpcat-go-sdk"

// Span attribute keys.
const (
	AttrToolName   = attribute.Key("mcp.tool.name")
	AttrMCPSession = attribute.Key("mcp.session.id")
	AttrClientName = attribute.Key("mcp.client.name")
	AttrSession    = attribute.Key("mcpcat.session.id")
	AttrSequence   = attribute.Key("mcpcat.sequence")
	AttrOutcome    = attribute.Key("mcpcat.outcome")
	AttrEventID    = attribute.Key("mcpcat.event.id")
	AttrUserIntent = attribute.Key("mcpcat.user_intent")
	AttrErrorType  = attribute.Key("error.type")
	AttrEndUserID  = attribute.Key("enduser.id")
)

const (
	spanNamePrefix   = "tools/call "
	cleanupDivisor   = 2
	minCleanupPeriod = time.Minute
)

// SpanExporter writes one span per usage event. Spans of the same MCP
// session share a trace id for as long as the session stays active.
// Export is called from the single reporter worker.
type SpanExporter struct {
	tracer trace.Tracer
	traces *gocache.Cache
	log    *slog.Logger
}

// NewSpanExporter creates an exporter. ttl is the sliding expiry of a
// session's trace id.
func NewSpanExporter(tracer trace.Tracer, ttl time.Duration, log *slog.Logger) *SpanExporter {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &SpanExporter{
		tracer: tracer,
		traces: gocache.New(ttl, max(ttl/cleanupDivisor, minCleanupPeriod)),
		log:    log.With("component", "exporter"),
	}
}

// Export records spans for events.
func (e *SpanExporter) Export(ctx context.Context, events []event.UsageEvent) error {
	for _, ev := range events {
		e.export(ctx, ev)
	}

	return nil
}

func (e *SpanExporter) export(ctx context.Context, ev event.UsageEvent) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    e.TraceID(sessionKey(ev)),
		SpanID:     newSpanID(),
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	attrs := []attribute.KeyValue{
		AttrToolName.String(ev.ToolName),
		AttrSequence.Int64(int64(ev.Sequence)),
		AttrOutcome.String(string(ev.Outcome)),
		AttrEventID.String(ev.ID),
		AttrSession.String(ev.SessionID),
	}

	if ev.MCPSessionID != "" {
		attrs = append(attrs, AttrMCPSession.String(ev.MCPSessionID))
	}

	if ev.ClientName != "" {
		attrs = append(attrs, AttrClientName.String(ev.ClientName))
	}

	if ev.UserIntent != "" {
		attrs = append(attrs, AttrUserIntent.String(ev.UserIntent))
	}

	if ev.Identity != nil && ev.Identity.UserID != "" {
		attrs = append(attrs, AttrEndUserID.String(ev.Identity.UserID))
	}

	_, span := e.tracer.Start(
		trace.ContextWithRemoteSpanContext(ctx, parent),
		spanNamePrefix+ev.ToolName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithTimestamp(ev.StartedAt),
		trace.WithAttributes(attrs...),
	)

	if ev.Failed() {
		message := string(ev.Outcome)
		if ev.Error != nil {
			message = ev.Error.Message
			span.SetAttributes(AttrErrorType.String(ev.Error.Type))
		}

		span.SetStatus(codes.Error, message)
	}

	span.End(trace.WithTimestamp(ev.StartedAt.Add(ev.Duration)))
}

// TraceID returns the trace id for a session, creating one on first use.
// Each lookup extends the session's expiry.
func (e *SpanExporter) TraceID(session string) trace.TraceID {
	if cached, ok := e.traces.Get(session); ok {
		if id, ok := cached.(trace.TraceID); ok {
			e.traces.SetDefault(session, id)

			return id
		}
	}

	id := trace.TraceID(uuid.New())
	e.traces.SetDefault(session, id)

	e.log.Debug("New trace for session", "session", session, "trace_id", id.String())

	return id
}

func sessionKey(ev event.UsageEvent) string {
	if ev.MCPSessionID != "" {
		return "mcp:" + ev.MCPSessionID
	}

	return "tracker:" + ev.SessionID
}

func newSpanID() trace.SpanID {
	var id trace.SpanID

	u := uuid.New()
	copy(id[:], u[:len(id)])

	return id
}
