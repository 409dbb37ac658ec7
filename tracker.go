package mcpcat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/mcpcat/mcpcat-go-sdk/internal/backend"
	"github.com/mcpcat/mcpcat-go-sdk/internal/compat"
	"github.com/mcpcat/mcpcat-go-sdk/internal/dispatch"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
	"github.com/mcpcat/mcpcat-go-sdk/internal/exporter"
	"github.com/mcpcat/mcpcat-go-sdk/internal/intercept"
	"github.com/mcpcat/mcpcat-go-sdk/internal/payload"
	"github.com/mcpcat/mcpcat-go-sdk/internal/redact"
	"github.com/mcpcat/mcpcat-go-sdk/internal/shape"
)

var (
	installer = intercept.NewInstaller(NopLogger())

	// trackersMu guards trackers and serializes Track.
	trackersMu sync.Mutex
	trackers   = make(map[*intercept.Handle]*Tracker)
)

// Tracker is the analytics instrumentation attached to one server.
type Tracker struct {
	log       *slog.Logger
	logCloser io.Closer
	opts      *Options

	sessionID string
	handle    *intercept.Handle
	queue     *dispatch.Queue
	reporter  *dispatch.Reporter
	provider  *exporter.Provider

	closeOnce sync.Once
	closeErr  error
}

// Track instruments server and starts background delivery. Calling Track
// again for a server that is still tracked returns the existing Tracker and
// ignores opts.
//
// Track fails with *UnsupportedServerError when the server's library is not
// recognised; the server is then left unmodified.
func Track(server any, opts ...Option) (*Tracker, error) {
	options := applyOptions(opts)
	options.ApplyEnv(os.Getenv)

	if err := options.Validate(); err != nil {
		return nil, err
	}

	desc, err := detect(server, options.VersionHint)
	if err != nil {
		return nil, err
	}

	trackersMu.Lock()
	defer trackersMu.Unlock()

	if h, ok := installer.Active(server); ok {
		t, ok := trackers[h]
		if !ok {
			return nil, fmt.Errorf("track %T: %w", server, ErrAlreadyInstrumented)
		}

		t.log.Debug("Server already tracked", "session_id", t.sessionID)

		return t, nil
	}

	log, logCloser := options.ResolveLogger(os.Getenv)

	t, err := newTracker(server, desc, options, log)
	if err != nil {
		_ = logCloser.Close()

		return nil, err
	}

	t.logCloser = logCloser
	trackers[t.handle] = t

	return t, nil
}

func newTracker(server any, desc *shape.Descriptor, o *Options, log *slog.Logger) (*Tracker, error) {
	t := &Tracker{
		log:       log,
		opts:      o,
		sessionID: newSessionID(),
		queue:     dispatch.NewQueue(o.BufferCapacity),
	}

	sink, err := t.deliveryBackend()
	if err != nil {
		return nil, err
	}

	exporters := append([]dispatch.Exporter(nil), o.Exporters...)

	if o.Tracing.Enabled {
		t.provider, err = exporter.NewProvider(context.Background(), o.Tracing)
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}

		exporters = append(exporters, exporter.NewSpanExporter(t.provider.Tracer(), o.Tracing.SessionTTL, log))
	}

	processors, err := buildProcessors(o)
	if err != nil {
		t.shutdownProvider(context.Background())

		return nil, err
	}

	t.reporter = dispatch.NewReporter(log, t.queue, sink, o.Dispatch(),
		dispatch.WithExporters(exporters...),
		dispatch.WithProcessors(processors...),
	)

	handle, installed, err := installer.Install(server, desc, event.NewRecorder(t.sessionID), t.onEvent, intercept.Options{
		CaptureIntent: o.CaptureIntent,
		Identify:      o.Identify,
		Logger:        log,
	})
	if err == nil && !installed {
		err = fmt.Errorf("track %T: %w", server, ErrAlreadyInstrumented)
	}

	if err != nil {
		t.shutdownProvider(context.Background())

		return nil, err
	}

	t.handle = handle
	t.reporter.Start(context.Background())

	log.Info("Tracking MCP server",
		"shape", desc.Name,
		"session_id", t.sessionID,
		"endpoint", o.Endpoint,
		"tracing", o.Tracing.Enabled,
	)

	return t, nil
}

func (t *Tracker) deliveryBackend() (dispatch.Backend, error) {
	if t.opts.Backend != nil {
		return t.opts.Backend, nil
	}

	if t.opts.Endpoint == "" {
		return nil, nil
	}

	client, err := backend.New(backend.Config{
		Endpoint:   t.opts.Endpoint,
		APIKey:     t.opts.APIKey,
		ProjectID:  t.opts.ProjectID,
		SessionID:  t.sessionID,
		SDKVersion: Version,
		HTTPClient: t.opts.HTTPClient,
	}, t.log)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// buildProcessors returns the per-event pipeline: binary content is removed
// first, then values are redacted, then oversized events are truncated.
func buildProcessors(o *Options) ([]dispatch.Processor, error) {
	processors := []dispatch.Processor{payload.Sanitize}

	if o.RedactArguments {
		engine, err := redact.New(o.RedactionPatterns, o.Redactor)
		if err != nil {
			return nil, err
		}

		processors = append(processors, engine.Event)
	}

	return append(processors, payload.Truncate), nil
}

func (t *Tracker) onEvent(ev event.UsageEvent) {
	t.reporter.Enqueue(ev)

	if t.opts.OnEvent != nil {
		t.opts.OnEvent(ev)
	}
}

func newSessionID() string {
	return "ses_" + ulid.Make().String()
}

// SessionID identifies this tracker's events.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Shape returns the descriptor the server was matched with.
func (t *Tracker) Shape() ShapeDescriptor {
	return t.handle.Shape()
}

// Stats returns a snapshot of delivery counters.
func (t *Tracker) Stats() Stats {
	return t.reporter.Stats()
}

// BatchID returns the id of the batch a Backend is submitting. Retries of a
// batch carry the same id, so it can serve as an idempotency key.
func BatchID(ctx context.Context) string {
	return dispatch.BatchID(ctx)
}

// Flush delivers every buffered event before returning.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.reporter.Closed() {
		return ErrTrackerClosed
	}

	err := t.reporter.Flush(ctx)

	if t.provider != nil {
		if flushErr := t.provider.ForceFlush(ctx); flushErr != nil && err == nil {
			err = flushErr
		}
	}

	return err
}

// Revert stops recording tool calls. Buffered events are still delivered
// until Close. Revert is idempotent.
func (t *Tracker) Revert() {
	t.handle.Revert()

	trackersMu.Lock()
	if trackers[t.handle] == t {
		delete(trackers, t.handle)
	}
	trackersMu.Unlock()
}

// Close reverts interception, waits for tool calls already running, flushes
// buffered events and releases resources. Without a deadline on ctx the
// whole shutdown is bounded by the configured shutdown timeout. Events of
// calls still running when that runs out are counted in
// Stats.DroppedAfterClose. Close is idempotent.
func (t *Tracker) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.Revert()

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.opts.ShutdownTimeout)
			defer cancel()
		}

		if err := t.handle.Wait(ctx); err != nil {
			t.log.Warn("Tool calls still running at close", "error", err)
		}

		t.closeErr = t.reporter.Close(ctx)
		t.shutdownProvider(ctx)

		t.log.Info("Tracker closed", "session_id", t.sessionID, "sent", t.reporter.Stats().Sent)

		_ = t.logCloser.Close()
	})

	return t.closeErr
}

func (t *Tracker) shutdownProvider(ctx context.Context) {
	if t.provider == nil {
		return
	}

	if err := t.provider.Shutdown(ctx); err != nil {
		t.log.Warn("Failed to shut down tracing", "error", err)
	}
}

// WithTracker tracks server for the duration of fn and closes the tracker
// afterwards. If Close fails, a warning is logged but does not override
// fn's error.
func WithTracker(ctx context.Context, server any, fn func(*Tracker) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	t, err := Track(server, opts...)
	if err != nil {
		return fmt.Errorf("failed to track server: %w", err)
	}

	defer func() {
		if closeErr := t.Close(context.WithoutCancel(ctx)); closeErr != nil {
			t.log.Warn("failed to close tracker", "error", closeErr)
		}
	}()

	return fn(t)
}

func detect(server any, hint string) (*shape.Descriptor, error) {
	if hint == "" {
		return compat.Detect(server)
	}

	return compat.DetectWithHint(server, hint)
}

// Detect reports which shape server matches without modifying it.
func Detect(server any) (*ShapeDescriptor, error) {
	return compat.Detect(server)
}

// LookupShape resolves a "module[@version]" or shape-name hint.
func LookupShape(hint string) (*ShapeDescriptor, bool) {
	d := shape.Lookup(hint)

	return d, d != nil
}

// Shapes returns every supported shape in detection priority order.
func Shapes() []ShapeDescriptor {
	return shape.All()
}

// Install attaches interception to server with an explicit shape and hands
// each closed event to onEvent. Events are not buffered or delivered;
// use Track for that. Installing on a server that already has an active
// handle returns that handle.
func Install(server any, desc *ShapeDescriptor, onEvent func(UsageEvent), opts ...Option) (*UnwrapHandle, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	if desc == nil {
		var err error
		if desc, err = Detect(server); err != nil {
			return nil, err
		}
	}

	h, _, err := installer.Install(server, desc, event.NewRecorder(newSessionID()), onEvent, intercept.Options{
		CaptureIntent: options.CaptureIntent,
		Identify:      options.Identify,
		Logger:        log,
	})

	return h, err
}
