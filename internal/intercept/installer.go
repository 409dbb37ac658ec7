package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	mcpgoserver "github.com/mark3labs/mcp-go/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
	toolserver "github.com/mcpcat/mcpcat-go-sdk/internal/mcp"
	"github.com/mcpcat/mcpcat-go-sdk/internal/shape"
)

// Sink receives each closed usage event. It runs on the tool call path and
// must not block.
type Sink func(event.UsageEvent)

// Options tunes an installation.
type Options struct {
	// CaptureIntent adds an optional "context" parameter to listed tool
	// schemas and records its value as the event's user intent.
	CaptureIntent bool
	// Identify tags events with the user behind the call.
	Identify event.IdentifyFunc
	// Logger receives extraction and sink failures for this installation.
	// Defaults to the installer's logger.
	Logger *slog.Logger
}

// Installer tracks which servers carry an interception attachment.
type Installer struct {
	log *slog.Logger

	mu          sync.Mutex
	attachments map[any]*attachment
}

// NewInstaller creates an installer.
func NewInstaller(log *slog.Logger) *Installer {
	return &Installer{
		log:         log.With("component", "intercept"),
		attachments: make(map[any]*attachment),
	}
}

// attachment is the permanent middleware installed on one server.
type attachment struct {
	desc   shape.Descriptor
	active atomic.Pointer[interceptor]

	// handle is the active handle, guarded by Installer.mu.
	handle *Handle
}

// Handle is returned by Install. Revert disarms the interception.
type Handle struct {
	installer *Installer
	att       *attachment
	ic        *interceptor
	server    any
	reverted  atomic.Bool
}

// Install arms interception on server using desc. If an active handle already
// exists for server it is returned with installed=false and nothing changes.
func (i *Installer) Install(server any, desc *shape.Descriptor, rec *event.Recorder, sink Sink, opts Options) (h *Handle, installed bool, err error) {
	if server == nil {
		return nil, false, errors.ErrNilServer
	}

	if desc == nil {
		return nil, false, fmt.Errorf("install %T: nil shape descriptor", server)
	}

	key, watch, err := i.keyFor(server)
	if err != nil {
		return nil, false, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	att, exists := i.attachments[key]
	if exists && att.handle != nil {
		i.log.Debug("Interception already installed", "server", fmt.Sprintf("%T", server), "shape", att.desc.Name)

		return att.handle, false, nil
	}

	if !exists {
		att = &attachment{desc: *desc}

		if err := att.attach(server); err != nil {
			return nil, false, err
		}

		i.attachments[key] = att

		if watch != nil {
			watch()
		}
	} else if att.desc.Name != desc.Name {
		i.log.Warn("Server already attached with a different shape; keeping the original",
			"attached", att.desc.Name,
			"requested", desc.Name,
		)
	}

	if opts.CaptureIntent && !att.desc.IntentCapture {
		i.log.Debug("Intent capture not available for shape", "shape", att.desc.Name)
	}

	log := i.log
	if opts.Logger != nil {
		log = opts.Logger.With("component", "intercept")
	}

	ic := &interceptor{
		desc:          att.desc,
		rec:           rec,
		sink:          sink,
		log:           log,
		captureIntent: opts.CaptureIntent && att.desc.IntentCapture,
		identify:      opts.Identify,
	}

	h = &Handle{installer: i, att: att, ic: ic, server: server}
	att.handle = h
	att.active.Store(ic)

	log.Debug("Interception installed", "server", fmt.Sprintf("%T", server), "shape", att.desc.Name)

	return h, true, nil
}

// Attached reports whether server carries an attachment, active or not.
func (i *Installer) Attached(server any) bool {
	key, _, err := i.keyFor(server)
	if err != nil {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	_, ok := i.attachments[key]

	return ok
}

// Active returns the active handle for server, if any.
func (i *Installer) Active(server any) (*Handle, bool) {
	key, _, err := i.keyFor(server)
	if err != nil {
		return nil, false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	att, ok := i.attachments[key]
	if !ok || att.handle == nil {
		return nil, false
	}

	return att.handle, true
}

func (i *Installer) forget(key any) {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.attachments, key)
}

// keyFor returns a map key identifying server. Known server types are keyed
// by weak pointer so the installer never keeps a reverted server alive; watch
// registers removal of the entry once the server is collected.
func (i *Installer) keyFor(server any) (key any, watch func(), err error) {
	switch s := server.(type) {
	case *mcpgoserver.MCPServer:
		return weakKey(i, s)
	case *toolserver.ToolServer:
		return weakKey(i, s)
	case *mcp.Server:
		return weakKey(i, s)
	}

	if !reflect.TypeOf(server).Comparable() {
		return nil, nil, errors.ErrNotComparable
	}

	return server, nil, nil
}

func weakKey[T any](i *Installer, p *T) (any, func(), error) {
	if p == nil {
		return nil, nil, errors.ErrNilServer
	}

	key := weak.Make(p)

	return key, func() {
		runtime.AddCleanup(p, i.forget, any(key))
	}, nil
}

// Revert disarms interception. Calls made afterwards reach the original
// handlers untouched. Revert is idempotent.
func (h *Handle) Revert() {
	if !h.reverted.CompareAndSwap(false, true) {
		return
	}

	h.att.active.CompareAndSwap(h.ic, nil)

	h.installer.mu.Lock()
	if h.att.handle == h {
		h.att.handle = nil
	}
	h.installer.mu.Unlock()

	h.ic.log.Debug("Interception reverted", "shape", h.att.desc.Name)
}

// Wait blocks until every tool call observed by this handle has finished and
// handed its event to the sink, or until ctx ends. Call it after Revert to
// make sure no event arrives later.
func (h *Handle) Wait(ctx context.Context) error {
	return h.ic.wait(ctx)
}

// Active reports whether the handle still intercepts calls.
func (h *Handle) Active() bool {
	return !h.reverted.Load()
}

// Shape returns the descriptor the attachment was made with.
func (h *Handle) Shape() shape.Descriptor {
	return h.att.desc
}

// Recorder returns the recorder assigning sequence numbers for this handle.
func (h *Handle) Recorder() *event.Recorder {
	return h.ic.rec
}

// Server returns the instrumented server.
func (h *Handle) Server() any {
	return h.server
}

func (a *attachment) attach(server any) error {
	switch a.desc.Hook {
	case shape.HookToolHandlerMiddleware:
		s, ok := server.(*mcpgoserver.MCPServer)
		if !ok {
			return a.mismatch(server)
		}

		mcpgoserver.WithToolHandlerMiddleware(a.toolHandlerMiddleware)(s)

	case shape.HookToolMiddleware:
		s, ok := server.(toolMiddlewareServer)
		if !ok {
			return a.mismatch(server)
		}

		s.UseToolMiddleware(a.toolMiddleware)

		if low := s.LowLevel(); low != nil {
			low.AddReceivingMiddleware(a.receivingMiddleware(false))
		}

	case shape.HookReceivingMiddleware:
		s, ok := server.(receivingMiddlewareServer)
		if !ok {
			return a.mismatch(server)
		}

		s.AddReceivingMiddleware(a.receivingMiddleware(true))

	default:
		return fmt.Errorf("shape %s: unknown hook %q", a.desc.Name, a.desc.Hook)
	}

	return nil
}

func (a *attachment) mismatch(server any) error {
	return &errors.UnsupportedServerError{
		ServerType: fmt.Sprintf("%T", server),
		Missing:    map[string][]string{a.desc.Name: {string(a.desc.Hook)}},
		Supported:  shape.Supported(),
	}
}

type toolMiddlewareServer interface {
	UseToolMiddleware(mw ...toolserver.ToolMiddleware)
	LowLevel() *mcp.Server
}

type receivingMiddlewareServer interface {
	AddReceivingMiddleware(middleware ...mcp.Middleware)
}
