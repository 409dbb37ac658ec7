package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

// Backend accepts batches of usage events. Implementations signal retryable
// failures by returning a *errors.TransmissionError with Retryable set, or
// any other error.
type Backend interface {
	SubmitBatch(ctx context.Context, events []event.UsageEvent) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, events []event.UsageEvent) error

// SubmitBatch implements Backend.
func (f BackendFunc) SubmitBatch(ctx context.Context, events []event.UsageEvent) error {
	return f(ctx, events)
}

// Exporter receives every processed batch once. Errors are logged only.
type Exporter interface {
	Export(ctx context.Context, events []event.UsageEvent) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, events []event.UsageEvent) error

// Export implements Exporter.
func (f ExporterFunc) Export(ctx context.Context, events []event.UsageEvent) error {
	return f(ctx, events)
}

// Processor transforms an event before delivery.
type Processor func(event.UsageEvent) event.UsageEvent

// Config controls batching and retry.
type Config struct {
	MaxBatchSize        int
	MaxBatchDelay       time.Duration
	MaxAttempts         int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	BackoffMultiplier   float64
	RandomizationFactor float64
}

// DefaultConfig returns the default batching and retry policy.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:        50,
		MaxBatchDelay:       2 * time.Second,
		MaxAttempts:         5,
		InitialBackoff:      250 * time.Millisecond,
		MaxBackoff:          10 * time.Second,
		BackoffMultiplier:   2,
		RandomizationFactor: 0.5,
	}
}

// Stats is a snapshot of reporter counters.
type Stats struct {
	// Enqueued counts events accepted by the queue.
	Enqueued uint64
	// Dropped counts events evicted from a full queue.
	Dropped uint64
	// Sent counts events acknowledged by the backend.
	Sent uint64
	// FailedBatches counts batches abandoned after a transmission failure.
	FailedBatches uint64
	// DroppedOnFailure counts events in abandoned batches.
	DroppedOnFailure uint64
	// Attempts counts backend submissions.
	Attempts uint64
	// Retries counts submissions after the first for a batch.
	Retries uint64
	// Withheld counts events discarded because a processor panicked on them.
	Withheld uint64
	// DroppedAfterClose counts events offered after Close began.
	DroppedAfterClose uint64
	// Pending is the number of buffered events.
	Pending int
}

// Reporter drains a Queue in the background.
type Reporter struct {
	log        *slog.Logger
	queue      *Queue
	backend    Backend
	exporters  []Exporter
	processors []Processor
	cfg        Config

	sent             atomic.Uint64
	failedBatches    atomic.Uint64
	droppedOnFailure atomic.Uint64
	attempts         atomic.Uint64
	retries          atomic.Uint64
	withheld         atomic.Uint64
	lateDrops        atomic.Uint64

	// enqueueMu orders Enqueue against Close so that an accepted event is
	// always covered by the final flush.
	enqueueMu sync.RWMutex

	// sendMu serializes batch delivery between the loop and Flush.
	sendMu sync.Mutex

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	eg        *errgroup.Group
	closed    atomic.Bool
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithExporters adds best-effort exporters.
func WithExporters(exporters ...Exporter) ReporterOption {
	return func(r *Reporter) {
		r.exporters = append(r.exporters, exporters...)
	}
}

// WithProcessors adds event processors, applied in order.
func WithProcessors(processors ...Processor) ReporterOption {
	return func(r *Reporter) {
		r.processors = append(r.processors, processors...)
	}
}

// NewReporter creates a reporter. backend may be nil when only exporters are used.
func NewReporter(log *slog.Logger, queue *Queue, backend Backend, cfg Config, opts ...ReporterOption) *Reporter {
	defaults := DefaultConfig()

	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}

	if cfg.MaxBatchDelay <= 0 {
		cfg.MaxBatchDelay = defaults.MaxBatchDelay
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}

	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = defaults.BackoffMultiplier
	}

	if cfg.RandomizationFactor < 0 || cfg.RandomizationFactor > 1 {
		cfg.RandomizationFactor = defaults.RandomizationFactor
	}

	r := &Reporter{
		log:     log.With("component", "dispatch"),
		queue:   queue,
		backend: backend,
		cfg:     cfg,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start launches the drain loop. Calling Start more than once has no effect.
func (r *Reporter) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		r.eg, ctx = errgroup.WithContext(ctx)

		r.eg.Go(func() error {
			return r.loop(ctx)
		})

		r.log.Debug("Reporter started",
			"max_batch_size", r.cfg.MaxBatchSize,
			"max_batch_delay", r.cfg.MaxBatchDelay,
			"capacity", r.queue.Cap(),
		)
	})
}

func (r *Reporter) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.MaxBatchDelay)
	defer ticker.Stop()

	for {
		for r.queue.Len() >= r.cfg.MaxBatchSize && ctx.Err() == nil {
			r.sendBatch(ctx)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-r.queue.Ready():
		case <-ticker.C:
			if r.queue.Len() > 0 {
				r.sendBatch(ctx)
			}
		}
	}
}

// Flush delivers every buffered event before returning. It returns the
// context error if ctx ends first.
func (r *Reporter) Flush(ctx context.Context) error {
	for r.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.sendBatch(ctx)
	}

	return ctx.Err()
}

// Enqueue buffers ev for delivery. Once Close has begun the event is
// counted in DroppedAfterClose and false is returned.
func (r *Reporter) Enqueue(ev event.UsageEvent) bool {
	r.enqueueMu.RLock()
	defer r.enqueueMu.RUnlock()

	if r.closed.Load() {
		r.lateDrops.Add(1)
		r.log.Debug("Event dropped after close", "event_id", ev.ID, "tool", ev.ToolName)

		return false
	}

	return r.queue.Enqueue(ev)
}

// Close stops the drain loop and flushes remaining events within ctx.
func (r *Reporter) Close(ctx context.Context) error {
	var err error

	r.closeOnce.Do(func() {
		r.enqueueMu.Lock()
		r.closed.Store(true)
		r.enqueueMu.Unlock()

		if r.cancel != nil {
			r.cancel()
			_ = r.eg.Wait()
		}

		err = r.Flush(ctx)
		if err != nil {
			r.log.Warn("Final flush incomplete", "pending", r.queue.Len(), "error", err)
		}

		r.log.Debug("Reporter closed", "sent", r.sent.Load(), "dropped", r.queue.Dropped())
	})

	return err
}

// Closed reports whether Close has been called.
func (r *Reporter) Closed() bool {
	return r.closed.Load()
}

// Stats returns a snapshot of the reporter counters.
func (r *Reporter) Stats() Stats {
	return Stats{
		Enqueued:          r.queue.Enqueued(),
		Dropped:           r.queue.Dropped(),
		Sent:              r.sent.Load(),
		FailedBatches:     r.failedBatches.Load(),
		DroppedOnFailure:  r.droppedOnFailure.Load(),
		Attempts:          r.attempts.Load(),
		Retries:           r.retries.Load(),
		Withheld:          r.withheld.Load(),
		DroppedAfterClose: r.lateDrops.Load(),
		Pending:           r.queue.Len(),
	}
}

// sendBatch moves one batch from accumulating to in-flight and settles it.
func (r *Reporter) sendBatch(ctx context.Context) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	raw := r.queue.Drain(r.cfg.MaxBatchSize)
	if len(raw) == 0 {
		return
	}

	batch := r.process(raw)
	if len(batch) == 0 {
		return
	}

	// One id per batch, reused by every attempt.
	ctx = ContextWithBatchID(ctx, uuid.NewString())

	if r.backend != nil {
		err := r.submit(ctx, batch)

		switch {
		case err == nil:
			r.sent.Add(uint64(len(batch)))
		case ctx.Err() != nil:
			r.queue.Requeue(raw)
			r.log.Debug("Batch re-queued on shutdown", "events", len(raw))

			return
		default:
			r.failedBatches.Add(1)
			r.droppedOnFailure.Add(uint64(len(batch)))
			r.log.Warn("Dropping batch after transmission failure", "events", len(batch), "error", err)
		}
	} else {
		r.sent.Add(uint64(len(batch)))
	}

	r.export(ctx, batch)
}

func (r *Reporter) submit(ctx context.Context, batch []event.UsageEvent) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialBackoff
	policy.MaxInterval = r.cfg.MaxBackoff
	policy.Multiplier = r.cfg.BackoffMultiplier
	policy.RandomizationFactor = r.cfg.RandomizationFactor

	attempts := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		r.attempts.Add(1)

		if attempts > 1 {
			r.retries.Add(1)
		}

		err := r.backend.SubmitBatch(ctx, batch)
		if err == nil {
			return struct{}{}, nil
		}

		if !errors.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.Debug("Retrying batch", "events", len(batch), "attempt", attempts, "next", next, "error", err)
		}),
	)
	if err == nil {
		return nil
	}

	te := &errors.TransmissionError{Attempts: attempts, Retryable: errors.IsRetryable(err), Err: err}
	if inner, ok := asTransmissionError(err); ok {
		te.StatusCode = inner.StatusCode
	}

	return te
}

// process runs the processors over each event. An event on which any
// processor panics is withheld: it may still carry values a redaction step
// was meant to remove.
func (r *Reporter) process(batch []event.UsageEvent) []event.UsageEvent {
	if len(r.processors) == 0 {
		return batch
	}

	out := make([]event.UsageEvent, 0, len(batch))

	for _, ev := range batch {
		processed, ok := r.applyProcessors(ev)
		if !ok {
			r.withheld.Add(1)

			continue
		}

		out = append(out, processed)
	}

	return out
}

func (r *Reporter) applyProcessors(ev event.UsageEvent) (out event.UsageEvent, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("Event processor panicked; withholding event", "panic", fmt.Sprint(rec), "event_id", ev.ID)
			ok = false
		}
	}()

	out = ev
	for _, p := range r.processors {
		out = p(out)
	}

	return out, true
}

func (r *Reporter) export(ctx context.Context, batch []event.UsageEvent) {
	if len(r.exporters) == 0 {
		return
	}

	exportCtx := context.WithoutCancel(ctx)

	for _, exp := range r.exporters {
		if err := exp.Export(exportCtx, batch); err != nil {
			r.log.Warn("Exporter failed", "events", len(batch), "error", err)
		}
	}
}

func asTransmissionError(err error) (*errors.TransmissionError, bool) {
	return stderrors.AsType[*errors.TransmissionError](err)
}

type batchIDKey struct{}

// ContextWithBatchID returns ctx carrying the id of the batch being submitted.
func ContextWithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchID returns the id of the batch a Backend is asked to submit. It is
// the same on every retry of that batch, so backends can use it as an
// idempotency key. It is empty outside a Reporter submission.
func BatchID(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey{}).(string)

	return id
}
