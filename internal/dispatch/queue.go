package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

// Queue is a bounded FIFO of closed usage events. Producers never block:
// when the queue is full the oldest event is evicted and counted as dropped.
type Queue struct {
	mu       sync.Mutex
	entries  []event.UsageEvent
	head     int // index of the oldest entry
	size     int
	capacity int

	enqueued atomic.Uint64
	dropped  atomic.Uint64

	ready chan struct{}
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}

	return &Queue{
		entries:  make([]event.UsageEvent, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Enqueue appends ev. It reports whether an older event was evicted.
func (q *Queue) Enqueue(ev event.UsageEvent) bool {
	q.mu.Lock()
	evicted := q.pushBackLocked(ev)
	q.mu.Unlock()

	q.enqueued.Add(1)
	q.signal()

	return evicted
}

// Drain removes and returns up to limit of the oldest events.
func (q *Queue) Drain(limit int) []event.UsageEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(limit, q.size)
	if n <= 0 {
		return nil
	}

	out := make([]event.UsageEvent, n)
	for i := range n {
		idx := (q.head + i) % q.capacity
		out[i] = q.entries[idx]
		q.entries[idx] = event.UsageEvent{}
	}

	q.head = (q.head + n) % q.capacity
	q.size -= n

	return out
}

// Requeue puts an unsent batch back at the front, preserving its order.
// Events that no longer fit are dropped from the front, oldest first.
func (q *Queue) Requeue(batch []event.UsageEvent) {
	if len(batch) == 0 {
		return
	}

	q.mu.Lock()

	free := q.capacity - q.size
	if overflow := len(batch) - free; overflow > 0 {
		q.dropped.Add(uint64(overflow))
		batch = batch[overflow:]
	}

	for i := len(batch) - 1; i >= 0; i-- {
		q.head = (q.head - 1 + q.capacity) % q.capacity
		q.entries[q.head] = batch[i]
		q.size++
	}

	q.mu.Unlock()

	q.signal()
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Enqueued returns the number of events ever enqueued.
func (q *Queue) Enqueued() uint64 {
	return q.enqueued.Load()
}

// Dropped returns the number of events evicted before they were sent.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Ready is signalled after events are added.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pushBackLocked must be called with mu held.
func (q *Queue) pushBackLocked(ev event.UsageEvent) bool {
	if q.size == q.capacity {
		q.entries[q.head] = ev
		q.head = (q.head + 1) % q.capacity
		q.dropped.Add(1)

		return true
	}

	q.entries[(q.head+q.size)%q.capacity] = ev
	q.size++

	return false
}
