package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

func ev(name string) event.UsageEvent {
	return event.UsageEvent{ID: name, ToolName: name}
}

func ids(events []event.UsageEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}

	return out
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)

	assert.False(t, q.Enqueue(ev("a")))
	assert.False(t, q.Enqueue(ev("b")))
	assert.True(t, q.Enqueue(ev("c")))

	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, uint64(3), q.Enqueued())
	assert.Equal(t, []string{"b", "c"}, ids(q.Drain(10)))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DrainInBatches(t *testing.T) {
	q := NewQueue(5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		q.Enqueue(ev(id))
	}

	assert.Equal(t, []string{"a", "b"}, ids(q.Drain(2)))
	assert.Equal(t, []string{"c", "d"}, ids(q.Drain(2)))

	q.Enqueue(ev("f"))
	q.Enqueue(ev("g"))

	assert.Equal(t, []string{"e", "f", "g"}, ids(q.Drain(5)))
	assert.Nil(t, q.Drain(5))
	assert.Nil(t, q.Drain(0))
}

func TestQueue_RequeuePreservesOrder(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(ev("a"))
	q.Enqueue(ev("b"))
	q.Enqueue(ev("c"))

	batch := q.Drain(2)
	q.Enqueue(ev("d"))
	q.Requeue(batch)

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(q.Drain(10)))
	assert.Zero(t, q.Dropped())
}

func TestQueue_RequeueOverflowDropsOldest(t *testing.T) {
	q := NewQueue(3)
	q.Enqueue(ev("a"))
	q.Enqueue(ev("b"))
	q.Enqueue(ev("c"))

	batch := q.Drain(3)
	q.Enqueue(ev("d"))
	q.Enqueue(ev("e"))
	q.Requeue(batch)

	assert.Equal(t, []string{"c", "d", "e"}, ids(q.Drain(10)))
	assert.Equal(t, uint64(2), q.Dropped())
}

func TestQueue_ReadySignal(t *testing.T) {
	q := NewQueue(2)

	select {
	case <-q.Ready():
		t.Fatal("ready before enqueue")
	default:
	}

	q.Enqueue(ev("a"))
	q.Enqueue(ev("b"))

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready signal")
	}
}

func TestQueue_MinimumCapacity(t *testing.T) {
	q := NewQueue(0)
	require.Equal(t, 1, q.Cap())

	q.Enqueue(ev("a"))
	q.Enqueue(ev("b"))

	assert.Equal(t, []string{"b"}, ids(q.Drain(1)))
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	for range 100 {
		q := NewQueue(16)

		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				for range 4 {
					q.Enqueue(ev("x"))
				}
			})
		}

		wg.Wait()

		require.Equal(t, uint64(32), q.Enqueued())
		require.Equal(t, uint64(16), q.Dropped())
		require.Equal(t, 16, q.Len())
	}
}

func TestQueue_RetainsNewestProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(t, "capacity")
		n := rapid.IntRange(0, 60).Draw(t, "n")
		drainEvery := rapid.IntRange(0, 10).Draw(t, "drainEvery")

		q := NewQueue(capacity)

		var model []int
		dropped := 0

		for i := range n {
			q.Enqueue(event.UsageEvent{Sequence: uint64(i)})

			model = append(model, i)
			if len(model) > capacity {
				model = model[1:]
				dropped++
			}

			if drainEvery > 0 && i%drainEvery == drainEvery-1 {
				k := rapid.IntRange(0, capacity).Draw(t, "k")

				got := q.Drain(k)
				want := model[:min(k, len(model))]
				model = model[len(want):]

				if len(got) != len(want) {
					t.Fatalf("drained %d, want %d", len(got), len(want))
				}

				for j := range got {
					if got[j].Sequence != uint64(want[j]) {
						t.Fatalf("drain order mismatch at %d: %d != %d", j, got[j].Sequence, want[j])
					}
				}
			}
		}

		if q.Len() != len(model) {
			t.Fatalf("len %d, want %d", q.Len(), len(model))
		}

		if q.Dropped() != uint64(dropped) {
			t.Fatalf("dropped %d, want %d", q.Dropped(), dropped)
		}

		rest := q.Drain(capacity)
		for j := range rest {
			if rest[j].Sequence != uint64(model[j]) {
				t.Fatalf("final order mismatch at %d", j)
			}
		}
	})
}
