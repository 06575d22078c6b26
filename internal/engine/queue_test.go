package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for i, path := range []string{"a.md", "b.md", "c.md"} {
		require.True(t, q.Enqueue(Event{Seq: int64(i + 1), Path: path}))
	}

	for _, want := range []string{"a.md", "b.md", "c.md"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.Path)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_CoalescesPendingPath(t *testing.T) {
	q := newEventQueue()

	assert.True(t, q.Enqueue(Event{Seq: 1, Path: "deck.md"}))
	assert.False(t, q.Enqueue(Event{Seq: 2, Path: "deck.md"}), "second write of a waiting path should be dropped")
	assert.Equal(t, 1, q.Len())

	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Seq)

	// Once handled, the path can be queued again.
	assert.True(t, q.Enqueue(Event{Seq: 3, Path: "deck.md"}))
}

func TestEventQueue_WaitSignals(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(Event{Seq: 1, Path: "deck.md"})

	select {
	case _, ok := <-q.Wait():
		assert.True(t, ok)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("wait did not signal after enqueue")
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	done := make(chan bool)
	go func() {
		_, ok := <-q.Wait()
		done <- ok
	}()

	q.Close()
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok, "wait after close should report a closed channel")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("close did not wake the waiter")
	}
	assert.False(t, q.Enqueue(Event{Seq: 1, Path: "deck.md"}), "enqueue after close should return false")
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()
	const producers = 10
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Event{Seq: int64(i), Path: fmt.Sprintf("deck-%d-%d.md", p, i)})
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
	seen := map[string]bool{}
	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		assert.False(t, seen[e.Path], "duplicate event %s", e.Path)
		seen[e.Path] = true
	}
	assert.Len(t, seen, producers*perProducer)
}
