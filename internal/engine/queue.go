package engine

import (
	"sync"
)

// Event is one observed change to a watched deck.
type Event struct {
	// Seq numbers events in arrival order, starting at 1.
	Seq  int64
	Path string
}

// eventQueue is a thread-safe FIFO queue of deck changes.
//
// Editors often write a file several times per save; an event whose path
// is already waiting is dropped, so one save triggers one sync.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the watch loop.
type eventQueue struct {
	mu      sync.Mutex
	events  []Event
	pending map[string]bool
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		pending: map[string]bool{},
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue. It returns false if the
// queue is closed or the path is already waiting.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.pending[e.Path] {
		return false
	}
	q.events = append(q.events, e)
	q.pending[e.Path] = true

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	if len(q.events) == 0 {
		q.events = nil
	}
	delete(q.pending, e.Path)
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
