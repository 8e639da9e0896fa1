package engine

import (
	"sync"

	"github.com/roach88/stockroom/internal/ir"
	"github.com/roach88/stockroom/internal/reducer"
)

// Change describes one applied record, delivered to listeners in log order.
type Change struct {
	Seq int64

	// Committed is the decoded action. Committed.Action is nil when the
	// record could not be decoded.
	Committed ir.Committed

	// Diagnostics lists conditions found while applying this record.
	Diagnostics []reducer.Diagnostic
}

// changeQueue is a thread-safe FIFO queue of changes for one listener.
//
// The queue is unbounded so a slow listener never stalls the replay loop.
// It uses a channel for signaling to enable context-aware waiting.
type changeQueue struct {
	mu      sync.Mutex
	changes []Change
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

// newChangeQueue creates an empty queue.
func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a change to the back of the queue.
// Returns false if the queue is closed.
func (q *changeQueue) Enqueue(c Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.changes = append(q.changes, c)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Change{}, false) if queue is empty.
func (q *changeQueue) TryDequeue() (Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return Change{}, false
	}

	c := q.changes[0]

	// Nil out the slot so the backing array does not retain diagnostics.
	q.changes[0] = Change{}

	if len(q.changes) == 1 {
		q.changes = q.changes[:0]
	} else {
		q.changes = q.changes[1:]
	}

	return c, true
}

// Wait returns a channel that signals when changes may be available.
// The channel is closed when the queue is closed.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Close signals that no more changes will be enqueued.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// drain calls fn for every change until the queue is closed.
// Changes already queued when Close is called are discarded.
func (q *changeQueue) drain(fn func(Change)) {
	for {
		if c, ok := q.TryDequeue(); ok {
			q.mu.Lock()
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			fn(c)
			continue
		}
		if _, open := <-q.signal; !open {
			return
		}
	}
}
