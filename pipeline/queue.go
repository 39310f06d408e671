package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Send after Close, and by Receive once a closed queue is drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO channel-like buffer.
//
// Producers never block: Send appends and returns. Consumers either block
// in Receive or poll with TryReceive. Close stops further sends; items already
// queued can still be received, after which Receive reports ErrQueueClosed.
//
// # Example
//
//	q := pipeline.NewQueue[Message]()
//
//	// Writer: fails only after Close.
//	if err := q.Send(StatusUpdate{Text: "waiting"}); err != nil {
//	    return err
//	}
//
//	// Reader: blocks until a message, ctx cancellation or close.
//	msg, err := q.Receive(ctx)
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	notify chan struct{} // capacity 1, signalled on every state change

	metrics Metrics // lock-free metrics tracking
}

// NewQueue creates an empty open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Send appends v. It never blocks; it fails only when the queue is closed.
func (q *Queue[T]) Send(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.metrics.addRejected()
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.metrics.addWritten()
	q.signal()
	return nil
}

// Receive blocks until a value is available, the queue is closed and drained
// (ErrQueueClosed), or ctx is done (ctx.Err()).
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	for {
		v, ok, closed := q.pop()
		if ok {
			return v, nil
		}
		if closed {
			q.signal() // wake the next waiter
			var zero T
			return zero, ErrQueueClosed
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryReceive attempts a non-blocking receive.
// Returns (zero, false) if no value is ready.
func (q *Queue[T]) TryReceive() (T, bool) {
	v, ok, _ := q.pop()
	return v, ok
}

func (q *Queue[T]) pop() (v T, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false, q.closed
	}
	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	} else {
		// other waiters may still find work
		q.signal()
	}
	q.metrics.addProcessed()
	return v, true, q.closed
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Close marks the queue closed. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close was called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of buffered elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetMetrics returns a snapshot of current metrics values.
func (q *Queue[T]) GetMetrics() Metrics {
	return Metrics{
		Written:   atomic.LoadInt64(&q.metrics.Written),
		Processed: atomic.LoadInt64(&q.metrics.Processed),
		Rejected:  atomic.LoadInt64(&q.metrics.Rejected),
	}
}

// Metrics provides lock-free counters for a Queue.
type Metrics struct {
	Written   int64
	Processed int64
	Rejected  int64 // sends refused because the queue was closed
}

func (m *Metrics) addWritten()   { atomic.AddInt64(&m.Written, 1) }
func (m *Metrics) addProcessed() { atomic.AddInt64(&m.Processed, 1) }
func (m *Metrics) addRejected()  { atomic.AddInt64(&m.Rejected, 1) }
