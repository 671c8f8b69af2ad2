package ingest

import (
	"context"
	"sync"
)

// Queue is the bounded FIFO hand-off between producers and the single
// Pipeline consumer. Order is preserved per producer; capacity is fixed at
// construction so a slow analyzer backs up into enqueue rejections instead
// of unbounded memory growth.
//
// Every send holds the read lock and Close takes the write lock, so a
// producer can never race the channel close: late enqueues fail with
// ErrQueueClosed instead of panicking. Close therefore waits for in-flight
// enqueues, whose blocking is bounded by the producer's own context.
type Queue struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding at most capacity pending events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Enqueue adds the event, waiting for free capacity until ctx expires.
// Producers must pass a bounded context; an expired wait reports ErrQueueFull
// so the producer can surface a capacity error to its caller.
func (q *Queue) Enqueue(ctx context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	default:
	}
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ErrQueueFull
	}
}

// TryEnqueue adds the event only if capacity is immediately available.
func (q *Queue) TryEnqueue(ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events exposes the consumer side. After Close the channel drains the
// remaining events and then reports closed.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close marks the queue closed and releases the consumer once it drains.
// Idempotent; blocks until in-flight enqueues have finished.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
