package queue

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned when an enqueue would block; submission must
// stay non-blocking, so callers surface this instead of waiting.
var ErrQueueFull = errors.New("work queue is full")

// ErrQueueClosed is returned when enqueueing after Close.
var ErrQueueClosed = errors.New("work queue is closed")

// Queue hands each enqueued job id to exactly one consumer.
// Delivery is at-least-once: consumers must tolerate seeing the same
// job id twice, which the dispatcher guards with a status
// compare-and-set on claim.
type Queue interface {
	Enqueue(jobID string) error
	Jobs() <-chan string
	Close()
}

// MemoryQueue is a buffered in-process queue. A broker-backed
// implementation can replace it behind the same interface.
type MemoryQueue struct {
	ch     chan string
	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue creates a queue holding up to size pending job ids.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

func (q *MemoryQueue) Enqueue(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Jobs() <-chan string {
	return q.ch
}

// Close stops deliveries. Workers draining Jobs() exit once the
// buffered ids are consumed.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
