package infra

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned by MemQueue operations after Close.
var ErrQueueClosed = errors.New("queue closed")

// MemQueue is a bounded in-process FIFO with the same contract as RedisQueue.
type MemQueue struct {
	ch     chan []byte
	closed chan struct{}
}

// NewMemQueue creates an in-memory queue with the given capacity.
func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		ch:     make(chan []byte, capacity),
		closed: make(chan struct{}),
	}
}

// Push appends a payload, failing when the queue is full or closed.
func (q *MemQueue) Push(ctx context.Context, payload []byte) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- payload:
		return nil
	}
}

// BlockingPop returns the head of the queue, blocking until a message
// arrives, the queue closes, or the context is cancelled.
func (q *MemQueue) BlockingPop(ctx context.Context) ([]byte, error) {
	select {
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-q.ch:
		return payload, nil
	}
}

// Len returns the current queue depth.
func (q *MemQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// Close unblocks all waiters.
func (q *MemQueue) Close() error {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
	return nil
}
