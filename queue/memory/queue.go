// Package memory provides an in-process EventQueue for tests and
// single-binary deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docai/queue"
)

// Queue is an in-memory delayed queue. Deliveries stay in an in-flight set
// until settled, so a consumer that drops a delivery without acking leaves
// it recoverable through Requeue by the caller that still holds the receipt.
type Queue struct {
	mu       sync.Mutex
	pending  []queue.Envelope
	inflight map[string]queue.Envelope
	wake     chan struct{}
	done     chan struct{}
	closed   bool
}

var _ queue.EventQueue = (*Queue)(nil)

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		inflight: make(map[string]queue.Envelope),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue adds an envelope to the pending set.
func (q *Queue) Enqueue(ctx context.Context, env queue.Envelope) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return queue.ErrQueueClosed
	}
	q.pending = append(q.pending, env)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue blocks until an envelope is due, the queue is closed, or the
// context is cancelled. Among due envelopes the earliest NotBefore wins.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, queue.ErrQueueClosed
		}

		now := time.Now()
		idx := -1
		var nextDue time.Time
		for i, env := range q.pending {
			if env.NotBefore.After(now) {
				if nextDue.IsZero() || env.NotBefore.Before(nextDue) {
					nextDue = env.NotBefore
				}
				continue
			}
			if idx < 0 || env.NotBefore.Before(q.pending[idx].NotBefore) {
				idx = i
			}
		}
		if idx >= 0 {
			env := q.pending[idx]
			q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
			receipt := uuid.NewString()
			q.inflight[receipt] = env
			q.mu.Unlock()
			return &queue.Delivery{Envelope: env, Receipt: receipt}, nil
		}
		q.mu.Unlock()

		wait := time.Minute
		if !nextDue.IsZero() {
			if d := time.Until(nextDue); d < wait {
				wait = d
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.done:
			timer.Stop()
			return nil, queue.ErrQueueClosed
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Ack drops the in-flight delivery.
func (q *Queue) Ack(ctx context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return queue.ErrQueueClosed
	}
	if _, ok := q.inflight[receipt]; !ok {
		return queue.ErrUnknownReceipt
	}
	delete(q.inflight, receipt)
	return nil
}

// Nack returns the delivery to the pending set with an incremented attempt
// count, deliverable after delay.
func (q *Queue) Nack(ctx context.Context, receipt string, delay time.Duration) error {
	return q.settle(receipt, delay, true)
}

// Requeue returns the delivery to the pending set unchanged except for its
// delivery time.
func (q *Queue) Requeue(ctx context.Context, receipt string, delay time.Duration) error {
	return q.settle(receipt, delay, false)
}

func (q *Queue) settle(receipt string, delay time.Duration, consumeAttempt bool) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return queue.ErrQueueClosed
	}
	env, ok := q.inflight[receipt]
	if !ok {
		q.mu.Unlock()
		return queue.ErrUnknownReceipt
	}
	delete(q.inflight, receipt)
	if consumeAttempt {
		env.Attempt++
	}
	env.NotBefore = time.Now().Add(delay)
	q.pending = append(q.pending, env)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Depth reports how many envelopes are pending or in flight.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.inflight)
}

// Close marks the queue closed and wakes all blocked consumers.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
