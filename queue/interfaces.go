package queue

import (
	"context"
	"time"
)

// Delivery is a dequeued envelope plus the opaque receipt used to settle it.
type Delivery struct {
	Envelope Envelope
	Receipt  string
}

// EventQueue is the ordered, at-least-once delivery channel between
// orchestrator stages. Delivery order is guaranteed per entity only to the
// extent that stages enqueue their successor after persisting; consumers
// must tolerate duplicates and out-of-order arrivals across entities.
type EventQueue interface {
	// Enqueue publishes an envelope. Envelopes with a future NotBefore are
	// held back until due.
	Enqueue(ctx context.Context, env Envelope) error

	// Dequeue blocks until an envelope is due or the context is cancelled.
	// The delivery stays invisible to other consumers until settled;
	// deliveries abandoned by a crashed consumer are eventually redelivered.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack settles a delivery as processed. Safe to call for envelopes that
	// turned out to be duplicates.
	Ack(ctx context.Context, receipt string) error

	// Nack returns a delivery to the queue with its attempt count
	// incremented, deliverable again after delay.
	Nack(ctx context.Context, receipt string, delay time.Duration) error

	// Requeue returns a delivery to the queue without consuming an attempt,
	// deliverable again after delay. Used when a compare-and-set write lost
	// a race: the redelivery re-evaluates and usually becomes a no-op.
	Requeue(ctx context.Context, receipt string, delay time.Duration) error

	// Close releases the queue.
	Close() error
}
