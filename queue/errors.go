package queue

import "errors"

var (
	// ErrQueueClosed indicates the queue has been closed.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrUnknownReceipt indicates a settle call for a delivery this queue
	// does not know about (already settled, or reclaimed by another worker).
	ErrUnknownReceipt = errors.New("unknown receipt")

	// ErrMalformedEnvelope indicates an envelope that could not be decoded.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)
