package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/lifecycle"
	"github.com/poiesic/docai/queue"
)

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q := New()
	defer q.Close()
	ctx := context.Background()

	env := queue.NewEnvelope(queue.KindDocument, "doc_1", lifecycle.TagConversionDone)
	require.NoError(t, q.Enqueue(ctx, env))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, env, d.Envelope)
	assert.NotEmpty(t, d.Receipt)
	assert.Equal(t, 1, q.Depth(), "in-flight deliveries count toward depth")

	require.NoError(t, q.Ack(ctx, d.Receipt))
	assert.Equal(t, 0, q.Depth())

	// A receipt settles exactly once.
	assert.ErrorIs(t, q.Ack(ctx, d.Receipt), queue.ErrUnknownReceipt)
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New()
	defer q.Close()
	ctx := context.Background()

	got := make(chan queue.Envelope, 1)
	go func() {
		d, err := q.Dequeue(ctx)
		if err == nil {
			got <- d.Envelope
		}
	}()

	time.Sleep(20 * time.Millisecond)
	env := queue.NewEnvelope(queue.KindQuery, "query_1", lifecycle.TagProcessStarted)
	require.NoError(t, q.Enqueue(ctx, env))

	select {
	case received := <-got:
		assert.Equal(t, env, received)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe the enqueue")
	}
}

func TestQueue_NotBeforeDelaysDelivery(t *testing.T) {
	q := New()
	defer q.Close()
	ctx := context.Background()

	delayed := queue.NewEnvelope(queue.KindDocument, "doc_late", lifecycle.TagStorageDone)
	delayed.NotBefore = time.Now().Add(60 * time.Millisecond)
	immediate := queue.NewEnvelope(queue.KindDocument, "doc_now", lifecycle.TagStorageDone)

	require.NoError(t, q.Enqueue(ctx, delayed))
	require.NoError(t, q.Enqueue(ctx, immediate))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc_now", d.Envelope.EntityID, "due envelope is delivered first")
	require.NoError(t, q.Ack(ctx, d.Receipt))

	start := time.Now()
	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc_late", d.Envelope.EntityID)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.NoError(t, q.Ack(ctx, d.Receipt))
}

func TestQueue_NackIncrementsAttempt(t *testing.T) {
	q := New()
	defer q.Close()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.NewEnvelope(queue.KindDocument, "doc_1", lifecycle.TagConversionDone)))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Envelope.Attempt)
	require.NoError(t, q.Nack(ctx, d.Receipt, 0))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Envelope.Attempt)
	require.NoError(t, q.Nack(ctx, d.Receipt, 0))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Envelope.Attempt)
}

func TestQueue_RequeuePreservesAttempt(t *testing.T) {
	q := New()
	defer q.Close()
	ctx := context.Background()

	env := queue.NewEnvelope(queue.KindQuery, "query_1", lifecycle.TagContextRetrieved)
	env.Attempt = 2
	require.NoError(t, q.Enqueue(ctx, env))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Requeue(ctx, d.Receipt, 0))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Envelope.Attempt, "requeue must not consume the retry budget")
}

func TestQueue_ContextCancelUnblocks(t *testing.T) {
	q := New()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}

func TestQueue_CloseUnblocksDequeue(t *testing.T) {
	q := New()

	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, queue.ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe close")
	}

	assert.ErrorIs(t, q.Enqueue(context.Background(), queue.Envelope{}), queue.ErrQueueClosed)
}
