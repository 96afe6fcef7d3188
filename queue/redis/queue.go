// Package redis provides a Redis Streams EventQueue for multi-worker
// deployments. A consumer group tracks in-flight deliveries, a sorted set
// holds delayed envelopes, and messages abandoned by crashed workers are
// reclaimed after an idle timeout.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poiesic/docai/queue"
)

const (
	eventStream    = "docai:events"
	eventGroup     = "docai:workers"
	scheduledSet   = "docai:scheduled"
	consumerPrefix = "worker-"

	// How long a delivery may sit unacked before another worker may claim it.
	claimTimeout = 5 * time.Minute

	// Upper bound on a single XReadGroup block so scheduled promotion and
	// context cancellation stay responsive.
	readBlock = 2 * time.Second
)

var _ queue.EventQueue = (*Queue)(nil)

// Queue implements queue.EventQueue on Redis Streams.
type Queue struct {
	client       *redis.Client
	consumerName string

	mu       sync.Mutex
	inflight map[string]queue.Envelope // stream message ID -> envelope
}

// NewQueue creates a Redis-backed queue and ensures the consumer group
// exists. consumerName should be unique per worker process; when empty a
// timestamped name is generated.
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
		inflight:     make(map[string]queue.Envelope),
	}

	err := client.XGroupCreateMkStream(context.Background(), eventStream, eventGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue publishes an envelope. Envelopes with a future NotBefore go to
// the scheduled set and are promoted to the stream once due.
func (q *Queue) Enqueue(ctx context.Context, env queue.Envelope) error {
	payload := string(queue.MarshalEnvelope(env))
	if env.NotBefore.After(time.Now()) {
		return q.client.ZAdd(ctx, scheduledSet, redis.Z{
			Score:  float64(env.NotBefore.UnixMilli()),
			Member: payload,
		}).Err()
	}
	return q.addToStream(ctx, payload)
}

func (q *Queue) addToStream(ctx context.Context, payload string) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		Values: map[string]interface{}{"envelope": payload},
	}).Err()
}

// Dequeue blocks until an envelope is available or the context is
// cancelled. Each pass promotes due scheduled envelopes and tries to
// reclaim abandoned deliveries before reading new messages.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Best effort; a failed promotion just delays the envelope.
		_ = q.promoteScheduled(ctx)

		if d, err := q.claimAbandoned(ctx); err == nil && d != nil {
			return d, nil
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    eventGroup,
			Consumer: q.consumerName,
			Streams:  []string{eventStream, ">"},
			Count:    1,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read from stream: %w", err)
		}
		if len(streams) == 0 || len(streams[0].Messages) == 0 {
			continue
		}

		d, err := q.accept(ctx, streams[0].Messages[0])
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
}

// accept decodes a stream message into a delivery. Malformed messages are
// acked and dropped so they cannot wedge the group.
func (q *Queue) accept(ctx context.Context, msg redis.XMessage) (*queue.Delivery, error) {
	payload, ok := msg.Values["envelope"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}
	env, err := queue.UnmarshalEnvelope([]byte(payload))
	if err != nil {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	q.mu.Lock()
	q.inflight[msg.ID] = env
	q.mu.Unlock()

	return &queue.Delivery{Envelope: env, Receipt: msg.ID}, nil
}

// Ack settles a delivery and deletes its stream entry.
func (q *Queue) Ack(ctx context.Context, receipt string) error {
	if _, err := q.take(receipt); err != nil {
		return err
	}
	q.drop(ctx, receipt)
	return nil
}

// Nack settles the delivery and republishes it with an incremented attempt
// count, deliverable after delay.
func (q *Queue) Nack(ctx context.Context, receipt string, delay time.Duration) error {
	return q.resubmit(ctx, receipt, delay, true)
}

// Requeue settles the delivery and republishes it without consuming an
// attempt.
func (q *Queue) Requeue(ctx context.Context, receipt string, delay time.Duration) error {
	return q.resubmit(ctx, receipt, delay, false)
}

func (q *Queue) resubmit(ctx context.Context, receipt string, delay time.Duration, consumeAttempt bool) error {
	env, err := q.take(receipt)
	if err != nil {
		return err
	}
	if consumeAttempt {
		env.Attempt++
	}
	env.NotBefore = time.Now().Add(delay)
	if err := q.Enqueue(ctx, env); err != nil {
		return fmt.Errorf("republish envelope: %w", err)
	}
	q.drop(ctx, receipt)
	return nil
}

// take removes a receipt from the in-flight set.
func (q *Queue) take(receipt string) (queue.Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	env, ok := q.inflight[receipt]
	if !ok {
		return queue.Envelope{}, queue.ErrUnknownReceipt
	}
	delete(q.inflight, receipt)
	return env, nil
}

// drop acks and deletes a stream message.
func (q *Queue) drop(ctx context.Context, msgID string) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, eventStream, eventGroup, msgID)
	pipe.XDel(ctx, eventStream, msgID)
	_, _ = pipe.Exec(ctx)
}

// promoteScheduled moves due envelopes from the sorted set to the stream.
func (q *Queue) promoteScheduled(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().UnixMilli()),
	}).Result()
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, payload := range due {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: eventStream,
			Values: map[string]interface{}{"envelope": payload},
		})
		pipe.ZRem(ctx, scheduledSet, payload)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandoned takes over a delivery another worker left unacked past the
// idle timeout.
func (q *Queue) claimAbandoned(ctx context.Context) (*queue.Delivery, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: eventStream,
		Group:  eventGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   eventStream,
			Group:    eventGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		d, err := q.accept(ctx, claimed[0])
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
	return nil, nil
}

// Ping checks connectivity to the backend.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases local state. The Redis client is shared and stays open.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.inflight = make(map[string]queue.Envelope)
	q.mu.Unlock()
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
