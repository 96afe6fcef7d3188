package orchestrate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/docai/queue"
)

// Worker pulls envelopes off the queue and processes them on a bounded
// pool. Deliveries in flight when the worker stops are abandoned unacked
// and will be redelivered.
type Worker struct {
	orchestrator *Orchestrator
	events       queue.EventQueue
	pool         *ants.Pool
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker over the orchestrator's queue.
func NewWorker(orchestrator *Orchestrator) (*Worker, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	pool, err := ants.NewPool(orchestrator.cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	return &Worker{
		orchestrator: orchestrator,
		events:       orchestrator.events,
		pool:         pool,
		logger:       orchestrator.logger.With("component", "worker"),
	}, nil
}

// Run processes deliveries until the context is cancelled or the queue
// closes. It blocks; Start wraps it for background use.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "pool_size", w.pool.Cap())
	defer w.wg.Wait()

	for {
		d, err := w.events.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("worker stopping")
				return nil
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Info("queue closed, worker stopping")
				return nil
			}
			w.logger.Error("dequeue failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if d == nil {
			continue
		}

		delivery := d
		w.wg.Add(1)
		if err := w.pool.Submit(func() {
			defer w.wg.Done()
			// HandleDelivery settles the envelope itself; its error is
			// already reflected in the outcome and logged there.
			_, _ = w.orchestrator.HandleDelivery(ctx, delivery)
		}); err != nil {
			w.wg.Done()
			w.logger.Error("submit to pool failed", "err", err)
			if rqErr := w.events.Requeue(ctx, delivery.Receipt, w.orchestrator.cfg.RequeueDelay); rqErr != nil {
				w.logger.Error("requeue after submit failure", "err", rqErr)
			}
		}
	}
}

// Start runs the worker in the background until Stop is called.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go func() {
		_ = w.Run(ctx)
	}()
}

// Stop cancels the run loop, waits for in-flight deliveries, and releases
// the pool.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.pool.Release()
}
