package retryqueue

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/internal/app/service/reconciler"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/pkg/config"
)

const claimBatchSize = 20

// Processor replays a deferred callback through the reconciler. It must be
// idempotent: the worker may race with a fresh inbound callback for the same
// correlation id, and the store's compare-and-set resolves the winner.
type Processor interface {
	ReprocessB2C(ctx context.Context, kind models.CallbackKind, payload json.RawMessage) (reconciler.Outcome, error)
}

// QueueStore is the durable queue surface the worker drives.
type QueueStore interface {
	ClaimDue(ctx context.Context, limit int) ([]*models.CallbackRetry, error)
	MarkSucceeded(ctx context.Context, id string) error
	Reschedule(ctx context.Context, entry *models.CallbackRetry, maxAttempts int, cause string) error
	MarkDead(ctx context.Context, id string, cause string) error
}

// Worker polls the retry queue and replays due entries.
type Worker struct {
	queue       QueueStore
	proc        Processor
	log         *zap.SugaredLogger
	interval    time.Duration
	maxAttempts int

	stop chan struct{}
	done chan struct{}
}

func NewWorker(cfg *config.Config, queue QueueStore, proc Processor, log *zap.SugaredLogger) *Worker {
	interval := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Retry.PollInterval); err == nil && d > 0 {
		interval = d
	}
	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Worker{
		queue:       queue,
		proc:        proc,
		log:         log,
		interval:    interval,
		maxAttempts: maxAttempts,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *Worker) Run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.ProcessDue(context.Background())
		}
	}
}

func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessDue replays every due entry once.
func (w *Worker) ProcessDue(ctx context.Context) {
	entries, err := w.queue.ClaimDue(ctx, claimBatchSize)
	if err != nil {
		w.log.Errorw("retry_claim_failed", "err", err)
		return
	}

	for _, entry := range entries {
		outcome, err := w.proc.ReprocessB2C(ctx, entry.Kind, json.RawMessage(entry.Payload))
		switch {
		case err == nil && (outcome == reconciler.OutcomeApplied || outcome == reconciler.OutcomeDuplicate):
			if err := w.queue.MarkSucceeded(ctx, entry.ID); err != nil {
				w.log.Errorw("retry_mark_succeeded_failed", "id", entry.ID, "err", err)
			}
		case outcome == reconciler.OutcomeDiscarded:
			// No correlation id or undecodable payload: retrying cannot help.
			cause := "callback payload cannot be correlated"
			if err != nil {
				cause = err.Error()
			}
			if err := w.queue.MarkDead(ctx, entry.ID, cause); err != nil {
				w.log.Errorw("retry_mark_dead_failed", "id", entry.ID, "err", err)
			}
		default:
			cause := "transaction not found"
			if err != nil {
				cause = err.Error()
			}
			if err := w.queue.Reschedule(ctx, entry, w.maxAttempts, cause); err != nil {
				w.log.Errorw("retry_reschedule_failed", "id", entry.ID, "err", err)
			}
		}
	}
}
