package retryqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/pkg/metrics"
	"github.com/havenpay/mpesa-bridge/pkg/tool"
)

const (
	baseBackoff = 30 * time.Second
	maxBackoff  = 8 * time.Minute
)

// Queue is the durable deferred-callback store. Entries hold the raw callback
// payload verbatim so a replay sees exactly what the live webhook saw.
type Queue struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewQueue(db *gorm.DB, log *zap.SugaredLogger) *Queue {
	return &Queue{db: db, log: log}
}

// nextBackoff doubles per performed attempt, capped.
func nextBackoff(attempts int) time.Duration {
	d := baseBackoff
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (q *Queue) Enqueue(ctx context.Context, kind models.CallbackKind, payload json.RawMessage) error {
	entry := &models.CallbackRetry{
		ID:            tool.GenerateUUIDV7(),
		Kind:          kind,
		Payload:       datatypes.JSON(payload),
		Attempts:      0,
		NextAttemptAt: time.Now().Add(nextBackoff(0)),
		Status:        models.CallbackRetryStatusQueued,
	}
	if err := q.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}
	q.log.Infow("callback_retry_enqueued", "id", entry.ID, "kind", kind)
	q.refreshDepthGauge(ctx)
	return nil
}

// ClaimDue returns queued entries whose next attempt is due.
func (q *Queue) ClaimDue(ctx context.Context, limit int) ([]*models.CallbackRetry, error) {
	var entries []*models.CallbackRetry
	err := q.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.CallbackRetryStatusQueued, time.Now()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (q *Queue) MarkSucceeded(ctx context.Context, id string) error {
	err := q.db.WithContext(ctx).
		Model(&models.CallbackRetry{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": models.CallbackRetryStatusSucceeded}).Error
	q.refreshDepthGauge(ctx)
	return err
}

// Reschedule records a failed attempt. Once the attempt budget is exhausted
// the entry dead-letters for manual review instead of retrying forever.
func (q *Queue) Reschedule(ctx context.Context, entry *models.CallbackRetry, maxAttempts int, cause string) error {
	attempts := entry.Attempts + 1
	updates := map[string]any{
		"attempts":   attempts,
		"last_error": lo.ToPtr(cause),
	}
	if attempts >= maxAttempts {
		updates["status"] = models.CallbackRetryStatusDead
		q.log.Warnw("callback_retry_dead_lettered", "id", entry.ID, "attempts", attempts, "cause", cause)
	} else {
		updates["next_attempt_at"] = time.Now().Add(nextBackoff(attempts))
	}
	err := q.db.WithContext(ctx).
		Model(&models.CallbackRetry{}).
		Where("id = ?", entry.ID).
		Updates(updates).Error
	q.refreshDepthGauge(ctx)
	return err
}

// MarkDead drops an entry that can never succeed (e.g. no correlation id).
func (q *Queue) MarkDead(ctx context.Context, id string, cause string) error {
	err := q.db.WithContext(ctx).
		Model(&models.CallbackRetry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.CallbackRetryStatusDead,
			"last_error": lo.ToPtr(cause),
		}).Error
	q.refreshDepthGauge(ctx)
	return err
}

func (q *Queue) refreshDepthGauge(ctx context.Context) {
	var n int64
	if err := q.db.WithContext(ctx).
		Model(&models.CallbackRetry{}).
		Where("status = ?", models.CallbackRetryStatusQueued).
		Count(&n).Error; err != nil {
		return
	}
	metrics.RetryQueueDepth.Set(float64(n))
}
