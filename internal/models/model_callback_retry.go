package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallbackRetryStatus string

const (
	CallbackRetryStatusQueued    CallbackRetryStatus = "queued"
	CallbackRetryStatusSucceeded CallbackRetryStatus = "succeeded"
	// dead entries are kept for manual review after the attempt budget runs out.
	CallbackRetryStatusDead CallbackRetryStatus = "dead"
)

// CallbackRetry is a deferred B2C callback: the notification arrived before
// its transaction row was persisted, so the raw payload is parked here and
// replayed by the retry worker.
type CallbackRetry struct {
	ID            string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Kind          CallbackKind        `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Payload       datatypes.JSON      `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Attempts      int                 `gorm:"column:attempts;not null;default:0" json:"attempts"`
	NextAttemptAt time.Time           `gorm:"column:next_attempt_at;index:idx_retry_due,priority:2" json:"next_attempt_at"`
	Status        CallbackRetryStatus `gorm:"column:status;type:varchar(16);not null;default:'queued';index:idx_retry_due,priority:1" json:"status"`
	LastError     *string             `gorm:"column:last_error;type:varchar(255)" json:"last_error"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (CallbackRetry) TableName() string { return "mpesa_callback_retry" }
