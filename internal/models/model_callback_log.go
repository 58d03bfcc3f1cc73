package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallbackLogStatus string

const (
	CallbackLogStatusReceived     CallbackLogStatus = "received"
	CallbackLogStatusHandled      CallbackLogStatus = "handled"
	CallbackLogStatusHandleFailed CallbackLogStatus = "handle_failed"
)

type CallbackKind string

const (
	CallbackKindSTK        CallbackKind = "stk"
	CallbackKindB2CResult  CallbackKind = "b2c_result"
	CallbackKindB2CTimeout CallbackKind = "b2c_timeout"
)

// CallbackLog is the durable audit trail of every inbound gateway callback,
// written before and after reconciliation.
type CallbackLog struct {
	ID            string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Kind          CallbackKind      `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	TraceID       string            `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	CorrelationID string            `gorm:"column:correlation_id;type:varchar(64);index" json:"correlation_id"`
	ReceivedAt    time.Time         `gorm:"column:received_at" json:"received_at"`
	Data          datatypes.JSON    `gorm:"column:data;type:jsonb" json:"data"`
	Result        *datatypes.JSON   `gorm:"column:result;type:jsonb" json:"result"`
	Status        CallbackLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (CallbackLog) TableName() string { return "mpesa_callback_log" }
