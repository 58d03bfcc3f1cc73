package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DisbursementRequest is one outbound B2C payment. OriginatorConversationID is
// generated before the network call and is the only key that survives the
// initiate -> result/timeout callback round trip; the gateway's own
// ConversationID is assigned asynchronously.
type DisbursementRequest struct {
	ID                       string  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	OriginatorConversationID string  `gorm:"column:originator_conversation_id;type:varchar(64);not null;uniqueIndex" json:"originator_conversation_id"`
	ConversationID           *string `gorm:"column:conversation_id;type:varchar(64)" json:"conversation_id"`
	CommandID                string  `gorm:"column:command_id;type:varchar(64);not null;default:'BusinessPayment'" json:"command_id"`
	// InitiatorName comes from service configuration, never from the caller.
	InitiatorName string            `gorm:"column:initiator_name;type:varchar(64);not null" json:"initiator_name"`
	PhoneNumber   string            `gorm:"column:phone_number;type:varchar(16);not null" json:"phone_number"`
	Amount        decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Remarks       string            `gorm:"column:remarks;type:varchar(100);not null" json:"remarks"`
	Occasion      string            `gorm:"column:occasion;type:varchar(100)" json:"occasion"`
	Status        TransactionStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	ResultCode    *int              `gorm:"column:result_code" json:"result_code"`
	ResultDesc    *string           `gorm:"column:result_desc;type:varchar(255)" json:"result_desc"`
	// Raw request and result payloads, stored verbatim for audit and debugging.
	RequestData datatypes.JSON `gorm:"column:request_data;type:jsonb" json:"request_data"`
	ResultData  datatypes.JSON `gorm:"column:result_data;type:jsonb" json:"result_data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (DisbursementRequest) TableName() string {
	return "mpesa_b2c_request"
}
