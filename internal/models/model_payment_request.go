package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest is one outbound STK push (customer-to-business collection).
// CheckoutRequestID is the sole correlation key for inbound callbacks;
// MerchantRequestID is kept as a fallback lookup key only.
type PaymentRequest struct {
	ID    string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Phone string `gorm:"column:phone;type:varchar(16);not null;index" json:"phone"`
	// Amount in whole currency units, currency implicit (KES).
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Reference string          `gorm:"column:reference;type:varchar(128);not null;index:idx_reference_created,priority:1" json:"reference"`
	// Gateway-issued correlation ids, null until the initiate call returns.
	MerchantRequestID  *string           `gorm:"column:merchant_request_id;type:varchar(64);index" json:"merchant_request_id"`
	CheckoutRequestID  *string           `gorm:"column:checkout_request_id;type:varchar(64);uniqueIndex" json:"checkout_request_id"`
	Status             TransactionStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	MpesaReceiptNumber *string           `gorm:"column:mpesa_receipt_number;type:varchar(32)" json:"mpesa_receipt_number"`
	// TransactionDate is kept in the gateway-native YYYYMMDDHHMMSS form.
	TransactionDate *string   `gorm:"column:transaction_date;type:varchar(20)" json:"transaction_date"`
	ResultCode      *int      `gorm:"column:result_code" json:"result_code"`
	ResultDesc      *string   `gorm:"column:result_desc;type:varchar(255)" json:"result_desc"`
	CreatedAt       time.Time `gorm:"index:idx_reference_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (PaymentRequest) TableName() string {
	return "mpesa_payment_request"
}
