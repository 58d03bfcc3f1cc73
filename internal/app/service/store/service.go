package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/pkg/tool"
)

// ErrNotFound means no transaction matched the given key.
var ErrNotFound = errors.New("transaction not found")

// Service owns the durable payment and disbursement records. All terminal
// transitions go through compare-and-set updates keyed on the pending status,
// so concurrent callbacks for one record resolve to exactly one winner.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) CreatePayment(ctx context.Context, p *models.PaymentRequest) error {
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if p.Status == "" {
		p.Status = models.TransactionStatusPending
	}
	return s.db.WithContext(ctx).Create(p).Error
}

// FindPaymentByCorrelationID looks up by checkout request id first, falling
// back to merchant request id when the primary key is absent from a callback.
func (s *Service) FindPaymentByCorrelationID(ctx context.Context, checkoutRequestID, merchantRequestID string) (*models.PaymentRequest, error) {
	if checkoutRequestID != "" {
		var p models.PaymentRequest
		err := s.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if merchantRequestID != "" {
		var p models.PaymentRequest
		err := s.db.WithContext(ctx).Where("merchant_request_id = ?", merchantRequestID).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// FindPaymentByReference returns the most recent record for a caller-supplied
// reference.
func (s *Service) FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	err := s.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PaymentResolution is the terminal outcome applied to a pending payment.
type PaymentResolution struct {
	Status          models.TransactionStatus
	ResultCode      int
	ResultDesc      string
	ReceiptNumber   *string
	TransactionDate *string
}

// ResolvePayment transitions a pending payment to a terminal state. Returns
// applied=false without error when the record is already terminal: the
// idempotent no-op every callback path depends on.
func (s *Service) ResolvePayment(ctx context.Context, id string, res PaymentResolution) (bool, error) {
	updates := map[string]any{
		"status":      res.Status,
		"result_code": res.ResultCode,
		"result_desc": res.ResultDesc,
	}
	if res.ReceiptNumber != nil {
		updates["mpesa_receipt_number"] = *res.ReceiptNumber
	}
	if res.TransactionDate != nil {
		updates["transaction_date"] = *res.TransactionDate
	}

	tx := s.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *Service) CreateDisbursement(ctx context.Context, d *models.DisbursementRequest) error {
	if d.ID == "" {
		d.ID = tool.GenerateUUIDV7()
	}
	if d.Status == "" {
		d.Status = models.TransactionStatusPending
	}
	if d.CommandID == "" {
		d.CommandID = "BusinessPayment"
	}
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *Service) FindDisbursementByOriginatorID(ctx context.Context, originatorConversationID string) (*models.DisbursementRequest, error) {
	var d models.DisbursementRequest
	err := s.db.WithContext(ctx).
		Where("originator_conversation_id = ?", originatorConversationID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AttachDisbursementAck records the synchronous gateway acknowledgement on a
// still-pending row. It deliberately does not touch status: the asynchronous
// result callback is the source of truth for the outcome.
func (s *Service) AttachDisbursementAck(ctx context.Context, id string, conversationID string, ack datatypes.JSON) error {
	updates := map[string]any{"result_data": ack}
	if conversationID != "" {
		updates["conversation_id"] = conversationID
	}
	return s.db.WithContext(ctx).
		Model(&models.DisbursementRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DisbursementResolution is the terminal outcome applied to a pending
// disbursement.
type DisbursementResolution struct {
	Status         models.TransactionStatus
	ResultCode     int
	ResultDesc     string
	ConversationID string
	ResultData     datatypes.JSON
}

// ResolveDisbursement is the disbursement counterpart of ResolvePayment, with
// the same compare-and-set duplicate suppression.
func (s *Service) ResolveDisbursement(ctx context.Context, id string, res DisbursementResolution) (bool, error) {
	updates := map[string]any{
		"status":      res.Status,
		"result_code": res.ResultCode,
		"result_desc": res.ResultDesc,
	}
	if res.ConversationID != "" {
		updates["conversation_id"] = res.ConversationID
	}
	if len(res.ResultData) > 0 {
		updates["result_data"] = res.ResultData
	}

	tx := s.db.WithContext(ctx).
		Model(&models.DisbursementRequest{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
