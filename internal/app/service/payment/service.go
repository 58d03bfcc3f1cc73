package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
)

// ErrValidation covers caller mistakes: bad phone numbers, non-positive
// amounts, or a status query for a record that was never pushed.
var ErrValidation = errors.New("invalid payment request")

// Gateway is the slice of the Daraja client the collection flow needs.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phone, reference string, amount decimal.Decimal) (*daraja.STKPushResponse, error)
	QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*daraja.STKQueryResponse, error)
}

// Store persists payment records and applies terminal transitions.
type Store interface {
	CreatePayment(ctx context.Context, p *models.PaymentRequest) error
	FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentRequest, error)
	ResolvePayment(ctx context.Context, id string, res store.PaymentResolution) (bool, error)
}

// Service drives the customer collection flow: push a charge prompt to the
// payer's handset, persist a pending record, and answer status queries.
type Service struct {
	gateway Gateway
	store   Store
	log     *zap.SugaredLogger
}

func NewService(gateway Gateway, store Store, log *zap.SugaredLogger) *Service {
	return &Service{gateway: gateway, store: store, log: log}
}

type InitiateRequest struct {
	Phone     string
	Amount    decimal.Decimal
	Reference string
}

type InitiateResult struct {
	PaymentID         string
	Reference         string
	MerchantRequestID string
	CheckoutRequestID string
	CustomerMessage   string
}

// Initiate pushes an STK prompt and records the pending payment. The record
// is only written after the gateway accepts the push, so every stored payment
// carries the correlation ids its callback will arrive with.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("Payment-%d", time.Now().Unix())
	}

	resp, err := s.gateway.InitiateSTKPush(ctx, phone, reference, req.Amount)
	if err != nil {
		s.log.Errorw("stk_push_failed", "phone", phone, "reference", reference, "err", err)
		return nil, err
	}

	record := &models.PaymentRequest{
		Phone:             phone,
		Amount:            req.Amount,
		Reference:         reference,
		MerchantRequestID: lo.ToPtr(resp.MerchantRequestID),
		CheckoutRequestID: lo.ToPtr(resp.CheckoutRequestID),
		Status:            models.TransactionStatusPending,
	}
	if err := s.store.CreatePayment(ctx, record); err != nil {
		// The push already went out; the payer may still authorize it. Surface
		// the failure so the caller knows the record is missing.
		s.log.Errorw("payment_record_create_failed", "checkout_request_id", resp.CheckoutRequestID, "err", err)
		return nil, err
	}

	s.log.Infow("stk_push_initiated",
		"payment_id", record.ID,
		"reference", reference,
		"merchant_request_id", resp.MerchantRequestID,
		"checkout_request_id", resp.CheckoutRequestID,
	)
	return &InitiateResult{
		PaymentID:         record.ID,
		Reference:         reference,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// StatusResult is the merged local-plus-live view of one payment.
type StatusResult struct {
	Payment *models.PaymentRequest
	// Live is the gateway's answer, nil when the query failed and the local
	// record is all we have.
	Live     *daraja.STKQueryResponse
	Degraded bool
}

// CheckStatus reports the state of a payment by reference. The gateway is
// polled for pending records; a definitive live result is folded back into
// the store through the same compare-and-set the callback path uses, so the
// poll can never overwrite a callback that got there first.
func (s *Service) CheckStatus(ctx context.Context, reference string) (*StatusResult, error) {
	record, err := s.store.FindPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if record.CheckoutRequestID == nil || *record.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: payment has no checkout request id", ErrValidation)
	}
	if record.Status.IsTerminal() {
		return &StatusResult{Payment: record}, nil
	}

	live, err := s.gateway.QuerySTKStatus(ctx, *record.CheckoutRequestID)
	if err != nil {
		s.log.Warnw("stk_status_query_failed", "reference", reference, "err", err)
		return &StatusResult{Payment: record, Degraded: true}, nil
	}

	if code, ok := live.ResultCodeValue(); ok {
		applied, err := s.store.ResolvePayment(ctx, record.ID, store.PaymentResolution{
			Status:     models.StatusForResultCode(code),
			ResultCode: code,
			ResultDesc: live.ResultDesc,
		})
		if err != nil {
			return nil, err
		}
		if applied {
			record.Status = models.StatusForResultCode(code)
			record.ResultCode = lo.ToPtr(code)
			record.ResultDesc = lo.ToPtr(live.ResultDesc)
		} else if refreshed, err := s.store.FindPaymentByReference(ctx, reference); err == nil {
			record = refreshed
		}
	}
	return &StatusResult{Payment: record, Live: live}, nil
}
