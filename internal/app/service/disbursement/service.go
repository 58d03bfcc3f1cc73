package disbursement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/havenpay/mpesa-bridge/internal/app/service/payment"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
	"github.com/havenpay/mpesa-bridge/pkg/config"
)

// ErrValidation covers caller mistakes on the disbursement request.
var ErrValidation = errors.New("invalid disbursement request")

// Gateway is the slice of the Daraja client the payout flow needs.
type Gateway interface {
	InitiateB2C(ctx context.Context, originatorID, phone string, amount decimal.Decimal, remarks, occasion string) (*daraja.B2CResponse, error)
}

// Store persists disbursement records and applies terminal transitions.
type Store interface {
	CreateDisbursement(ctx context.Context, d *models.DisbursementRequest) error
	AttachDisbursementAck(ctx context.Context, id string, conversationID string, ack datatypes.JSON) error
	ResolveDisbursement(ctx context.Context, id string, res store.DisbursementResolution) (bool, error)
}

// Service drives business-to-customer payouts. The pending record is written
// before the network call: if the call times out, the eventual result callback
// can still find its record by originator conversation id.
type Service struct {
	gateway Gateway
	store   Store
	cfg     config.MpesaConfig
	log     *zap.SugaredLogger
}

func NewService(gateway Gateway, st Store, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{gateway: gateway, store: st, cfg: cfg.Mpesa, log: log}
}

type InitiateRequest struct {
	Phone    string
	Amount   decimal.Decimal
	Remarks  string
	Occasion string
}

type InitiateResult struct {
	DisbursementID           string
	OriginatorConversationID string
	ConversationID           string
	ResponseDescription      string
}

// Initiate sends a B2C payment. Synchronous rejections mark the record failed
// immediately; an unreachable gateway leaves it pending because the request
// may still have been accepted and the callback remains the source of truth.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	phone, err := payment.NormalizePhone(req.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.Remarks == "" {
		return nil, fmt.Errorf("%w: remarks are required", ErrValidation)
	}

	originatorID := daraja.NewOriginatorConversationID()
	requestData, _ := json.Marshal(map[string]any{
		"phone":    phone,
		"amount":   req.Amount.String(),
		"remarks":  req.Remarks,
		"occasion": req.Occasion,
	})

	record := &models.DisbursementRequest{
		OriginatorConversationID: originatorID,
		CommandID:                daraja.CommandIDBusinessPayment,
		InitiatorName:            s.cfg.InitiatorName,
		PhoneNumber:              phone,
		Amount:                   req.Amount,
		Remarks:                  req.Remarks,
		Occasion:                 req.Occasion,
		Status:                   models.TransactionStatusPending,
		RequestData:              datatypes.JSON(requestData),
	}
	if err := s.store.CreateDisbursement(ctx, record); err != nil {
		return nil, err
	}

	resp, err := s.gateway.InitiateB2C(ctx, originatorID, phone, req.Amount, req.Remarks, req.Occasion)
	if err != nil {
		if errors.Is(err, daraja.ErrGatewayUnreachable) {
			s.log.Warnw("b2c_send_unconfirmed", "originator_conversation_id", originatorID, "err", err)
			return nil, err
		}
		// Definitive rejection: the gateway never queued this payout.
		if _, ferr := s.store.ResolveDisbursement(ctx, record.ID, store.DisbursementResolution{
			Status:     models.TransactionStatusFailed,
			ResultCode: 1,
			ResultDesc: err.Error(),
		}); ferr != nil {
			s.log.Errorw("b2c_fail_record_failed", "originator_conversation_id", originatorID, "err", ferr)
		}
		s.log.Errorw("b2c_send_rejected", "originator_conversation_id", originatorID, "err", err)
		return nil, err
	}

	ack, _ := json.Marshal(resp)
	if err := s.store.AttachDisbursementAck(ctx, record.ID, resp.ConversationID, datatypes.JSON(ack)); err != nil {
		s.log.Errorw("b2c_ack_attach_failed", "originator_conversation_id", originatorID, "err", err)
	}

	s.log.Infow("b2c_send_accepted",
		"disbursement_id", record.ID,
		"originator_conversation_id", originatorID,
		"conversation_id", resp.ConversationID,
	)
	return &InitiateResult{
		DisbursementID:           record.ID,
		OriginatorConversationID: originatorID,
		ConversationID:           resp.ConversationID,
		ResponseDescription:      resp.ResponseDescription,
	}, nil
}
