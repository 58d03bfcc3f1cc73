package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/havenpay/mpesa-bridge/internal/app/service/notifier"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
	"github.com/havenpay/mpesa-bridge/pkg/logctx"
	"github.com/havenpay/mpesa-bridge/pkg/metrics"
	"github.com/havenpay/mpesa-bridge/pkg/tool"
)

// Outcome classifies what processing a callback did. Every inbound callback
// ends in exactly one of these, and the transport always acks regardless.
type Outcome string

const (
	// OutcomeApplied means this callback won the pending->terminal transition.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the record was already terminal (re-delivery, or
	// a lost race against a concurrent callback). No state change, no
	// downstream notification.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeNotFound means no matching transaction exists yet. Disbursement
	// callbacks with this outcome go to the deferred retry queue.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeDiscarded means the callback carried no correlation id: there is
	// nothing to retry against, so it is dropped permanently.
	OutcomeDiscarded Outcome = "discarded"
)

// TransactionStore is the slice of the store the reconciler drives. Both
// Resolve methods are compare-and-set: applied=false means the record was
// already terminal.
type TransactionStore interface {
	FindPaymentByCorrelationID(ctx context.Context, checkoutRequestID, merchantRequestID string) (*models.PaymentRequest, error)
	ResolvePayment(ctx context.Context, id string, res store.PaymentResolution) (bool, error)
	FindDisbursementByOriginatorID(ctx context.Context, originatorConversationID string) (*models.DisbursementRequest, error)
	ResolveDisbursement(ctx context.Context, id string, res store.DisbursementResolution) (bool, error)
}

// Notifier pushes final transaction state downstream, best-effort.
type Notifier interface {
	Notify(ctx context.Context, n *notifier.Notification)
}

// RetryEnqueuer parks a disbursement callback that outran its transaction row.
type RetryEnqueuer interface {
	Enqueue(ctx context.Context, kind models.CallbackKind, payload json.RawMessage) error
}

// AuditLog records every callback before and after reconciliation.
type AuditLog interface {
	Save(ctx context.Context, entry *models.CallbackLog)
}

// Service is the callback reconciliation state machine: it matches inbound
// gateway notifications to stored transactions and applies the single allowed
// pending -> {completed, failed} transition.
type Service struct {
	store    TransactionStore
	notifier Notifier
	queue    RetryEnqueuer
	audit    AuditLog
	log      *zap.SugaredLogger
}

func NewService(st TransactionStore, n Notifier, q RetryEnqueuer, a AuditLog, log *zap.SugaredLogger) *Service {
	return &Service{store: st, notifier: n, queue: q, audit: a, log: log}
}

// HandleSTKCallback ingests a collection result webhook. The payment record is
// created synchronously before any callback can occur, so not-found here is an
// error condition rather than a race; it is logged, never retried.
func (s *Service) HandleSTKCallback(ctx context.Context, env *daraja.STKCallbackEnvelope, raw json.RawMessage) (outcome Outcome, resErr error) {
	lg := logctx.FromCtx(ctx, s.log)

	cb := env.Body.StkCallback
	if cb == nil {
		lg.Errorw("stk_callback_invalid", "reason", "missing stkCallback body")
		return OutcomeDiscarded, fmt.Errorf("invalid callback data: missing stkCallback")
	}

	audit := s.saveAudit(ctx, models.CallbackKindSTK, cb.CheckoutRequestID, raw)
	defer func() { s.finishAudit(ctx, audit, outcome, resErr) }()

	if cb.CheckoutRequestID == "" && cb.MerchantRequestID == "" {
		lg.Errorw("stk_callback_invalid", "reason", "missing request ids")
		return OutcomeDiscarded, fmt.Errorf("missing request ids in callback")
	}

	txn, err := s.store.FindPaymentByCorrelationID(ctx, cb.CheckoutRequestID, cb.MerchantRequestID)
	if err != nil {
		if err == store.ErrNotFound {
			lg.Errorw("stk_callback_unmatched",
				"checkout_request_id", cb.CheckoutRequestID,
				"merchant_request_id", cb.MerchantRequestID)
			return OutcomeNotFound, fmt.Errorf("transaction not found for checkout request %s", cb.CheckoutRequestID)
		}
		return OutcomeNotFound, err
	}

	if txn.Status.IsTerminal() {
		lg.Infow("stk_callback_duplicate", "checkout_request_id", cb.CheckoutRequestID, "status", txn.Status)
		return OutcomeDuplicate, nil
	}

	res := store.PaymentResolution{
		Status:     models.StatusForResultCode(cb.ResultCode),
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	}
	if cb.ResultCode == 0 {
		if receipt, ok := cb.ReceiptNumber(); ok {
			res.ReceiptNumber = &receipt
		}
		if date, ok := cb.TransactionDate(); ok {
			res.TransactionDate = &date
		}
	}

	applied, err := s.store.ResolvePayment(ctx, txn.ID, res)
	if err != nil {
		return OutcomeNotFound, fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	if !applied {
		// A concurrent callback got there first; this delivery becomes a no-op.
		lg.Infow("stk_callback_duplicate", "checkout_request_id", cb.CheckoutRequestID)
		return OutcomeDuplicate, nil
	}

	lg.Infow("stk_callback_applied",
		"checkout_request_id", cb.CheckoutRequestID,
		"status", res.Status,
		"result_code", res.ResultCode)

	s.notifier.Notify(ctx, paymentNotification(txn, res))
	return OutcomeApplied, nil
}

// HandleB2CCallback ingests a disbursement result or queue-timeout webhook.
// Both shapes go through the same path. A callback that outran the initiate
// path's database write is parked on the deferred retry queue.
func (s *Service) HandleB2CCallback(ctx context.Context, kind models.CallbackKind, env *daraja.B2CCallbackEnvelope, raw json.RawMessage) (outcome Outcome, resErr error) {
	lg := logctx.FromCtx(ctx, s.log)

	correlationID, _ := env.CorrelationID()
	audit := s.saveAudit(ctx, kind, correlationID, raw)
	defer func() { s.finishAudit(ctx, audit, outcome, resErr) }()

	outcome, resErr = s.applyB2C(ctx, env)
	if outcome != OutcomeNotFound {
		return outcome, resErr
	}

	lg.Warnw("b2c_callback_unmatched, deferring", "originator_conversation_id", correlationID, "kind", kind)
	if err := s.queue.Enqueue(ctx, kind, raw); err != nil {
		return outcome, fmt.Errorf("failed to defer callback: %w", err)
	}
	return outcome, nil
}

// ReprocessB2C replays a deferred callback payload. It shares the exact apply
// path (and therefore the duplicate suppression) with the live webhook.
func (s *Service) ReprocessB2C(ctx context.Context, kind models.CallbackKind, raw json.RawMessage) (Outcome, error) {
	var env daraja.B2CCallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return OutcomeDiscarded, fmt.Errorf("undecodable deferred payload: %w", err)
	}
	outcome, err := s.applyB2C(ctx, &env)
	metrics.CallbackOutcomes.WithLabelValues(string(kind)+"_retry", string(outcome)).Inc()
	return outcome, err
}

func (s *Service) applyB2C(ctx context.Context, env *daraja.B2CCallbackEnvelope) (Outcome, error) {
	lg := logctx.FromCtx(ctx, s.log)

	correlationID, ok := env.CorrelationID()
	if !ok {
		// No key to retry against: permanent.
		lg.Warnw("b2c_callback_missing_originator_conversation_id")
		return OutcomeDiscarded, nil
	}

	txn, err := s.store.FindDisbursementByOriginatorID(ctx, correlationID)
	if err != nil {
		if err == store.ErrNotFound {
			return OutcomeNotFound, nil
		}
		return OutcomeNotFound, err
	}

	if txn.Status.IsTerminal() {
		lg.Infow("b2c_callback_duplicate", "originator_conversation_id", correlationID, "status", txn.Status)
		return OutcomeDuplicate, nil
	}

	resultCode := env.FinalResultCode()
	rawEnv, _ := json.Marshal(env)
	res := store.DisbursementResolution{
		Status:         models.StatusForResultCode(resultCode),
		ResultCode:     resultCode,
		ResultDesc:     env.FinalResultDesc(),
		ConversationID: env.GatewayConversationID(),
		ResultData:     datatypes.JSON(rawEnv),
	}

	applied, err := s.store.ResolveDisbursement(ctx, txn.ID, res)
	if err != nil {
		return OutcomeNotFound, fmt.Errorf("failed to update disbursement %s: %w", txn.ID, err)
	}
	if !applied {
		lg.Infow("b2c_callback_duplicate", "originator_conversation_id", correlationID)
		return OutcomeDuplicate, nil
	}

	lg.Infow("b2c_callback_applied",
		"originator_conversation_id", correlationID,
		"status", res.Status,
		"result_code", resultCode)

	s.notifier.Notify(ctx, disbursementNotification(txn, env, res))
	return OutcomeApplied, nil
}

func paymentNotification(txn *models.PaymentRequest, res store.PaymentResolution) *notifier.Notification {
	n := &notifier.Notification{
		Reference:  txn.Reference,
		Amount:     txn.Amount.String(),
		Status:     string(res.Status),
		ResultCode: res.ResultCode,
		ResultDesc: res.ResultDesc,
	}
	if txn.MerchantRequestID != nil {
		n.MerchantRequestID = *txn.MerchantRequestID
	}
	if txn.CheckoutRequestID != nil {
		n.CheckoutRequestID = *txn.CheckoutRequestID
	}
	if res.ReceiptNumber != nil {
		n.MpesaReceiptNumber = *res.ReceiptNumber
	}
	if res.TransactionDate != nil {
		n.TransactionDate = *res.TransactionDate
	}
	return n
}

func disbursementNotification(txn *models.DisbursementRequest, env *daraja.B2CCallbackEnvelope, res store.DisbursementResolution) *notifier.Notification {
	n := &notifier.Notification{
		OriginatorConversationID: txn.OriginatorConversationID,
		Amount:                   txn.Amount.String(),
		Status:                   string(res.Status),
		ResultCode:               res.ResultCode,
		ResultDesc:               res.ResultDesc,
	}
	if env.Result != nil {
		n.MpesaReceiptNumber = env.Result.TransactionID
	}
	return n
}

// saveAudit writes the received-state audit row. The primary key is assigned
// here so finishAudit can move the same row to its terminal status.
func (s *Service) saveAudit(ctx context.Context, kind models.CallbackKind, correlationID string, raw json.RawMessage) *models.CallbackLog {
	entry := &models.CallbackLog{
		ID:            tool.GenerateUUIDV7(),
		Kind:          kind,
		CorrelationID: correlationID,
		ReceivedAt:    time.Now(),
		Data:          datatypes.JSON(raw),
		Status:        models.CallbackLogStatusReceived,
	}
	if tid, ok := ctx.Value("traceID").(string); ok {
		entry.TraceID = tid
	}
	s.audit.Save(ctx, entry)
	return entry
}

func (s *Service) finishAudit(ctx context.Context, entry *models.CallbackLog, outcome Outcome, resErr error) {
	metrics.CallbackOutcomes.WithLabelValues(string(entry.Kind), string(outcome)).Inc()

	done := *entry
	done.Status = models.CallbackLogStatusHandled
	result := map[string]any{"outcome": outcome}
	if resErr != nil {
		done.Status = models.CallbackLogStatusHandleFailed
		result["error"] = resErr.Error()
	}
	resBytes, _ := json.Marshal(result)
	j := datatypes.JSON(resBytes)
	done.Result = &j
	s.audit.Save(ctx, &done)
}
