package reconciler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/internal/app/service/notifier"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
)

// memStore mimics the real store's compare-and-set semantics in memory so
// races between concurrent callbacks resolve to exactly one winner.
type memStore struct {
	mu       sync.Mutex
	payments map[string]*models.PaymentRequest
	disbs    map[string]*models.DisbursementRequest
}

func newMemStore() *memStore {
	return &memStore{
		payments: map[string]*models.PaymentRequest{},
		disbs:    map[string]*models.DisbursementRequest{},
	}
}

func (m *memStore) FindPaymentByCorrelationID(_ context.Context, checkoutRequestID, merchantRequestID string) (*models.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.CheckoutRequestID != nil && checkoutRequestID != "" && *p.CheckoutRequestID == checkoutRequestID {
			cp := *p
			return &cp, nil
		}
	}
	for _, p := range m.payments {
		if p.MerchantRequestID != nil && merchantRequestID != "" && *p.MerchantRequestID == merchantRequestID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ResolvePayment(_ context.Context, id string, res store.PaymentResolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != models.TransactionStatusPending {
		return false, nil
	}
	p.Status = res.Status
	p.ResultCode = lo.ToPtr(res.ResultCode)
	p.ResultDesc = lo.ToPtr(res.ResultDesc)
	p.MpesaReceiptNumber = res.ReceiptNumber
	p.TransactionDate = res.TransactionDate
	return true, nil
}

func (m *memStore) FindDisbursementByOriginatorID(_ context.Context, originatorConversationID string) (*models.DisbursementRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disbs {
		if d.OriginatorConversationID == originatorConversationID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ResolveDisbursement(_ context.Context, id string, res store.DisbursementResolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disbs[id]
	if !ok || d.Status != models.TransactionStatusPending {
		return false, nil
	}
	d.Status = res.Status
	d.ResultCode = lo.ToPtr(res.ResultCode)
	d.ResultDesc = lo.ToPtr(res.ResultDesc)
	if res.ConversationID != "" {
		d.ConversationID = lo.ToPtr(res.ConversationID)
	}
	return true, nil
}

type memNotifier struct {
	mu   sync.Mutex
	sent []*notifier.Notification
}

func (m *memNotifier) Notify(_ context.Context, n *notifier.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type memQueue struct {
	mu      sync.Mutex
	entries []json.RawMessage
}

func (m *memQueue) Enqueue(_ context.Context, _ models.CallbackKind, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, payload)
	return nil
}

type nopAudit struct{}

func (nopAudit) Save(_ context.Context, _ *models.CallbackLog) {}

// memAudit captures audit writes keyed the way gorm's Save would: one entry
// per primary key, last write wins.
type memAudit struct {
	mu      sync.Mutex
	writes  []models.CallbackLog
	entries map[string]models.CallbackLog
}

func newMemAudit() *memAudit {
	return &memAudit{entries: map[string]models.CallbackLog{}}
}

func (m *memAudit) Save(_ context.Context, entry *models.CallbackLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, *entry)
	m.entries[entry.ID] = *entry
}

func newTestService(st *memStore, n *memNotifier, q *memQueue) *Service {
	return NewService(st, n, q, nopAudit{}, zap.NewNop().Sugar())
}

func pendingPayment(id, checkoutRequestID string) *models.PaymentRequest {
	return &models.PaymentRequest{
		ID:                id,
		Phone:             "254712345678",
		Amount:            decimal.NewFromInt(100),
		Reference:         "Order-77",
		MerchantRequestID: lo.ToPtr("merch-" + id),
		CheckoutRequestID: lo.ToPtr(checkoutRequestID),
		Status:            models.TransactionStatusPending,
	}
}

func stkEnvelope(checkoutRequestID string, resultCode int) *daraja.STKCallbackEnvelope {
	payload := map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"MerchantRequestID": "merch-p1",
				"CheckoutRequestID": checkoutRequestID,
				"ResultCode":        resultCode,
				"ResultDesc":        "desc",
				"CallbackMetadata": map[string]any{
					"Item": []map[string]any{
						{"Name": "MpesaReceiptNumber", "Value": "ABC123"},
						{"Name": "TransactionDate", "Value": 20250309104618},
					},
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	var env daraja.STKCallbackEnvelope
	_ = json.Unmarshal(raw, &env)
	return &env
}

func TestHandleSTKCallbackApplies(t *testing.T) {
	st := newMemStore()
	st.payments["p1"] = pendingPayment("p1", "ws_CO_1")
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	env := stkEnvelope("ws_CO_1", 0)
	raw, _ := json.Marshal(env)

	outcome, err := svc.HandleSTKCallback(context.Background(), env, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	p := st.payments["p1"]
	require.Equal(t, models.TransactionStatusCompleted, p.Status)
	require.NotNil(t, p.MpesaReceiptNumber)
	require.Equal(t, "ABC123", *p.MpesaReceiptNumber)
	require.NotNil(t, p.TransactionDate)
	require.Equal(t, "20250309104618", *p.TransactionDate)

	require.Equal(t, 1, n.count())
	require.Equal(t, "ABC123", n.sent[0].MpesaReceiptNumber)
	require.Equal(t, "completed", n.sent[0].Status)
}

func TestHandleSTKCallbackFailureCodeSkipsReceipt(t *testing.T) {
	st := newMemStore()
	st.payments["p1"] = pendingPayment("p1", "ws_CO_1")
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	env := stkEnvelope("ws_CO_1", 1032)
	raw, _ := json.Marshal(env)

	outcome, err := svc.HandleSTKCallback(context.Background(), env, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	p := st.payments["p1"]
	require.Equal(t, models.TransactionStatusFailed, p.Status)
	require.Nil(t, p.MpesaReceiptNumber)
}

func TestHandleSTKCallbackDuplicateIsNoOp(t *testing.T) {
	st := newMemStore()
	p := pendingPayment("p1", "ws_CO_1")
	p.Status = models.TransactionStatusCompleted
	st.payments["p1"] = p
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	env := stkEnvelope("ws_CO_1", 0)
	raw, _ := json.Marshal(env)

	outcome, err := svc.HandleSTKCallback(context.Background(), env, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Equal(t, 0, n.count())
}

func TestHandleSTKCallbackConcurrentDeliveriesOneWinner(t *testing.T) {
	st := newMemStore()
	st.payments["p1"] = pendingPayment("p1", "ws_CO_1")
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	env := stkEnvelope("ws_CO_1", 0)
	raw, _ := json.Marshal(env)

	const deliveries = 8
	outcomes := make(chan Outcome, deliveries)
	errs := make(chan error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.HandleSTKCallback(context.Background(), env, raw)
			outcomes <- outcome
			errs <- err
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	applied := 0
	for outcome := range outcomes {
		if outcome == OutcomeApplied {
			applied++
		} else {
			require.Equal(t, OutcomeDuplicate, outcome)
		}
	}
	require.Equal(t, 1, applied)
	require.Equal(t, 1, n.count())
}

func TestHandleSTKCallbackMissingIDs(t *testing.T) {
	st := newMemStore()
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	env := &daraja.STKCallbackEnvelope{Body: daraja.STKCallbackBody{StkCallback: &daraja.STKCallback{}}}
	outcome, err := svc.HandleSTKCallback(context.Background(), env, json.RawMessage(`{}`))
	require.Error(t, err)
	require.Equal(t, OutcomeDiscarded, outcome)
	require.Equal(t, 0, n.count())
}

func TestHandleSTKCallbackUnmatchedIsNotRetried(t *testing.T) {
	st := newMemStore()
	q := &memQueue{}
	svc := newTestService(st, &memNotifier{}, q)

	env := stkEnvelope("ws_CO_unknown", 0)
	raw, _ := json.Marshal(env)

	outcome, err := svc.HandleSTKCallback(context.Background(), env, raw)
	require.Error(t, err)
	require.Equal(t, OutcomeNotFound, outcome)
	require.Empty(t, q.entries)
}

func TestHandleSTKCallbackAuditUpdatesSingleRow(t *testing.T) {
	st := newMemStore()
	st.payments["p1"] = pendingPayment("p1", "ws_CO_1")
	audit := newMemAudit()
	svc := NewService(st, &memNotifier{}, &memQueue{}, audit, zap.NewNop().Sugar())

	env := stkEnvelope("ws_CO_1", 0)
	raw, _ := json.Marshal(env)

	outcome, err := svc.HandleSTKCallback(context.Background(), env, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Len(t, audit.writes, 2)
	require.NotEmpty(t, audit.writes[0].ID)
	require.Equal(t, audit.writes[0].ID, audit.writes[1].ID)
	require.Equal(t, models.CallbackLogStatusReceived, audit.writes[0].Status)
	require.Equal(t, models.CallbackLogStatusHandled, audit.writes[1].Status)
	require.Nil(t, audit.writes[0].Result)
	require.NotNil(t, audit.writes[1].Result)

	// Same primary key means the terminal write lands on the received row.
	require.Len(t, audit.entries, 1)
	row := audit.entries[audit.writes[0].ID]
	require.Equal(t, models.CallbackLogStatusHandled, row.Status)
	require.Equal(t, "ws_CO_1", row.CorrelationID)
	require.JSONEq(t, string(raw), string(row.Data))
}

func TestHandleSTKCallbackAuditRecordsFailure(t *testing.T) {
	audit := newMemAudit()
	svc := NewService(newMemStore(), &memNotifier{}, &memQueue{}, audit, zap.NewNop().Sugar())

	env := stkEnvelope("ws_CO_unknown", 0)
	raw, _ := json.Marshal(env)

	_, err := svc.HandleSTKCallback(context.Background(), env, raw)
	require.Error(t, err)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Len(t, audit.writes, 2)
	require.Equal(t, audit.writes[0].ID, audit.writes[1].ID)
	require.Equal(t, models.CallbackLogStatusHandleFailed, audit.writes[1].Status)
	require.Len(t, audit.entries, 1)
}

func b2cEnvelope(originatorID string, resultCode int) (*daraja.B2CCallbackEnvelope, json.RawMessage) {
	payload := map[string]any{
		"Result": map[string]any{
			"ResultType":               0,
			"ResultCode":               resultCode,
			"ResultDesc":               "desc",
			"OriginatorConversationID": originatorID,
			"ConversationID":           "AG_1",
			"TransactionID":            "NLJ41HAY6Q",
		},
	}
	raw, _ := json.Marshal(payload)
	var env daraja.B2CCallbackEnvelope
	_ = json.Unmarshal(raw, &env)
	return &env, raw
}

func TestHandleB2CCallbackApplies(t *testing.T) {
	st := newMemStore()
	st.disbs["d1"] = &models.DisbursementRequest{
		ID:                       "d1",
		OriginatorConversationID: "HAVEN-AAA1111-1",
		PhoneNumber:              "254712345678",
		Amount:                   decimal.NewFromInt(250),
		Status:                   models.TransactionStatusPending,
	}
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	env, raw := b2cEnvelope("HAVEN-AAA1111-1", 0)
	outcome, err := svc.HandleB2CCallback(context.Background(), models.CallbackKindB2CResult, env, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	d := st.disbs["d1"]
	require.Equal(t, models.TransactionStatusCompleted, d.Status)
	require.NotNil(t, d.ConversationID)
	require.Equal(t, "AG_1", *d.ConversationID)
	require.Equal(t, 1, n.count())
	require.Equal(t, "NLJ41HAY6Q", n.sent[0].MpesaReceiptNumber)
}

func TestHandleB2CCallbackUnmatchedIsDeferred(t *testing.T) {
	st := newMemStore()
	q := &memQueue{}
	svc := newTestService(st, &memNotifier{}, q)

	env, raw := b2cEnvelope("HAVEN-ZZZ0000-9", 0)
	outcome, err := svc.HandleB2CCallback(context.Background(), models.CallbackKindB2CResult, env, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeNotFound, outcome)
	require.Len(t, q.entries, 1)
	require.JSONEq(t, string(raw), string(q.entries[0]))
}

func TestHandleB2CCallbackMissingCorrelationIDIsDiscarded(t *testing.T) {
	st := newMemStore()
	q := &memQueue{}
	svc := newTestService(st, &memNotifier{}, q)

	var env daraja.B2CCallbackEnvelope
	outcome, err := svc.HandleB2CCallback(context.Background(), models.CallbackKindB2CResult, &env, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeDiscarded, outcome)
	require.Empty(t, q.entries)
}

func TestReprocessB2CSharesDuplicateSuppression(t *testing.T) {
	st := newMemStore()
	st.disbs["d1"] = &models.DisbursementRequest{
		ID:                       "d1",
		OriginatorConversationID: "HAVEN-AAA1111-1",
		Amount:                   decimal.NewFromInt(250),
		Status:                   models.TransactionStatusPending,
	}
	n := &memNotifier{}
	svc := newTestService(st, n, &memQueue{})

	_, raw := b2cEnvelope("HAVEN-AAA1111-1", 0)

	outcome, err := svc.ReprocessB2C(context.Background(), models.CallbackKindB2CResult, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	outcome, err = svc.ReprocessB2C(context.Background(), models.CallbackKindB2CResult, raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Equal(t, 1, n.count())
}

func TestReprocessB2CUndecodablePayload(t *testing.T) {
	svc := newTestService(newMemStore(), &memNotifier{}, &memQueue{})

	outcome, err := svc.ReprocessB2C(context.Background(), models.CallbackKindB2CResult, json.RawMessage(`not json`))
	require.Error(t, err)
	require.Equal(t, OutcomeDiscarded, outcome)
}
