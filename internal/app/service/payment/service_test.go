package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
)

type stubGateway struct {
	pushResp  *daraja.STKPushResponse
	pushErr   error
	pushPhone string
	pushCalls int

	queryResp  *daraja.STKQueryResponse
	queryErr   error
	queryCalls int
}

func (g *stubGateway) InitiateSTKPush(_ context.Context, phone, reference string, amount decimal.Decimal) (*daraja.STKPushResponse, error) {
	g.pushCalls++
	g.pushPhone = phone
	return g.pushResp, g.pushErr
}

func (g *stubGateway) QuerySTKStatus(_ context.Context, checkoutRequestID string) (*daraja.STKQueryResponse, error) {
	g.queryCalls++
	return g.queryResp, g.queryErr
}

type stubPaymentStore struct {
	created  *models.PaymentRequest
	record   *models.PaymentRequest
	findErr  error
	resolved *store.PaymentResolution
	applied  bool
}

func (s *stubPaymentStore) CreatePayment(_ context.Context, p *models.PaymentRequest) error {
	p.ID = "p1"
	s.created = p
	return nil
}

func (s *stubPaymentStore) FindPaymentByReference(_ context.Context, reference string) (*models.PaymentRequest, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	cp := *s.record
	return &cp, nil
}

func (s *stubPaymentStore) ResolvePayment(_ context.Context, id string, res store.PaymentResolution) (bool, error) {
	s.resolved = &res
	return s.applied, nil
}

func newPaymentService(g *stubGateway, st *stubPaymentStore) *Service {
	return NewService(g, st, zap.NewNop().Sugar())
}

func TestInitiateNormalizesPhoneAndPersistsPending(t *testing.T) {
	g := &stubGateway{pushResp: &daraja.STKPushResponse{
		MerchantRequestID: "merch-1",
		CheckoutRequestID: "ws_CO_1",
		CustomerMessage:   "Success. Request accepted for processing",
	}}
	st := &stubPaymentStore{}
	svc := newPaymentService(g, st)

	res, err := svc.Initiate(context.Background(), InitiateRequest{
		Phone:     "0712345678",
		Amount:    decimal.NewFromInt(150),
		Reference: "Order-9",
	})
	require.NoError(t, err)
	require.Equal(t, "254712345678", g.pushPhone)
	require.Equal(t, "p1", res.PaymentID)
	require.Equal(t, "ws_CO_1", res.CheckoutRequestID)

	require.NotNil(t, st.created)
	require.Equal(t, models.TransactionStatusPending, st.created.Status)
	require.Equal(t, "254712345678", st.created.Phone)
	require.Equal(t, "Order-9", st.created.Reference)
	require.Equal(t, "ws_CO_1", *st.created.CheckoutRequestID)
}

func TestInitiateDefaultsReference(t *testing.T) {
	g := &stubGateway{pushResp: &daraja.STKPushResponse{CheckoutRequestID: "ws_CO_1"}}
	st := &stubPaymentStore{}
	svc := newPaymentService(g, st)

	res, err := svc.Initiate(context.Background(), InitiateRequest{
		Phone:  "0712345678",
		Amount: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.Reference, "Payment-"))
}

func TestInitiateRejectsBadInput(t *testing.T) {
	g := &stubGateway{}
	svc := newPaymentService(g, &stubPaymentStore{})

	_, err := svc.Initiate(context.Background(), InitiateRequest{Phone: "123", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrValidation)

	require.Equal(t, 0, g.pushCalls)
}

func TestInitiatePropagatesGatewayError(t *testing.T) {
	g := &stubGateway{pushErr: daraja.ErrGatewayRequest}
	st := &stubPaymentStore{}
	svc := newPaymentService(g, st)

	_, err := svc.Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, daraja.ErrGatewayRequest)
	require.Nil(t, st.created)
}

func TestCheckStatusNotFound(t *testing.T) {
	svc := newPaymentService(&stubGateway{}, &stubPaymentStore{findErr: store.ErrNotFound})

	_, err := svc.CheckStatus(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckStatusTerminalRecordSkipsGateway(t *testing.T) {
	g := &stubGateway{}
	st := &stubPaymentStore{record: &models.PaymentRequest{
		ID:                "p1",
		Reference:         "Order-9",
		Amount:            decimal.NewFromInt(100),
		CheckoutRequestID: lo.ToPtr("ws_CO_1"),
		Status:            models.TransactionStatusCompleted,
	}}
	svc := newPaymentService(g, st)

	res, err := svc.CheckStatus(context.Background(), "Order-9")
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, res.Payment.Status)
	require.Equal(t, 0, g.queryCalls)
}

func TestCheckStatusDegradesOnQueryFailure(t *testing.T) {
	g := &stubGateway{queryErr: errors.New("connection refused")}
	st := &stubPaymentStore{record: &models.PaymentRequest{
		ID:                "p1",
		Reference:         "Order-9",
		Amount:            decimal.NewFromInt(100),
		CheckoutRequestID: lo.ToPtr("ws_CO_1"),
		Status:            models.TransactionStatusPending,
	}}
	svc := newPaymentService(g, st)

	res, err := svc.CheckStatus(context.Background(), "Order-9")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, models.TransactionStatusPending, res.Payment.Status)
}

func TestCheckStatusResolvesDefinitiveLiveResult(t *testing.T) {
	g := &stubGateway{queryResp: &daraja.STKQueryResponse{
		ResultCode: "0",
		ResultDesc: "The service request is processed successfully.",
	}}
	st := &stubPaymentStore{
		record: &models.PaymentRequest{
			ID:                "p1",
			Reference:         "Order-9",
			Amount:            decimal.NewFromInt(100),
			CheckoutRequestID: lo.ToPtr("ws_CO_1"),
			Status:            models.TransactionStatusPending,
		},
		applied: true,
	}
	svc := newPaymentService(g, st)

	res, err := svc.CheckStatus(context.Background(), "Order-9")
	require.NoError(t, err)
	require.NotNil(t, st.resolved)
	require.Equal(t, models.TransactionStatusCompleted, st.resolved.Status)
	require.Equal(t, models.TransactionStatusCompleted, res.Payment.Status)
}

func TestCheckStatusWithoutCheckoutID(t *testing.T) {
	st := &stubPaymentStore{record: &models.PaymentRequest{
		ID:        "p1",
		Reference: "Order-9",
		Amount:    decimal.NewFromInt(100),
		Status:    models.TransactionStatusPending,
	}}
	svc := newPaymentService(&stubGateway{}, st)

	_, err := svc.CheckStatus(context.Background(), "Order-9")
	require.ErrorIs(t, err, ErrValidation)
}
