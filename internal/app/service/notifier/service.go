package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/pkg/config"
	"github.com/havenpay/mpesa-bridge/pkg/logctx"
)

const notifyTimeout = 10 * time.Second

// Notification is the flattened final-state summary pushed to the consuming
// e-shop application.
type Notification struct {
	Reference                string `json:"reference,omitempty"`
	MerchantRequestID        string `json:"merchant_request_id,omitempty"`
	CheckoutRequestID        string `json:"checkout_request_id,omitempty"`
	OriginatorConversationID string `json:"originator_conversation_id,omitempty"`
	MpesaReceiptNumber       string `json:"mpesa_receipt_number,omitempty"`
	Amount                   string `json:"amount"`
	TransactionDate          string `json:"transaction_date,omitempty"`
	Status                   string `json:"status"`
	ResultCode               int    `json:"result_code"`
	ResultDesc               string `json:"result_desc"`
}

// Service pushes transaction outcomes downstream. Delivery is best-effort:
// failures are logged and swallowed, and never affect transaction state.
type Service struct {
	webhookURL string
	httpc      *http.Client
	log        *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		webhookURL: cfg.Eshop.WebhookURL,
		httpc:      &http.Client{Timeout: notifyTimeout},
		log:        log,
	}
}

func (s *Service) Notify(ctx context.Context, n *Notification) {
	lg := logctx.FromCtx(ctx, s.log)
	if s.webhookURL == "" || n == nil {
		return
	}

	body, err := json.Marshal(n)
	if err != nil {
		lg.Errorw("eshop_notify_encode_failed", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		lg.Errorw("eshop_notify_failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		lg.Errorw("eshop_notify_failed", "err", err, "url", s.webhookURL)
		return
	}
	defer resp.Body.Close()

	lg.Infow("eshop_notified", "status", resp.StatusCode, "reference", n.Reference)
}

var Module = fx.Options(
	fx.Provide(New),
)
