package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/pkg/config"
)

const requestTimeout = 30 * time.Second

// Client issues authenticated requests against the Daraja API. Safe for
// concurrent use; the only shared state is the token cache.
type Client struct {
	cfg     config.MpesaConfig
	baseURL string
	httpc   *http.Client
	log     *zap.SugaredLogger
	token   *tokenSource
	cred    *credentialGenerator
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) (*Client, error) {
	// Loading the encryption certificate here makes a bad cert path a startup
	// failure instead of a first-disbursement failure.
	cred, err := newCredentialGenerator(cfg.Mpesa.CertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway certificate: %w", err)
	}

	c := &Client{
		cfg:     cfg.Mpesa,
		baseURL: cfg.Mpesa.BaseURL(),
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     log,
		cred:    cred,
	}
	c.token = newTokenSource(c.fetchToken, time.Now)
	return c, nil
}

// Authorize returns a cached bearer token, refreshing it synchronously when
// expired.
func (c *Client) Authorize(ctx context.Context) (string, error) {
	return c.token.Token(ctx)
}

// postJSON sends an authenticated JSON POST and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	token, err := c.Authorize(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrGatewayRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Errorw("daraja_request_failed", "path", path, "status", resp.StatusCode, "body", string(raw))
		return fmt.Errorf("%w: %s returned %d", ErrGatewayRequest, path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayRequest, err)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
