package daraja

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultTokenTTL = 3600 * time.Second

type fetchTokenFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// tokenSource is the process-wide access-token cache. Concurrent callers that
// hit an expired cache may race to fetch a new token; the refresh is
// idempotent and side-effect-free against the gateway, so the last writer
// wins harmlessly.
type tokenSource struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	fetch fetchTokenFunc
	now   func() time.Time
}

func newTokenSource(fetch fetchTokenFunc, now func() time.Time) *tokenSource {
	return &tokenSource{fetch: fetch, now: now}
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.token != "" && t.now().Before(t.expiresAt) {
		token := t.token
		t.mu.Unlock()
		return token, nil
	}
	t.mu.Unlock()

	token, ttl, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.token = token
	t.expiresAt = t.now().Add(ttl)
	t.mu.Unlock()
	return token, nil
}

type authResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// fetchToken performs the client-credentials grant with HTTP basic auth.
func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Errorw("daraja_auth_failed", "err", err)
		return "", 0, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("%w: read response: %v", ErrAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Errorw("daraja_auth_rejected", "status", resp.StatusCode, "body", string(raw))
		return "", 0, fmt.Errorf("%w: oauth endpoint returned %d", ErrAuth, resp.StatusCode)
	}

	var body authResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", 0, fmt.Errorf("%w: decode response: %v", ErrAuth, err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", ErrAuth)
	}

	// The gateway reports expires_in as a string of seconds; fall back to an
	// hour when it is absent or unparsable.
	ttl := defaultTokenTTL
	if secs, err := body.ExpiresIn.Int64(); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	return body.AccessToken, ttl, nil
}
