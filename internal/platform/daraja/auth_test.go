package daraja

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/pkg/config"
)

func TestTokenSourceCachesUntilExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	fetches := 0
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		fetches++
		return fmt.Sprintf("token-%d", fetches), time.Hour, nil
	}

	ts := newTokenSource(fetch, clock)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", token)

	// Within TTL: served from cache.
	now = now.Add(30 * time.Minute)
	token, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", token)
	require.Equal(t, 1, fetches)

	// Past TTL: refreshed.
	now = now.Add(31 * time.Minute)
	token, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-2", token)
	require.Equal(t, 2, fetches)
}

func TestTokenSourceFetchErrorDoesNotPoisonCache(t *testing.T) {
	now := time.Unix(1700000000, 0)
	fail := true
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		if fail {
			return "", 0, ErrAuth
		}
		return "token-ok", time.Hour, nil
	}

	ts := newTokenSource(fetch, func() time.Time { return now })

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrAuth)

	fail = false
	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-ok", token)
}

func TestFetchToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)
		require.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "abc123", "expires_in": "3599"}`)
	}))
	defer srv.Close()

	c := &Client{
		cfg:     config.MpesaConfig{ConsumerKey: "key", ConsumerSecret: "secret"},
		baseURL: srv.URL,
		httpc:   srv.Client(),
		log:     zap.NewNop().Sugar(),
	}

	token, ttl, err := c.fetchToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", token)
	require.Equal(t, 3599*time.Second, ttl)
}

func TestFetchTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &Client{
		cfg:     config.MpesaConfig{ConsumerKey: "bad", ConsumerSecret: "bad"},
		baseURL: srv.URL,
		httpc:   srv.Client(),
		log:     zap.NewNop().Sugar(),
	}

	_, _, err := c.fetchToken(context.Background())
	require.ErrorIs(t, err, ErrAuth)
}
