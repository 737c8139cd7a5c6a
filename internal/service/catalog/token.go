package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

// refreshSkew renews the cached token this long before its actual expiry so
// an in-flight request never carries a token that dies mid-request.
const refreshSkew = 30 * time.Second

// AuthConfig holds the OAuth client-credentials settings.
type AuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	Scope        string
}

// TokenSource fetches and caches OAuth access tokens using the client
// credentials grant. Safe for concurrent use; a refresh is performed by one
// caller while the rest wait.
type TokenSource struct {
	cfg    AuthConfig
	client *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource creates a TokenSource. A nil httpClient falls back to a
// default with a 15 second timeout.
func NewTokenSource(cfg AuthConfig, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TokenSource{
		cfg:    cfg,
		client: httpClient,
	}
}

// Token returns a valid access token, fetching a new one when the cached
// token is absent or within refreshSkew of expiring.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiry.Add(-refreshSkew)) {
		return ts.token, nil
	}

	token, expiry, err := ts.fetch(ctx)
	if err != nil {
		return "", err
	}

	ts.token = token
	ts.expiry = expiry

	applog.WithComponentAndFields(component, applog.Fields{
		"token":   applog.MaskSensitiveData(token),
		"expires": expiry.Format(time.RFC3339),
	}).Debug("obtained new access token")

	return ts.token, nil
}

// Invalidate discards the cached token. Called when the API answers 401
// despite a token we believed valid, e.g. after server-side revocation.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.token = ""
	ts.expiry = time.Time{}
}

func (ts *TokenSource) fetch(ctx context.Context) (string, time.Time, error) {
	payload := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     ts.cfg.ClientID,
		"client_secret": ts.cfg.ClientSecret,
		"audience":      ts.cfg.Audience,
	}
	if ts.cfg.Scope != "" {
		payload["scope"] = ts.cfg.Scope
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.Internal, "failed to encode token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.Internal, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.Unavailable, "token request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.Unavailable, "failed to read token response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, apperrors.Newf(apperrors.Unauthorized, "token endpoint returned status %s", resp.Status)
	}

	parsed := gjson.ParseBytes(respBody)
	token := parsed.Get("access_token").String()
	if token == "" {
		return "", time.Time{}, apperrors.New(apperrors.Unauthorized, "token response did not contain an access_token")
	}

	expiresIn := parsed.Get("expires_in").Int()
	if expiresIn <= 0 {
		return "", time.Time{}, apperrors.New(apperrors.Unauthorized, "token response did not contain a positive expires_in")
	}

	return token, time.Now().Add(time.Duration(expiresIn) * time.Second), nil
}

// String implements fmt.Stringer without leaking the cached token.
func (ts *TokenSource) String() string {
	return fmt.Sprintf("TokenSource(%s)", ts.cfg.TokenURL)
}
