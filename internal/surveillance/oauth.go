package surveillance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Credentials are an OAuth2 client-credentials pair for the surveillance provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// TokenCache obtains and caches an OAuth2 bearer token via the
// client_credentials grant, refreshing 60 seconds before expiry.
// It is exclusively owned by the poller task — no external mutation.
type TokenCache struct {
	tokenURL string
	creds    Credentials
	client   *http.Client
	log      zerolog.Logger

	mu           sync.Mutex
	token        string
	expiresAt    time.Time
	disabled     bool // set after a non-400 4xx response; stays anonymous until restart
}

// NewTokenCache creates a token cache. If creds is the zero value, Token
// always returns "" (anonymous access).
func NewTokenCache(tokenURL string, creds Credentials, client *http.Client, log zerolog.Logger) *TokenCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenCache{tokenURL: tokenURL, creds: creds, client: client, log: log.With().Str("component", "surveillance-oauth").Logger()}
}

// Token returns a valid bearer token, refreshing if necessary. It returns ""
// (anonymous access) if no credentials are configured, acquisition fails, or
// acquisition was previously disabled by a non-400 4xx response.
func (c *TokenCache) Token(ctx context.Context) string {
	if c.creds.ClientID == "" || c.creds.ClientSecret == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return ""
	}
	if c.token != "" && time.Now().Before(c.expiresAt.Add(-60*time.Second)) {
		return c.token
	}

	token, expiresIn, err := c.fetch(ctx, false)
	if err != nil {
		c.log.Warn().Err(err).Msg("OAuth token acquisition failed, degrading to anonymous access")
		return ""
	}
	c.token = token
	c.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return c.token
}

// fetch performs the token request. On HTTP 400 it retries once using HTTP
// Basic auth instead of form-encoded credentials, since some OpenSky-style
// token endpoints reject form-encoded client secrets.
func (c *TokenCache) fetch(ctx context.Context, basicRetry bool) (token string, expiresIn int, err error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if !basicRetry {
		form.Set("client_id", c.creds.ClientID)
		form.Set("client_secret", c.creds.ClientSecret)
	}
	if c.creds.Scope != "" {
		form.Set("scope", c.creds.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicRetry {
		req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest && !basicRetry {
		return c.fetch(ctx, true)
	}
	if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusBadRequest {
		c.disabled = true
		return "", 0, fmt.Errorf("token endpoint returned %d, disabling authenticated requests until restart", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	expires, _ := strconv.Atoi(body.ExpiresIn.String())
	return body.AccessToken, expires, nil
}
