// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Authenticator supplies the bearer token for a request.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// StaticKey is an API key used verbatim as the bearer token.
type StaticKey string

// Token returns the key.
func (k StaticKey) Token(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", ErrNotConfigured
	}
	return key, nil
}

// =============================================================================
// GIGACHAT OAUTH
// =============================================================================

const (
	// DefaultGigaChatOAuthURL is the token endpoint.
	DefaultGigaChatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"

	// DefaultGigaChatScope is the personal-use API scope.
	DefaultGigaChatScope = "GIGACHAT_API_PERS"

	// tokenRefreshMargin renews a token this long before it expires.
	tokenRefreshMargin = time.Minute
)

// ErrMalformedCredentials means the credentials are not client_id:client_secret.
var ErrMalformedCredentials = errors.New("credentials must be in 'client_id:client_secret' format")

// GigaChatAuth exchanges client credentials for short-lived access tokens
// and caches them until shortly before expiry. It is safe for concurrent use.
type GigaChatAuth struct {
	authKey    string
	oauthURL   string
	scope      string
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewGigaChatAuth parses credentials ("client_id:client_secret") and returns
// an authenticator. oauthURL and scope may be empty for defaults.
func NewGigaChatAuth(credentials, oauthURL, scope string, httpClient *http.Client) (*GigaChatAuth, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(credentials), ":")
	if !ok || id == "" || secret == "" {
		return nil, ErrMalformedCredentials
	}
	if oauthURL == "" {
		oauthURL = DefaultGigaChatOAuthURL
	}
	if scope == "" {
		scope = DefaultGigaChatScope
	}
	if httpClient == nil {
		httpClient = newHTTPClient(30*time.Second, false)
	}
	return &GigaChatAuth{
		authKey:    base64.StdEncoding.EncodeToString([]byte(id + ":" + secret)),
		oauthURL:   oauthURL,
		scope:      scope,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// tokenResponse is the OAuth endpoint body. expires_at is Unix milliseconds.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Token returns a cached token or fetches a new one.
func (a *GigaChatAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Add(tokenRefreshMargin).Before(a.expires) {
		return a.token, nil
	}

	form := url.Values{"scope": {a.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+a.authKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: token endpoint returned %s", ErrAuthFailed, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return "", &APIError{Provider: "gigachat-oauth", Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}

	a.token = tr.AccessToken
	a.expires = time.UnixMilli(tr.ExpiresAt)
	if tr.ExpiresAt == 0 {
		a.expires = a.now().Add(30 * time.Minute)
	}
	return a.token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (a *GigaChatAuth) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.expires = time.Time{}
}
