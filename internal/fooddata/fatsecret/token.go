package fatsecret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/resilience"
)

// AuthError means the token endpoint rejected the credentials or stayed
// unreachable after retries. Auth failures are configuration errors, not
// transient ones, so callers should not retry them.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed: token endpoint returned %d", e.StatusCode)
	}
	return "authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// TokenSourceConfig holds configuration for the OAuth2 token source.
type TokenSourceConfig struct {
	// ClientID and ClientSecret are the client-credentials pair (required).
	ClientID     string
	ClientSecret string

	// TokenURL is the OAuth2 token endpoint (required).
	TokenURL string

	// HTTPClient is the HTTP client for token requests (optional).
	HTTPClient *http.Client

	// SafetyMargin is subtracted from expires_in so a token is replaced
	// before it actually expires. Default: 60 seconds.
	SafetyMargin time.Duration

	// Logger for token operations.
	Logger zerolog.Logger
}

// TokenSource obtains and caches an OAuth2 client-credentials access token,
// refreshing it proactively before expiry. Safe for concurrent use; a refresh
// holds the lock so concurrent callers share a single token request.
type TokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	safetyMargin time.Duration
	logger       zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a token source with the given configuration.
func NewTokenSource(cfg TokenSourceConfig) *TokenSource {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	safetyMargin := cfg.SafetyMargin
	if safetyMargin == 0 {
		safetyMargin = 60 * time.Second
	}
	return &TokenSource{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		httpClient:   httpClient,
		safetyMargin: safetyMargin,
		logger:       cfg.Logger,
	}
}

// Token returns a valid access token, fetching a new one when the cached token
// is past its safety margin. Network failures are retried twice with linearly
// increasing delay; a non-2xx response fails immediately with *AuthError.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt) {
		return ts.token, nil
	}

	resp, err := resilience.Retry(ctx, &resilience.LinearBackOff{Interval: time.Second}, 2,
		func(ctx context.Context) (*tokenResponse, error) {
			return ts.fetch(ctx)
		})
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", authErr
		}
		return "", &AuthError{Err: err}
	}

	ts.token = resp.AccessToken
	ts.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - ts.safetyMargin)
	ts.logger.Debug().Time("expires_at", ts.expiresAt).Msg("access token refreshed")

	return ts.token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// fetch performs one client-credentials exchange. A non-2xx response is
// permanent: bad credentials do not become good by retrying.
func (ts *TokenSource) fetch(ctx context.Context) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "basic")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("creating token request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(ts.clientID, ts.clientSecret)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		// Network-level failure, retryable.
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.Permanent(&AuthError{StatusCode: resp.StatusCode})
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decoding token response: %w", err))
	}
	if tr.AccessToken == "" {
		return nil, resilience.Permanent(&AuthError{Err: fmt.Errorf("empty access_token in response")})
	}

	return &tr, nil
}
