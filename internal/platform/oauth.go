package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RefreshResult is the outcome of an OAuth refresh-token grant.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresher exchanges refresh tokens at the platform's OAuth token endpoint.
type Refresher struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewRefresher(tokenURL, clientID, clientSecret string, timeout time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Refresh performs the refresh-token grant. Providers may rotate the refresh
// token; when the response omits one, the caller keeps the old token.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", r.clientID)
	form.Set("client_secret", r.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, data)
	}

	var result RefreshResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned empty access token")
	}
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}

	r.logger.Debug("access token refreshed",
		zap.Int64("expires_in", result.ExpiresIn))

	return &result, nil
}
