// Package platform holds the HTTP clients for the game platform API: room
// creation, chat delivery, the owner directory, and OAuth token refresh.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Room is the subset of the platform's room resource the executor records.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Owner is the subset of the platform's user record the executor consults.
type Owner struct {
	ID           string `json:"id"`
	IsAuthorized bool   `json:"is_authorized"`
}

// Client talks to the platform REST API on behalf of a delegated owner.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// CreateRoom creates a multiplayer room with the given configuration. The
// config blob is passed through verbatim; the platform validates it.
func (c *Client) CreateRoom(ctx context.Context, roomConfig map[string]any, accessToken string) (*Room, error) {
	var room Room
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/rooms", roomConfig, accessToken, &room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	c.logger.Info("room created",
		zap.String("room_id", room.ID),
		zap.String("room_name", room.Name))

	return &room, nil
}

// SendMessages posts chat messages into a room in order.
func (c *Client) SendMessages(ctx context.Context, roomID, ownerID string, messages []string, accessToken string) error {
	payload := map[string]any{
		"owner_id": ownerID,
		"messages": messages,
	}
	url := fmt.Sprintf("%s/rooms/%s/chat", c.baseURL, roomID)
	if err := c.doJSON(ctx, http.MethodPost, url, payload, accessToken, nil); err != nil {
		return fmt.Errorf("failed to send chat messages: %w", err)
	}
	return nil
}

// GetOwner fetches the owner's current record. Only the authorization flag
// matters to the executor; privileges can be revoked between scheduling and
// execution.
func (c *Client) GetOwner(ctx context.Context, ownerID string) (*Owner, error) {
	var owner Owner
	url := fmt.Sprintf("%s/users/%s", c.baseURL, ownerID)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, "", &owner); err != nil {
		return nil, fmt.Errorf("failed to fetch owner %s: %w", ownerID, err)
	}
	return &owner, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, accessToken string, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
