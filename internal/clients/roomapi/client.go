package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the room API: authoritative state snapshots, round lists,
// claim submissions, and the lightweight time/enrollment endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// New creates a room API client against baseURL. authToken, when non-empty,
// rides along as a bearer token on every request.
func New(baseURL, authToken string) *Client {
	c := &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		headers: map[string]string{
			"Accept": "application/json",
		},
	}
	if authToken != "" {
		c.headers["Authorization"] = "Bearer " + authToken
	}
	return c
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// GetRoomState fetches the full authoritative state for a room. Both the
// reconnect coordinator and the polling fallback use this one endpoint so
// every sync trigger merges identical data.
func (c *Client) GetRoomState(ctx context.Context, roomID string) (*RoomState, error) {
	var state RoomState
	endpoint := fmt.Sprintf("/api/rooms/%s/state", roomID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &state); err != nil {
		return nil, fmt.Errorf("get room state: %w", err)
	}
	return &state, nil
}

// GetRounds fetches the per-round lifecycle list for the advance guard.
func (c *Client) GetRounds(ctx context.Context, roomID string) ([]RoundState, error) {
	var resp struct {
		Rounds []RoundState `json:"rounds"`
	}
	endpoint := fmt.Sprintf("/api/rooms/%s/rounds", roomID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("get rounds: %w", err)
	}
	return resp.Rounds, nil
}

// SubmitClaim submits a bingo claim for server validation.
func (c *Client) SubmitClaim(ctx context.Context, roomID string, req ClaimRequest) (*ClaimResponse, error) {
	var resp ClaimResponse
	endpoint := fmt.Sprintf("/api/rooms/%s/claims", roomID)
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("submit claim: %w", err)
	}
	return &resp, nil
}

// GetEnrolled fetches the enrolled-player count for the room.
func (c *Client) GetEnrolled(ctx context.Context, roomID string) (int, error) {
	var resp struct {
		Enrolled int `json:"enrolled"`
	}
	endpoint := fmt.Sprintf("/api/rooms/%s/players", roomID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return 0, fmt.Errorf("get enrolled players: %w", err)
	}
	return resp.Enrolled, nil
}

// GetServerTime fetches the server clock, used to estimate the client/server
// offset that anchors countdown timers.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp struct {
		Now time.Time `json:"now"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/time", nil, &resp); err != nil {
		return time.Time{}, fmt.Errorf("get server time: %w", err)
	}
	return resp.Now, nil
}
