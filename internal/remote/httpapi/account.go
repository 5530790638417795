package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"andvaranaut/internal/remote"
)

// MonthlyStat is the per-month aggregate row served by the stats endpoint.
type MonthlyStat struct {
	Month           string    `json:"month"`
	CommuteCount    int       `json:"commuteCount"`
	WalkCount       int       `json:"walkCount"`
	CommuteCost     int       `json:"commuteCost"`
	GeekSeekTimes   int       `json:"geekSeekTimes"`
	GeekSeekAmounts int       `json:"geekSeekAmounts"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account on the remote API.
func (c *Client) Register(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(credentialsPayload{Username: username, Password: password})
	if err != nil {
		return err
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/register", "", payload); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Authenticate exchanges credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, time.Time, error) {
	payload, err := json.Marshal(credentialsPayload{Username: username, Password: password})
	if err != nil {
		return "", time.Time{}, err
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/authenticate", "", payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authenticate: %w", err)
	}
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", time.Time{}, fmt.Errorf("authenticate: decode response: %w", err)
	}
	return resp.Token, resp.ExpiresAt, nil
}

// MonthlyStats fetches the server-side aggregates, newest month first.
func (c *Client) MonthlyStats(ctx context.Context, token string) ([]MonthlyStat, error) {
	if token == "" {
		return nil, nil
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/monthly_stats", token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrFetchFailed, err)
	}
	var stats []MonthlyStat
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrFetchFailed, err)
	}
	return stats, nil
}

// SaveTransitInformation updates the commute unit price on the remote API.
func (c *Client) SaveTransitInformation(ctx context.Context, token string, unitPrice int) error {
	if token == "" {
		return nil
	}
	payload, err := json.Marshal(struct {
		UnitPrice int `json:"unitPrice"`
	}{UnitPrice: unitPrice})
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrSaveFailed, err)
	}
	if _, err := c.doRequest(ctx, http.MethodPut, "/api/transit_information", token, payload); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrSaveFailed, err)
	}
	return nil
}
