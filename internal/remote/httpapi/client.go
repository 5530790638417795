// Package httpapi is the HTTP adapter of the remote gateway ports.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"andvaranaut/internal/core"
	"andvaranaut/internal/remote"
)

const defaultTimeout = 30 * time.Second

// Client talks to the calendar persistence API with a bearer token per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ remote.Gateway = (*Client)(nil)

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// CalendarEvents fetches the day records of the month window. An empty token
// means no data is available and yields an empty result without touching the
// network.
func (c *Client) CalendarEvents(ctx context.Context, token string, month core.MonthKey) ([]core.DayRecord, error) {
	if token == "" {
		return nil, nil
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/date_events?currentMonth="+url.QueryEscape(string(month)), token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrFetchFailed, err)
	}
	days, err := decodeDayRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrFetchFailed, err)
	}
	return days, nil
}

// SaveCalendarEvents persists the dated day records of the month window.
// Padding days are a client-side grid artifact and are not sent.
func (c *Client) SaveCalendarEvents(ctx context.Context, token string, month core.MonthKey, days []core.DayRecord) error {
	if token == "" {
		return nil
	}
	dated := make([]core.DayRecord, 0, len(days))
	for _, d := range days {
		if !d.IsPadding() {
			dated = append(dated, d)
		}
	}
	payload, err := encodeDayRecords(dated)
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrSaveFailed, err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/date_events?currentMonth="+url.QueryEscape(string(month)), token, payload); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrSaveFailed, err)
	}
	return nil
}

// TransitInformation fetches the commute unit price and last-modified time.
func (c *Client) TransitInformation(ctx context.Context, token string) (core.TransitInformation, error) {
	if token == "" {
		return core.TransitInformation{}, nil
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/transit_information", token, nil)
	if err != nil {
		return core.TransitInformation{}, fmt.Errorf("%w: %w", remote.ErrFetchFailed, err)
	}
	info, err := decodeTransit(body)
	if err != nil {
		return core.TransitInformation{}, fmt.Errorf("%w: %w", remote.ErrFetchFailed, err)
	}
	return info, nil
}

// doRequest performs a request with bearer auth and returns the body of a
// 2xx response.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return data, nil
}
