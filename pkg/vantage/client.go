// Package vantage is a Go SDK for the vantage-server HTTP API.
package vantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vantage/internal/domain"
)

// Result is the backtest record returned by the server.
type Result = domain.BacktestResult

// BacktestParams are the optional query parameters of /backtest/demo. Zero
// values are omitted so the server applies its defaults.
type BacktestParams struct {
	Symbol    string
	Window    int
	AltWindow int
	Days      int
	UseReal   bool
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vantage: HTTP %d: %s", e.StatusCode, e.Detail)
}

// Client provides a Go SDK for interacting with the vantage-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new vantage API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health returns the server's reported status, "ok" when healthy.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Backtest runs GET /backtest/demo.
func (c *Client) Backtest(ctx context.Context, p BacktestParams) (*Result, error) {
	q := url.Values{}
	if p.Symbol != "" {
		q.Set("symbol", p.Symbol)
	}
	if p.Window != 0 {
		q.Set("window", strconv.Itoa(p.Window))
	}
	if p.AltWindow != 0 {
		q.Set("alt_window", strconv.Itoa(p.AltWindow))
	}
	if p.Days != 0 {
		q.Set("days", strconv.Itoa(p.Days))
	}
	if p.UseReal {
		q.Set("use_real", "true")
	}

	var res Result
	if err := c.get(ctx, "/backtest/demo", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &e) == nil && e.Detail != "" {
			apiErr.Detail = e.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
