package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"TaskAgent/backend/go/internal/config"
	"TaskAgent/backend/go/pkg/circuitbreaker"
)

// Client wraps http.Client with optional circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a Client. timeout bounds each request, including the
// time the agent spends executing a synchronous task.
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration) (*Client, error) {
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	if !cfg.Enabled {
		return c, nil
	}
	breaker, err := createCircuitBreaker(cfg)
	if err != nil {
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// Do executes req. Status codes >= 500 count as breaker failures; the
// response is still returned to the caller in that case.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}
	var resp *http.Response
	err := c.breaker.Execute(func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server error: received status code %d", resp.StatusCode)
		}
		return nil
	})
	if resp != nil && resp.StatusCode >= http.StatusInternalServerError {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// PostJSON sends body as JSON and decodes the JSON reply into out. A
// non-empty bearer token is sent in the Authorization header.
func (c *Client) PostJSON(ctx context.Context, url, bearer string, body, out interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, bearer, out)
}

// GetJSON fetches url and decodes the JSON reply into out.
func (c *Client) GetJSON(ctx context.Context, url, bearer string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	return c.send(req, bearer, out)
}

func (c *Client) send(req *http.Request, bearer string, out interface{}) (int, error) {
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
		}
	}
	return resp.StatusCode, nil
}
