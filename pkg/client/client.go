// Package client talks to the zone-health HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/scheduler"
)

// Check is one check with its latest outcome.
type Check struct {
	core.Info
	Outcome core.Outcome `json:"outcome"`
}

// Mutation is the answer to an enable, disable or interval change.
type Mutation struct {
	Check     Check  `json:"check"`
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

// APIError is a non-2xx answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *Client) Status(ctx context.Context) (scheduler.Snapshot, error) {
	var snap scheduler.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &snap)
	return snap, err
}

// ListChecks returns every check, or only those with the given status.
func (c *Client) ListChecks(ctx context.Context, status string) ([]Check, error) {
	path := "/api/v1/checks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var resp struct {
		Checks []Check `json:"checks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Checks, nil
}

func (c *Client) Check(ctx context.Context, id string) (Check, error) {
	var check Check
	err := c.do(ctx, http.MethodGet, "/api/v1/checks/"+url.PathEscape(id), nil, &check)
	return check, err
}

// RunAll starts a run of every check. With wait it blocks until the results
// are published and returns them.
func (c *Client) RunAll(ctx context.Context, wait bool) (*scheduler.Snapshot, error) {
	if !wait {
		return nil, c.do(ctx, http.MethodPost, "/api/v1/checks/run", nil, nil)
	}
	var snap scheduler.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/checks/run?wait=true", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) Run(ctx context.Context, id string) (Check, error) {
	var check Check
	err := c.do(ctx, http.MethodPost, "/api/v1/checks/"+url.PathEscape(id)+"/run", nil, &check)
	return check, err
}

func (c *Client) SetActive(ctx context.Context, id string, active bool) (Mutation, error) {
	var m Mutation
	body := map[string]bool{"active": active}
	err := c.do(ctx, http.MethodPut, "/api/v1/checks/"+url.PathEscape(id)+"/active", body, &m)
	return m, err
}

func (c *Client) SetInterval(ctx context.Context, id string, seconds int) (Mutation, error) {
	var m Mutation
	body := map[string]int{"interval_in_seconds": seconds}
	err := c.do(ctx, http.MethodPut, "/api/v1/checks/"+url.PathEscape(id)+"/interval", body, &m)
	return m, err
}

func (c *Client) Deployment(ctx context.Context) (core.Deployment, error) {
	var d core.Deployment
	err := c.do(ctx, http.MethodGet, "/api/v1/deployment", nil, &d)
	return d, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
