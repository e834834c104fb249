// Package client is a Go client for the webmondiag control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/webmondiag/webmondiag/pkg/types"
)

// Client is the control API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a function that configures the Client.
type Option func(*Client)

// New creates a new control API client. A base URL without a scheme is
// taken as plain HTTP.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// Health checks the server health.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp["status"] != "ok" {
		return fmt.Errorf("webmondiag: unhealthy: %q", resp["status"])
	}
	return nil
}

// State returns the current endpoint state.
func (c *Client) State(ctx context.Context) (*types.Status, error) {
	var st types.Status
	if err := c.doRequest(ctx, http.MethodGet, "/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Apply sends a partial change. A refused change returns an *APIError
// whose State holds the state that stayed in effect.
func (c *Client) Apply(ctx context.Context, ch types.Change) (*types.Status, error) {
	var st types.Status
	if err := c.doRequest(ctx, http.MethodPatch, "/state", ch, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Toggle starts a stopped endpoint or stops a running one.
func (c *Client) Toggle(ctx context.Context) (*types.Status, error) {
	return c.post(ctx, "/server/toggle")
}

// Stop stops the endpoint.
func (c *Client) Stop(ctx context.Context) (*types.Status, error) {
	return c.post(ctx, "/server/stop")
}

// Reset restores every default.
func (c *Client) Reset(ctx context.Context) (*types.Status, error) {
	return c.post(ctx, "/reset")
}

// Events lists journal entries. An empty session lists every run;
// "current" selects the run serving the API.
func (c *Client) Events(ctx context.Context, session string, limit int) (*types.EventList, error) {
	q := url.Values{}
	if session != "" {
		q.Set("session", session)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list types.EventList
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) post(ctx context.Context, path string) (*types.Status, error) {
	var st types.Status
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// doRequest performs an HTTP request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("webmondiag: failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("webmondiag: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("webmondiag: failed to decode response: %w", err)
		}
	}

	return nil
}

// parseError parses an error response from the API.
func parseError(resp *http.Response) error {
	var errResp types.ErrorResponse

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		// If we can't parse the error, use the raw body
		errResp.Error = strings.TrimSpace(string(body))
		if errResp.Error == "" {
			errResp.Error = resp.Status
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error,
		State:      errResp.State,
	}
}
