// ABOUTME: HTTP client for a running coven-supervisor's management and task API
// ABOUTME: Decodes the gateway's JSON bodies and turns {"error": ...} responses into APIError

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/coven-supervisor/internal/a2a"
)

// DefaultTimeout bounds management calls. Task calls use Params.TaskTimeout.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the supervisor.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supervisor returned %d: %s", e.StatusCode, e.Message)
}

// Params configures a Client.
type Params struct {
	BaseURL     string
	Timeout     time.Duration
	TaskTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client calls one supervisor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tasks      *a2a.Client
}

// New creates a Client for the supervisor at params.BaseURL.
func New(params Params) *Client {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(params.BaseURL, "/")
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tasks: a2a.NewClient(a2a.ClientParams{
			BaseURL: baseURL,
			Timeout: params.TaskTimeout,
			Logger:  params.Logger,
		}),
	}
}

// Close releases the task client.
func (c *Client) Close() error {
	return c.tasks.Close()
}

// do sends body as JSON (when non-nil) and decodes a 2xx response into out
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// Health returns nil when GET /health answers 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
