// ABOUTME: HTTP client for a single remote agent: discovery, unary tasks, SSE task streams.
// ABOUTME: Task calls never return errors; failures come back as failed responses or events.

package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// CardPath is the primary discovery path.
	CardPath = "/.well-known/agent.json"
	// LegacyCardPath is tried when CardPath returns 404.
	LegacyCardPath = "/.well-known/agent-card"

	TaskPath       = "/task"
	TaskStreamPath = "/task/stream"

	// DefaultTimeout bounds every call when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// DoneSentinel terminates an SSE task stream.
	DoneSentinel = "[DONE]"

	maxSSELine = 1 << 20
)

// ErrClosed is returned by discovery after Close.
var ErrClosed = errors.New("client closed")

// ClientParams configures a Client.
type ClientParams struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one agent. It is safe for concurrent use; every call is
// its own HTTP request on the shared transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	closed     atomic.Bool
}

// NewClient creates a client for the agent at params.BaseURL.
func NewClient(params ClientParams) *Client {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(params.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "a2a", "url", params.BaseURL),
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetAgentCard fetches the agent card, falling back to LegacyCardPath on 404.
func (c *Client) GetAgentCard(ctx context.Context) (*AgentCard, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	card, status, err := c.fetchCard(ctx, CardPath)
	if status == http.StatusNotFound {
		c.logger.Debug("agent card not found, trying legacy path")
		card, _, err = c.fetchCard(ctx, LegacyCardPath)
	}
	if err != nil {
		return nil, err
	}
	card.applyDefaults()
	return card, nil
}

func (c *Client) fetchCard(ctx context.Context, path string) (*AgentCard, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating card request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, fmt.Errorf("agent card returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding agent card: %w", err)
	}
	return &card, resp.StatusCode, nil
}

// SendTask submits a task and waits for its result.
func (c *Client) SendTask(ctx context.Context, task *TaskRequest) *TaskResponse {
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	resp, err := c.post(ctx, TaskPath, task, "application/json")
	if err != nil {
		c.logger.Warn("task request failed", "task_id", task.ID, "error", err)
		return FailedResponse(task.ID, err.Error())
	}
	defer resp.Body.Close()

	var envelope TaskEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return FailedResponse(task.ID, fmt.Sprintf("decoding task response: %v", err))
	}
	if envelope.Result == nil {
		return FailedResponse(task.ID, "task response has no result")
	}

	result := envelope.Result
	out := &TaskResponse{
		ID:        result.ID,
		State:     result.Status.State,
		Message:   result.Status.Message,
		Error:     result.Status.Error,
		Artifacts: result.Artifacts,
	}
	if out.ID == "" {
		out.ID = task.ID
	}
	if out.State == "" {
		out.State = StateCompleted
	}
	return out
}

// SendTaskStreaming submits a task to the streaming endpoint. The returned
// channel yields events in arrival order and is always closed. A transport
// failure produces exactly one failed event.
func (c *Client) SendTaskStreaming(ctx context.Context, task *TaskRequest) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		if task.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, task.Timeout)
			defer cancel()
		}

		resp, err := c.post(ctx, TaskStreamPath, task, "text/event-stream")
		if err != nil {
			c.logger.Warn("stream request failed", "task_id", task.ID, "error", err)
			out <- FailedEvent(err.Error())
			return
		}
		defer resp.Body.Close()

		if err := c.readStream(resp.Body, out); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				c.logger.Debug("stream closed by caller", "task_id", task.ID)
				return
			}
			c.logger.Warn("stream read failed", "task_id", task.ID, "error", err)
			out <- FailedEvent(err.Error())
		}
	}()

	return out
}

// readStream forwards every data line until the sentinel or EOF.
func (c *Client) readStream(body io.Reader, out chan<- StreamEvent) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == DoneSentinel {
			out <- StreamEvent{Final: true, Done: true}
			return nil
		}

		var ev StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn("skipping malformed stream line", "data", data, "error", err)
			continue
		}
		out <- ev
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, task *TaskRequest, accept string) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshaling task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending task: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Close releases idle connections. Later calls fail with ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}
