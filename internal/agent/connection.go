// ABOUTME: Represents one remote agent reached over HTTP and tracks its handshake state.
// ABOUTME: Wraps the a2a client with connect/refuse semantics and streaming fallback.

package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/coven-supervisor/internal/a2a"
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// errNotConnected is the failure text for calls on an unusable connection.
const errNotConnected = "Not connected to agent"

// Remote is what the registry and the delegation engine need from a
// connected agent. *Connection is the HTTP implementation.
type Remote interface {
	Connect(ctx context.Context) bool
	IsConnected() bool
	Card() *a2a.AgentCard
	SupportsStreaming() bool
	SendTask(ctx context.Context, task *a2a.TaskRequest) *a2a.TaskResponse
	SendTaskStreaming(ctx context.Context, task *a2a.TaskRequest) <-chan a2a.StreamEvent
	Close() error
}

// Connection is a handle to one remote agent.
type Connection struct {
	URL string

	client *a2a.Client
	mu     sync.RWMutex
	state  State
	failed bool
	card   *a2a.AgentCard
	logger *slog.Logger
}

// ConnectionParams configures a Connection.
type ConnectionParams struct {
	URL    string
	Client *a2a.Client
	Logger *slog.Logger
}

// NewConnection creates a disconnected Connection. Call Connect before use.
func NewConnection(params ConnectionParams) *Connection {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := params.Client
	if client == nil {
		client = a2a.NewClient(a2a.ClientParams{BaseURL: params.URL, Logger: logger})
	}
	return &Connection{
		URL:    params.URL,
		client: client,
		state:  StateDisconnected,
		logger: logger.With("url", params.URL),
	}
}

// Connect performs the discovery handshake. It reports success and never
// returns an error; a failed handshake leaves this instance disconnected for good.
func (c *Connection) Connect(ctx context.Context) bool {
	c.mu.Lock()
	switch {
	case c.state == StateConnected:
		c.mu.Unlock()
		return true
	case c.failed, c.state == StateConnecting:
		c.mu.Unlock()
		return false
	}
	c.state = StateConnecting
	c.mu.Unlock()

	card, err := c.client.GetAgentCard(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateDisconnected
		c.failed = true
		c.logger.Warn("agent handshake failed", "error", err)
		return false
	}
	c.card = card
	c.state = StateConnected
	c.logger.Debug("agent handshake complete", "name", card.Name, "streaming", card.Capabilities.Streaming)
	return true
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the handshake succeeded and Close has not run.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Card returns a copy of the agent card, or nil before a successful handshake.
func (c *Connection) Card() *a2a.AgentCard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.card == nil {
		return nil
	}
	card := *c.card
	return &card
}

// SupportsStreaming reports the streaming capability from the card.
func (c *Connection) SupportsStreaming() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.card != nil && c.card.Capabilities.Streaming
}

// SendTask submits a unary task.
func (c *Connection) SendTask(ctx context.Context, task *a2a.TaskRequest) *a2a.TaskResponse {
	if !c.IsConnected() {
		return a2a.FailedResponse(task.ID, errNotConnected)
	}
	return c.client.SendTask(ctx, task)
}

// SendTaskStreaming submits a streaming task. Peers without streaming get one
// unary call whose result is delivered as a single final event.
func (c *Connection) SendTaskStreaming(ctx context.Context, task *a2a.TaskRequest) <-chan a2a.StreamEvent {
	if !c.IsConnected() {
		out := make(chan a2a.StreamEvent, 1)
		out <- a2a.FailedEvent(errNotConnected)
		close(out)
		return out
	}
	if c.SupportsStreaming() {
		return c.client.SendTaskStreaming(ctx, task)
	}

	out := make(chan a2a.StreamEvent, 1)
	go func() {
		defer close(out)
		out <- responseEvent(c.client.SendTask(ctx, task))
	}()
	return out
}

// responseEvent wraps a unary result as a final stream event.
func responseEvent(resp *a2a.TaskResponse) a2a.StreamEvent {
	if resp.State == a2a.StateFailed {
		return a2a.FailedEvent(resp.Error)
	}
	return a2a.StreamEvent{
		Final: true,
		Result: &a2a.Task{
			ID:        resp.ID,
			Status:    a2a.TaskStatus{State: resp.State, Message: resp.Message},
			Artifacts: resp.Artifacts,
		},
	}
}

// Close releases the transport. Safe to call more than once and on a
// connection that never connected.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.state = StateDisconnected
	c.failed = true
	c.mu.Unlock()
	return c.client.Close()
}
