// ABOUTME: Task and session calls against the supervisor
// ABOUTME: Tasks go through the same A2A client the supervisor uses for its own agents

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/gateway"
)

func newTask(sessionID, text string) *a2a.TaskRequest {
	return &a2a.TaskRequest{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Message:   *a2a.NewTextMessage("user", text),
	}
}

// SendTask runs text as one task and waits for the result.
func (c *Client) SendTask(ctx context.Context, sessionID, text string) *a2a.TaskResponse {
	return c.tasks.SendTask(ctx, newTask(sessionID, text))
}

// StreamTask runs text as one task and yields its events as they arrive.
// The channel is always closed.
func (c *Client) StreamTask(ctx context.Context, sessionID, text string) <-chan a2a.StreamEvent {
	return c.tasks.SendTaskStreaming(ctx, newTask(sessionID, text))
}

// Card returns the supervisor's agent card.
func (c *Client) Card(ctx context.Context) (*a2a.AgentCard, error) {
	return c.tasks.GetAgentCard(ctx)
}

// Session returns a session's history. limit <= 0 returns all of it.
func (c *Client) Session(ctx context.Context, id string, limit int) (*gateway.SessionResponse, error) {
	path := "/sessions/" + url.PathEscape(id)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var sess gateway.SessionResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession forgets a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}
