// ABOUTME: A2A task endpoints: the supervisor's agent card, unary tasks and SSE task streams
// ABOUTME: Translates engine events into the same wire format the supervisor's own peers speak

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/supervisor"
)

var (
	errInvalidJSON    = errors.New("invalid JSON body")
	errMissingMessage = errors.New("message with at least one part is required")
)

func (g *Gateway) registerTaskRoutes(e *echo.Echo) {
	e.GET(a2a.CardPath, g.handleAgentCard)
	e.POST(a2a.TaskPath, g.handleTask)
	e.POST(a2a.TaskStreamPath, g.handleTaskStream)
}

// card describes the supervisor to its own callers.
func (g *Gateway) card() a2a.AgentCard {
	url := g.config.Server.PublicURL
	if url == "" {
		url = "http://" + g.config.Server.HTTPAddr
	}
	return a2a.AgentCard{
		Name:         g.engine.Name(),
		Description:  g.config.Server.Description,
		Version:      Version,
		URL:          url,
		Capabilities: a2a.Capabilities{Streaming: true},
	}
}

// handleAgentCard serves GET /.well-known/agent.json.
func (g *Gateway) handleAgentCard(c echo.Context) error {
	return c.JSON(http.StatusOK, g.card())
}

// parseTaskRequest decodes a task, generating an id when the caller sent none.
func parseTaskRequest(c echo.Context) (*a2a.TaskRequest, error) {
	var task a2a.TaskRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&task); err != nil {
		return nil, errInvalidJSON
	}
	if len(task.Message.Parts) == 0 {
		return nil, errMissingMessage
	}
	if task.ID = strings.TrimSpace(task.ID); task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Message.Role == "" {
		task.Message.Role = "user"
	}
	return &task, nil
}

// acceptTask parses the request and rejects ids seen within the dedupe
// window. On rejection the error response has already been written.
func (g *Gateway) acceptTask(c echo.Context) (*a2a.TaskRequest, bool, error) {
	task, err := parseTaskRequest(c)
	if err != nil {
		return nil, false, sendJSONError(c, http.StatusBadRequest, err.Error())
	}
	if g.dedupe.Seen(task.ID) {
		g.logger.Warn("duplicate task rejected", "task_id", task.ID)
		return nil, false, sendJSONError(c, http.StatusConflict, fmt.Sprintf("task %s already submitted", task.ID))
	}
	return task, true, nil
}

// process starts the engine detached from the request so a disconnecting
// caller does not leave session history half written.
func (g *Gateway) process(c echo.Context, task *a2a.TaskRequest) <-chan supervisor.TaskEvent {
	ctx := context.WithoutCancel(c.Request().Context())
	return g.engine.Process(ctx, task)
}

// handleTask serves POST /task: the whole event sequence folded into one result.
func (g *Gateway) handleTask(c echo.Context) error {
	task, ok, err := g.acceptTask(c)
	if !ok {
		return err
	}

	var events []supervisor.TaskEvent
	for ev := range g.process(c, task) {
		events = append(events, ev)
	}

	return c.JSON(http.StatusOK, a2a.TaskEnvelope{Result: supervisor.Result(task.ID, task.SessionID, events)})
}

// handleTaskStream serves POST /task/stream as server-sent events, one
// "data:" line per engine event followed by the [DONE] sentinel.
func (g *Gateway) handleTaskStream(c echo.Context) error {
	task, ok, err := g.acceptTask(c)
	if !ok {
		return err
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	events := g.process(c, task)
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("stream client disconnected", "task_id", task.ID)
			go drain(events)
			return nil

		case ev, ok := <-events:
			if !ok {
				_, _ = fmt.Fprintf(w, "data: %s\n\n", a2a.DoneSentinel)
				w.Flush()
				return nil
			}
			g.writeSSEData(w, streamEvent(task.SessionID, ev))
			w.Flush()
		}
	}
}

func drain(events <-chan supervisor.TaskEvent) {
	for range events {
	}
}

// streamEvent converts an engine event into the wire stream event.
func streamEvent(sessionID string, ev supervisor.TaskEvent) a2a.StreamEvent {
	result := &a2a.Task{ID: ev.TaskID, SessionID: sessionID}

	switch ev.Kind {
	case supervisor.EventArtifact:
		result.Status.State = a2a.StateRunning
		if ev.Artifact != nil {
			result.Artifacts = []a2a.Artifact{*ev.Artifact}
		}
		return a2a.StreamEvent{Result: result}

	case supervisor.EventError:
		result.Status = a2a.TaskStatus{
			State:   a2a.StateFailed,
			Message: a2a.NewTextMessage("agent", ev.Message),
			Error:   ev.Message,
		}
		return a2a.StreamEvent{Result: result, Final: true, State: a2a.StateFailed, Error: ev.Message}

	default:
		result.Status.State = ev.State
		if ev.Message != "" {
			result.Status.Message = a2a.NewTextMessage("agent", ev.Message)
		}
		if ev.State == a2a.StateFailed {
			result.Status.Error = ev.Message
		}
		return a2a.StreamEvent{Result: result, Final: ev.Final}
	}
}

// writeSSEData writes a single "data:" line.
func (g *Gateway) writeSSEData(w http.ResponseWriter, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func sendJSONError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
