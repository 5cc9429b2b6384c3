// ABOUTME: Wire types for the agent-to-agent task protocol: cards, messages, tasks.
// ABOUTME: Shared by the HTTP client, the supervisor's own endpoints and the fake agent.

package a2a

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	StatePending       TaskState = "pending"
	StateRunning       TaskState = "running"
	StateCompleted     TaskState = "completed"
	StateFailed        TaskState = "failed"
	StateCancelled     TaskState = "cancelled"
	StateInputRequired TaskState = "input_required"
)

// Terminal reports whether no further events follow this state.
func (s TaskState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Capabilities advertised in an agent card.
type Capabilities struct {
	Streaming bool `json:"streaming"`
}

// AgentCard is the self-description an agent serves at its discovery path.
type AgentCard struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Version      string       `json:"version"`
	URL          string       `json:"url,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// applyDefaults fills in what a sparse card leaves out.
func (c *AgentCard) applyDefaults() {
	if c.Name == "" {
		c.Name = "unknown"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
}

// Part is one piece of a message. A part is text-bearing when Text is set.
type Part struct {
	Type string          `json:"type,omitempty"`
	Text *string         `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TextPart builds a text-bearing part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: &text}
}

// Message is a role plus ordered parts.
type Message struct {
	Role     string         `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role, text string) *Message {
	return &Message{Role: role, Parts: []Part{TextPart(text)}}
}

// JoinText joins every text-bearing part with sep, preserving order.
func (m *Message) JoinText(sep string) string {
	if m == nil {
		return ""
	}
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Text != nil {
			texts = append(texts, *p.Text)
		}
	}
	return strings.Join(texts, sep)
}

// TaskRequest is what gets POSTed to /task and /task/stream.
type TaskRequest struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Message   Message        `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Timeout bounds this request in addition to the client timeout. Zero
	// means the client timeout alone applies.
	Timeout time.Duration `json:"-"`
}

// TaskStatus is the state block of a task result.
type TaskStatus struct {
	State   TaskState `json:"state,omitempty"`
	Message *Message  `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Artifact is an output attached to a task.
type Artifact struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Task is the result object returned by an agent.
type Task struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId,omitempty"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// TaskEnvelope wraps a Task on the wire.
type TaskEnvelope struct {
	Result *Task `json:"result"`
}

// TaskResponse is the client-side view of a unary task result.
type TaskResponse struct {
	ID        string
	State     TaskState
	Message   *Message
	Error     string
	Artifacts []Artifact
}

// Text returns the concatenated text of the response message.
func (r *TaskResponse) Text() string {
	return r.Message.JoinText("")
}

// FailedResponse builds the failed response used for transport errors.
func FailedResponse(id, errMsg string) *TaskResponse {
	return &TaskResponse{ID: id, State: StateFailed, Error: errMsg}
}

// StreamEvent is one decoded "data:" line of a task stream.
type StreamEvent struct {
	Result *Task     `json:"result,omitempty"`
	Final  bool      `json:"final,omitempty"`
	State  TaskState `json:"state,omitempty"`
	Error  string    `json:"error,omitempty"`

	// Done is set on the event synthesized for the [DONE] sentinel.
	Done bool `json:"-"`
}

// Failed reports whether the event carries a failure.
func (e StreamEvent) Failed() bool {
	if e.Error != "" || e.State == StateFailed {
		return true
	}
	return e.Result != nil && e.Result.Status.State == StateFailed
}

// FailedEvent builds the single event emitted when a stream cannot proceed.
func FailedEvent(errMsg string) StreamEvent {
	return StreamEvent{State: StateFailed, Error: errMsg, Final: true}
}
