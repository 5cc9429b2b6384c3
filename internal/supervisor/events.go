// ABOUTME: Task events emitted by the delegation engine while a request is handled.
// ABOUTME: Every Process call ends with exactly one event whose Final flag is set.

package supervisor

import "github.com/2389/coven-supervisor/internal/a2a"

// EventKind distinguishes the three kinds of task event.
type EventKind string

const (
	EventStatus   EventKind = "status"
	EventArtifact EventKind = "artifact"
	EventError    EventKind = "error"
)

// TaskEvent is one progress update for a task. Status events carry a state
// and optional message text; artifact events carry an artifact; error events
// are terminal failures with a message.
type TaskEvent struct {
	TaskID   string        `json:"task_id"`
	Kind     EventKind     `json:"kind"`
	State    a2a.TaskState `json:"state,omitempty"`
	Message  string        `json:"message,omitempty"`
	Artifact *a2a.Artifact `json:"artifact,omitempty"`
	Agent    string        `json:"agent,omitempty"`
	Final    bool          `json:"final"`
}

func statusEvent(taskID string, state a2a.TaskState, msg string) TaskEvent {
	return TaskEvent{TaskID: taskID, Kind: EventStatus, State: state, Message: msg, Final: state.Terminal()}
}

func errorEvent(taskID, msg string) TaskEvent {
	return TaskEvent{TaskID: taskID, Kind: EventError, State: a2a.StateFailed, Message: msg, Final: true}
}

func artifactEvent(taskID string, art a2a.Artifact) TaskEvent {
	return TaskEvent{TaskID: taskID, Kind: EventArtifact, Artifact: &art}
}

// Result folds a finished event sequence into the wire result a unary
// caller receives: the terminal state and message plus any artifacts.
func Result(taskID, sessionID string, events []TaskEvent) *a2a.Task {
	task := &a2a.Task{ID: taskID, SessionID: sessionID, Status: a2a.TaskStatus{State: a2a.StateFailed}}
	for _, ev := range events {
		if ev.Kind == EventArtifact && ev.Artifact != nil {
			task.Artifacts = append(task.Artifacts, *ev.Artifact)
		}
		if !ev.Final {
			continue
		}
		task.Status.State = ev.State
		if ev.Message == "" {
			continue
		}
		if ev.State == a2a.StateFailed {
			task.Status.Error = ev.Message
		}
		task.Status.Message = a2a.NewTextMessage("agent", ev.Message)
	}
	return task
}
