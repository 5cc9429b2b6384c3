// ABOUTME: Delegation engine: picks one connected agent per task and relays its answer as events.
// ABOUTME: Guarantees a single terminal event per task, whatever the agents or policy do.

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent"
	"github.com/2389/coven-supervisor/internal/routing"
	"github.com/2389/coven-supervisor/internal/store"
)

const (
	// DefaultName identifies the supervisor to downstream agents.
	DefaultName = "supervisor_agent"

	// DefaultHistoryLimit is how many prior turns routing policies see.
	DefaultHistoryLimit = 20

	MsgAnalyzing    = "Analyzing your request..."
	MsgNoSuitable   = "No suitable agent available to handle this request."
	msgDelegatingTo = "Delegating to %s agent..."
	msgHandledBy    = "[Handled by %s]"
)

// Registry is what the engine needs from the agent registry.
type Registry interface {
	EnsureInitialized(ctx context.Context)
	Connected() []agent.Descriptor
	Get(name string) (agent.Remote, bool)
}

// SessionStore is what the engine needs from history storage.
type SessionStore interface {
	AddSessionMessage(ctx context.Context, msg *store.Message) error
	GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*store.Message, error)
}

// Params configures an Engine.
type Params struct {
	Registry     Registry
	Policy       routing.Policy
	Sessions     SessionStore // optional
	DefaultAgent string
	Name         string
	HistoryLimit int
	Logger       *slog.Logger
}

// Engine routes tasks to agents and bridges their results.
type Engine struct {
	registry     Registry
	policy       routing.Policy
	sessions     SessionStore
	defaultAgent string
	name         string
	historyLimit int
	logger       *slog.Logger
}

// New creates an Engine.
func New(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := p.Name
	if name == "" {
		name = DefaultName
	}
	limit := p.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Engine{
		registry:     p.Registry,
		policy:       p.Policy,
		sessions:     p.Sessions,
		defaultAgent: p.DefaultAgent,
		name:         name,
		historyLimit: limit,
		logger:       logger.With("component", "supervisor"),
	}
}

// Name returns the name the supervisor forwards tasks under.
func (e *Engine) Name() string {
	return e.name
}

// emitter enforces that nothing follows the terminal event.
type emitter struct {
	out    chan<- TaskEvent
	done   bool
	logger *slog.Logger
}

func (em *emitter) emit(ev TaskEvent) {
	if em.done {
		em.logger.Debug("dropping event after terminal", "kind", ev.Kind, "state", ev.State)
		return
	}
	em.out <- ev
	if ev.Final {
		em.done = true
	}
}

// Process handles one task. The returned channel yields events in order,
// ends with exactly one Final event and is always closed. Callers must
// drain it.
func (e *Engine) Process(ctx context.Context, task *a2a.TaskRequest) <-chan TaskEvent {
	out := make(chan TaskEvent, 16)
	logger := e.logger.With("task_id", task.ID, "session_id", task.SessionID)

	go func() {
		defer close(out)
		em := &emitter{out: out, logger: logger}

		defer func() {
			if p := recover(); p != nil {
				logger.Error("task processing panicked", "panic", p)
				em.emit(errorEvent(task.ID, fmt.Sprintf("Error: %v", p)))
			}
			if !em.done {
				em.emit(errorEvent(task.ID, "Error: task ended without a result"))
			}
		}()

		e.process(ctx, task, em, logger)
	}()

	return out
}

func (e *Engine) process(ctx context.Context, task *a2a.TaskRequest, em *emitter, logger *slog.Logger) {
	e.registry.EnsureInitialized(ctx)

	text := task.Message.JoinText(" ")
	logger.Info("=== TASK RECEIVED ===", "text_len", len(text))

	recordedID := e.record(ctx, task.SessionID, store.RoleUser, "user", text)
	em.emit(statusEvent(task.ID, a2a.StateRunning, MsgAnalyzing))

	history := e.history(ctx, task.SessionID, recordedID)

	connected := e.registry.Connected()
	if len(connected) == 0 {
		logger.Warn("no connected agents")
		em.emit(statusEvent(task.ID, a2a.StateFailed, MsgNoSuitable))
		return
	}

	name, ok := e.selectAgent(ctx, text, history, connected, logger)
	if !ok {
		em.emit(statusEvent(task.ID, a2a.StateFailed, MsgNoSuitable))
		return
	}

	conn, found := e.registry.Get(name)
	if !found || !conn.IsConnected() {
		em.emit(errorEvent(task.ID, fmt.Sprintf("Error: agent '%s' is no longer connected", name)))
		return
	}

	em.emit(TaskEvent{
		TaskID:  task.ID,
		Kind:    EventStatus,
		State:   a2a.StateRunning,
		Message: fmt.Sprintf(msgDelegatingTo, name),
		Agent:   name,
	})

	downstream := &a2a.TaskRequest{
		ID:        uuid.NewString(),
		SessionID: task.SessionID,
		Message: a2a.Message{
			Role:     "user",
			Parts:    []a2a.Part{a2a.TextPart(text)},
			Metadata: map[string]any{"forwarded_by": e.name},
		},
		Timeout: task.Timeout,
	}
	logger.Info("=== DELEGATING ===", "agent", name, "downstream_id", downstream.ID, "streaming", conn.SupportsStreaming())

	var state a2a.TaskState
	if conn.SupportsStreaming() {
		state = e.delegateStreaming(ctx, task.ID, name, conn, downstream, em)
	} else {
		state = e.delegateUnary(ctx, task.ID, name, conn, downstream, em)
	}
	logger.Info("=== TASK FINISHED ===", "agent", name, "state", state)

	if state == a2a.StateCompleted {
		e.record(ctx, task.SessionID, store.RoleAssistant, e.name, fmt.Sprintf(msgHandledBy, name))
	}
}

// selectAgent asks the policy and validates its answer against the
// connected agents. An explicit None is honoured; anything else unknown
// falls back to the default agent, then the first connected agent.
func (e *Engine) selectAgent(ctx context.Context, text string, history []routing.HistoryMessage, connected []agent.Descriptor, logger *slog.Logger) (string, bool) {
	candidates := make([]routing.Candidate, len(connected))
	for i, d := range connected {
		candidates[i] = routing.Candidate{Name: d.Name, Description: d.Description}
	}

	selected, err := e.policy.Select(ctx, &routing.Request{Text: text, History: history, Agents: candidates})
	if err != nil {
		logger.Warn("routing policy failed, using first connected agent", "error", err, "agent", connected[0].Name)
		return connected[0].Name, true
	}

	selected = strings.TrimSpace(selected)
	if strings.EqualFold(selected, routing.None) {
		logger.Info("routing policy found no suitable agent")
		return "", false
	}
	for _, c := range candidates {
		if strings.EqualFold(c.Name, selected) {
			logger.Debug("routing policy selected agent", "agent", c.Name)
			return c.Name, true
		}
	}

	logger.Warn("routing policy selected unknown agent", "selected", selected)
	if e.defaultAgent != "" {
		for _, c := range candidates {
			if c.Name == e.defaultAgent {
				return c.Name, true
			}
		}
	}
	return candidates[0].Name, true
}

func (e *Engine) delegateUnary(ctx context.Context, taskID, name string, conn agent.Remote, down *a2a.TaskRequest, em *emitter) a2a.TaskState {
	resp := conn.SendTask(ctx, down)

	for _, art := range resp.Artifacts {
		ev := artifactEvent(taskID, art)
		ev.Agent = name
		em.emit(ev)
	}

	state := terminalState(resp.State)
	msg := resp.Text()
	if state == a2a.StateFailed {
		msg = failureMessage(name, resp.State, resp.Error, msg)
	}
	em.emit(e.terminal(taskID, name, state, msg))
	return state
}

func (e *Engine) delegateStreaming(ctx context.Context, taskID, name string, conn agent.Remote, down *a2a.TaskRequest, em *emitter) a2a.TaskState {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var final a2a.TaskState
	var lastText string

	finish := func(state a2a.TaskState, msg string) {
		final = state
		em.emit(e.terminal(taskID, name, state, msg))
		cancel()
	}

	// The peer may hold the stream open after its final event; cancelling
	// closes the body and the remaining events are discarded.
	for ev := range conn.SendTaskStreaming(streamCtx, down) {
		if em.done {
			continue
		}

		switch {
		case ev.Result == nil && ev.Failed():
			finish(a2a.StateFailed, failureMessage(name, a2a.StateFailed, ev.Error, ""))

		case ev.Result != nil:
			for _, art := range ev.Result.Artifacts {
				aev := artifactEvent(taskID, art)
				aev.Agent = name
				em.emit(aev)
			}
			status := ev.Result.Status
			text := status.Message.JoinText("")
			if text != "" {
				lastText = text
			}

			if ev.Final || status.State.Terminal() {
				state := terminalState(status.State)
				msg := text
				if msg == "" {
					msg = lastText
				}
				if state == a2a.StateFailed {
					msg = failureMessage(name, status.State, status.Error, text)
				}
				finish(state, msg)
				continue
			}

			em.emit(TaskEvent{TaskID: taskID, Kind: EventStatus, State: a2a.StateRunning, Message: text, Agent: name})

		case ev.Final || ev.Done:
			finish(a2a.StateCompleted, lastText)
		}
	}

	if !em.done {
		final = a2a.StateFailed
		em.emit(e.terminal(taskID, name, final, fmt.Sprintf("Agent %s stream ended without a final event", name)))
	}
	return final
}

// terminalState folds a peer's final state into completed or failed.
// A cancelled peer did not finish the work, so it counts as failed.
func terminalState(peer a2a.TaskState) a2a.TaskState {
	switch peer {
	case a2a.StateFailed, a2a.StateCancelled:
		return a2a.StateFailed
	default:
		return a2a.StateCompleted
	}
}

func failureMessage(name string, peer a2a.TaskState, errText, text string) string {
	switch {
	case errText != "":
		return errText
	case text != "":
		return text
	case peer == a2a.StateCancelled:
		return fmt.Sprintf("Agent %s cancelled the request", name)
	default:
		return fmt.Sprintf("Agent %s failed to handle the request", name)
	}
}

func (e *Engine) terminal(taskID, name string, state a2a.TaskState, msg string) TaskEvent {
	ev := statusEvent(taskID, state, msg)
	ev.Agent = name
	ev.Final = true
	return ev
}

// record appends to session history and returns the stored message id.
// Failures are logged only.
func (e *Engine) record(ctx context.Context, sessionID, role, author, content string) string {
	if e.sessions == nil || sessionID == "" {
		return ""
	}
	msg := &store.Message{SessionID: sessionID, Role: role, Author: author, Content: content}
	if err := e.sessions.AddSessionMessage(ctx, msg); err != nil {
		e.logger.Warn("recording session message", "session_id", sessionID, "role", role, "error", err)
		return ""
	}
	return msg.ID
}

// history returns prior turns, excluding the message recorded for the
// current task. Failures yield an empty history.
func (e *Engine) history(ctx context.Context, sessionID, excludeID string) []routing.HistoryMessage {
	if e.sessions == nil || sessionID == "" {
		return nil
	}
	msgs, err := e.sessions.GetSessionMessages(ctx, sessionID, e.historyLimit+1)
	if err != nil {
		e.logger.Warn("loading session history", "session_id", sessionID, "error", err)
		return nil
	}

	history := make([]routing.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if excludeID != "" && m.ID == excludeID {
			continue
		}
		history = append(history, routing.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	if len(history) > e.historyLimit {
		history = history[len(history)-e.historyLimit:]
	}
	return history
}
