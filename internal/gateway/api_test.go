// ABOUTME: Tests for the supervisor's A2A endpoints: agent card, unary tasks and SSE streams.
// ABOUTME: Streams are read back with the same client the supervisor uses for its own agents.

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/supervisor"
)

func taskBody(id, sessionID, text string) map[string]any {
	return map[string]any{
		"id":        id,
		"sessionId": sessionID,
		"message": map[string]any{
			"role":  "user",
			"parts": []map[string]any{{"type": "text", "text": text}},
		},
	}
}

func TestAgentCard(t *testing.T) {
	tg := newTestGateway(t, "", nil)

	rec := tg.do(t, http.MethodGet, "/.well-known/agent.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.Equal(t, "supervisor_agent", card.Name)
	assert.Equal(t, Version, card.Version)
	assert.True(t, card.Capabilities.Streaming)
	assert.Equal(t, "http://0.0.0.0:8000", card.URL)
}

func TestHandleTask(t *testing.T) {
	t.Run("routes to the selected agent", func(t *testing.T) {
		tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})

		rec := tg.do(t, http.MethodPost, "/task", taskBody("t-1", "s-1", "hello"))
		require.Equal(t, http.StatusOK, rec.Code)

		var env a2a.TaskEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		require.NotNil(t, env.Result)
		assert.Equal(t, "t-1", env.Result.ID)
		assert.Equal(t, "s-1", env.Result.SessionID)
		assert.Equal(t, a2a.StateCompleted, env.Result.Status.State)
		assert.Equal(t, "alpha: hello", env.Result.Status.Message.JoinText(""))
	})

	t.Run("no agents", func(t *testing.T) {
		tg := newTestGateway(t, "", nil)

		rec := tg.do(t, http.MethodPost, "/task", taskBody("t-2", "", "hello"))
		require.Equal(t, http.StatusOK, rec.Code)

		var env a2a.TaskEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		assert.Equal(t, a2a.StateFailed, env.Result.Status.State)
		assert.Equal(t, supervisor.MsgNoSuitable, env.Result.Status.Error)
	})

	t.Run("generates an id", func(t *testing.T) {
		tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})

		rec := tg.do(t, http.MethodPost, "/task", taskBody("", "", "hello"))
		require.Equal(t, http.StatusOK, rec.Code)

		var env a2a.TaskEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		assert.NotEmpty(t, env.Result.ID)
	})

	t.Run("rejects a missing message", func(t *testing.T) {
		tg := newTestGateway(t, "", nil)

		rec := tg.do(t, http.MethodPost, "/task", `{"id":"t-3"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errMissingMessage.Error(), decodeError(t, rec))
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		tg := newTestGateway(t, "", nil)

		rec := tg.do(t, http.MethodPost, "/task", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errInvalidJSON.Error(), decodeError(t, rec))
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})

		rec := tg.do(t, http.MethodPost, "/task", taskBody("dup", "", "hello"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = tg.do(t, http.MethodPost, "/task/stream", taskBody("dup", "", "hello"))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, decodeError(t, rec), "dup")
	})
}

func TestHandleTask_RecordsHistory(t *testing.T) {
	tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})

	rec := tg.do(t, http.MethodPost, "/task", taskBody("t-1", "s-1", "hello"))
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := tg.store.GetSessionMessages(context.Background(), "s-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "[Handled by alpha]", msgs[1].Content)
}

func TestHandleTaskStream(t *testing.T) {
	tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})

	rec := tg.do(t, http.MethodPost, "/task/stream", taskBody("t-1", "s-1", "hello"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var lines []string
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, "data: ") {
			lines = append(lines, strings.TrimPrefix(line, "data: "))
		}
	}
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, a2a.DoneSentinel, lines[len(lines)-1])

	var first a2a.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, a2a.StateRunning, first.Result.Status.State)
	assert.Equal(t, supervisor.MsgAnalyzing, first.Result.Status.Message.JoinText(""))
	assert.False(t, first.Final)

	var last a2a.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-2]), &last))
	assert.True(t, last.Final)
	assert.Equal(t, a2a.StateCompleted, last.Result.Status.State)
	assert.Equal(t, "alpha: hello", last.Result.Status.Message.JoinText(""))
}

// The supervisor speaks the protocol it consumes, so its own client can
// call it like any other agent.
func TestSupervisorAsAgent(t *testing.T) {
	tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})
	srv := httptest.NewServer(tg.Handler())
	defer srv.Close()

	client := a2a.NewClient(a2a.ClientParams{BaseURL: srv.URL})
	defer client.Close()
	ctx := context.Background()

	card, err := client.GetAgentCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "supervisor_agent", card.Name)

	resp := client.SendTask(ctx, &a2a.TaskRequest{ID: "unary", Message: *a2a.NewTextMessage("user", "hi")})
	assert.Equal(t, a2a.StateCompleted, resp.State)
	assert.Equal(t, "alpha: hi", resp.Text())

	var events []a2a.StreamEvent
	for ev := range client.SendTaskStreaming(ctx, &a2a.TaskRequest{ID: "streamed", Message: *a2a.NewTextMessage("user", "hi")}) {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Done)

	var final *a2a.StreamEvent
	for i := range events {
		if events[i].Final && events[i].Result != nil {
			final = &events[i]
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, a2a.StateCompleted, final.Result.Status.State)
	assert.Equal(t, "alpha: hi", final.Result.Status.Message.JoinText(""))
}

func TestStreamEvent(t *testing.T) {
	t.Run("artifact", func(t *testing.T) {
		art := a2a.Artifact{Name: "report"}
		ev := streamEvent("s", supervisor.TaskEvent{TaskID: "t", Kind: supervisor.EventArtifact, Artifact: &art})
		require.Len(t, ev.Result.Artifacts, 1)
		assert.Equal(t, "report", ev.Result.Artifacts[0].Name)
		assert.False(t, ev.Final)
	})

	t.Run("error", func(t *testing.T) {
		ev := streamEvent("s", supervisor.TaskEvent{TaskID: "t", Kind: supervisor.EventError, State: a2a.StateFailed, Message: "Error: boom", Final: true})
		assert.True(t, ev.Final)
		assert.True(t, ev.Failed())
		assert.Equal(t, "Error: boom", ev.Result.Status.Error)
	})

	t.Run("status", func(t *testing.T) {
		ev := streamEvent("s", supervisor.TaskEvent{TaskID: "t", Kind: supervisor.EventStatus, State: a2a.StateRunning, Message: "working"})
		assert.False(t, ev.Final)
		assert.Equal(t, "s", ev.Result.SessionID)
		assert.Equal(t, "working", ev.Result.Status.Message.JoinText(""))
	})
}
