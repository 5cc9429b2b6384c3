// ABOUTME: Tests for Connection against httptest agents.
// ABOUTME: Validates the handshake state machine, refusal when disconnected and streaming fallback.

package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-supervisor/internal/a2a"
)

// newTestAgent serves a card and echoes tasks back with the given prefix.
func newTestAgent(t *testing.T, name string, streaming bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(a2a.CardPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(a2a.AgentCard{
			Name:         name,
			Description:  name + " agent",
			Capabilities: a2a.Capabilities{Streaming: streaming},
		})
	})
	mux.HandleFunc(a2a.TaskPath, func(w http.ResponseWriter, r *http.Request) {
		var req a2a.TaskRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(a2a.TaskEnvelope{Result: &a2a.Task{
			ID: req.ID,
			Status: a2a.TaskStatus{
				State:   a2a.StateCompleted,
				Message: a2a.NewTextMessage("agent", name+": "+req.Message.JoinText(" ")),
			},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectionConnect(t *testing.T) {
	t.Run("successful handshake populates card", func(t *testing.T) {
		srv := newTestAgent(t, "alpha", true)
		conn := NewConnection(ConnectionParams{URL: srv.URL})

		assert.Equal(t, StateDisconnected, conn.State())
		require.True(t, conn.Connect(context.Background()))
		assert.Equal(t, StateConnected, conn.State())
		assert.Equal(t, "alpha", conn.Card().Name)
		assert.True(t, conn.SupportsStreaming())

		// Second connect is a no-op success.
		assert.True(t, conn.Connect(context.Background()))
	})

	t.Run("failed handshake is permanent", func(t *testing.T) {
		conn := NewConnection(ConnectionParams{URL: "http://127.0.0.1:1"})

		assert.False(t, conn.Connect(context.Background()))
		assert.Equal(t, StateDisconnected, conn.State())
		assert.Nil(t, conn.Card())
		assert.False(t, conn.Connect(context.Background()))
	})

	t.Run("close is idempotent and safe before connect", func(t *testing.T) {
		conn := NewConnection(ConnectionParams{URL: "http://127.0.0.1:1"})
		assert.NoError(t, conn.Close())
		assert.NoError(t, conn.Close())
		assert.False(t, conn.IsConnected())
	})
}

func TestConnectionSendTask(t *testing.T) {
	t.Run("refuses when not connected", func(t *testing.T) {
		conn := NewConnection(ConnectionParams{URL: "http://127.0.0.1:1"})

		resp := conn.SendTask(context.Background(), &a2a.TaskRequest{ID: "t"})
		assert.Equal(t, a2a.StateFailed, resp.State)
		assert.Equal(t, "Not connected to agent", resp.Error)

		var events []a2a.StreamEvent
		for ev := range conn.SendTaskStreaming(context.Background(), &a2a.TaskRequest{ID: "t"}) {
			events = append(events, ev)
		}
		require.Len(t, events, 1)
		assert.Equal(t, "Not connected to agent", events[0].Error)
	})

	t.Run("unary round trip", func(t *testing.T) {
		srv := newTestAgent(t, "alpha", false)
		conn := NewConnection(ConnectionParams{URL: srv.URL})
		require.True(t, conn.Connect(context.Background()))

		resp := conn.SendTask(context.Background(), &a2a.TaskRequest{ID: "t", Message: *a2a.NewTextMessage("user", "hi")})
		assert.Equal(t, a2a.StateCompleted, resp.State)
		assert.Equal(t, "alpha: hi", resp.Text())
	})

	t.Run("streaming falls back to unary for non-streaming peers", func(t *testing.T) {
		srv := newTestAgent(t, "beta", false)
		conn := NewConnection(ConnectionParams{URL: srv.URL})
		require.True(t, conn.Connect(context.Background()))

		var events []a2a.StreamEvent
		for ev := range conn.SendTaskStreaming(context.Background(), &a2a.TaskRequest{ID: "t", Message: *a2a.NewTextMessage("user", "yo")}) {
			events = append(events, ev)
		}
		require.Len(t, events, 1)
		assert.True(t, events[0].Final)
		assert.Equal(t, "beta: yo", events[0].Result.Status.Message.JoinText(""))
	})
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"localhost:8001":         "http://localhost:8001",
		" http://a.example/ ":    "http://a.example",
		"https://b.example//":    "https://b.example",
		"":                       "",
		"http://c.example/path/": "http://c.example/path",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}
