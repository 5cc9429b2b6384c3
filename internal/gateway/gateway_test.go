// ABOUTME: Shared helpers and lifecycle tests for the supervisor gateway.
// ABOUTME: Builds gateways over an in-memory agent network and mock store.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent/agenttest"
	"github.com/2389/coven-supervisor/internal/config"
	"github.com/2389/coven-supervisor/internal/routing"
	"github.com/2389/coven-supervisor/internal/store"
)

type testGateway struct {
	*Gateway
	network *agenttest.Network
	store   *store.MockStore
}

// newTestGateway returns a gateway whose configured agents are the given
// name -> URL pairs, routed by the static policy to defaultAgent.
func newTestGateway(t *testing.T, defaultAgent string, agents map[string]string) *testGateway {
	t.Helper()

	network := agenttest.NewNetwork()
	cfg := config.Default()
	for name, url := range agents {
		network.Serve(url, a2a.AgentCard{Name: name, Description: name + " agent"})
		cfg.Agents.URLs = append(cfg.Agents.URLs, url)
	}

	mock := store.NewMockStore()
	gw, err := NewWithParams(context.Background(), Params{
		Config: cfg,
		Dialer: network.Dial,
		Policy: &routing.Static{Default: defaultAgent},
		Store:  mock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	return &testGateway{Gateway: gw, network: network, store: mock}
}

// do sends a request through the full echo handler.
func (tg *testGateway) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	tg.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var errResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	return errResp["error"]
}

func TestHealth(t *testing.T) {
	tg := newTestGateway(t, "", nil)

	rec := tg.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	t.Run("no agents", func(t *testing.T) {
		tg := newTestGateway(t, "", nil)
		rec := tg.do(t, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("connected agent", func(t *testing.T) {
		tg := newTestGateway(t, "alpha", map[string]string{"alpha": "http://alpha:9000"})
		rec := tg.do(t, http.MethodGet, "/health/ready", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready (1 agents)", rec.Body.String())
	})
}

func TestBuildPolicy(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		policy string
		want   any
	}{
		{"llm", config.PolicyLLM, &routing.LLM{}},
		{"rego", config.PolicyRego, &routing.Rego{}},
		{"round robin", config.PolicyRoundRobin, &routing.RoundRobin{}},
		{"static", config.PolicyStatic, &routing.Static{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Routing.Policy = tt.policy
			p, err := buildPolicy(ctx, cfg, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Routing.Policy = "coin_flip"
		_, err := buildPolicy(ctx, cfg, nil)
		assert.Error(t, err)
	})

	t.Run("example rego file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Routing.Policy = config.PolicyRego
		cfg.Routing.RegoFile = filepath.Join("..", "..", "routing.example.rego")
		p, err := buildPolicy(ctx, cfg, nil)
		require.NoError(t, err)

		agents := []routing.Candidate{{Name: "weather_agent"}, {Name: "billing_agent"}}
		got, err := p.Select(ctx, &routing.Request{Text: "Forecast for Paris?", Agents: agents})
		require.NoError(t, err)
		assert.Equal(t, "weather_agent", got)

		got, err = p.Select(ctx, &routing.Request{
			Text:    "and tomorrow?",
			History: []routing.HistoryMessage{{Role: "user", Content: "refund please"}, {Role: "assistant", Content: "[Handled by billing_agent]"}},
			Agents:  agents,
		})
		require.NoError(t, err)
		assert.Equal(t, "billing_agent", got)

		got, err = p.Select(ctx, &routing.Request{Text: "hello", Agents: agents})
		require.NoError(t, err)
		assert.Equal(t, routing.None, got)
	})

	t.Run("missing rego file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Routing.Policy = config.PolicyRego
		cfg.Routing.RegoFile = filepath.Join(t.TempDir(), "missing.rego")
		_, err := buildPolicy(ctx, cfg, nil)
		assert.Error(t, err)
	})
}

func TestNew_BuildsSQLiteStore(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "supervisor.db")
	cfg.Routing.Policy = config.PolicyRoundRobin

	gw, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, gw.store)
	require.NoError(t, gw.Shutdown(context.Background()))
}
