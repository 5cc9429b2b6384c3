// ABOUTME: Tests for supervisorctl commands against an in-process supervisor.
// ABOUTME: Commands run through cobra with captured output and colors disabled.

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent/agenttest"
	"github.com/2389/coven-supervisor/internal/config"
	"github.com/2389/coven-supervisor/internal/gateway"
	"github.com/2389/coven-supervisor/internal/routing"
	"github.com/2389/coven-supervisor/internal/store"
)

func startSupervisor(t *testing.T) (string, *agenttest.Network) {
	t.Helper()

	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	network := agenttest.NewNetwork()
	network.Serve("http://alpha:9000", a2a.AgentCard{Name: "alpha", Description: "First agent"})

	cfg := config.Default()
	cfg.Agents.URLs = config.URLList{"http://alpha:9000"}
	gw, err := gateway.NewWithParams(context.Background(), gateway.Params{
		Config: cfg,
		Dialer: network.Dial,
		Policy: &routing.Static{Default: "alpha"},
		Store:  store.NewMockStore(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})
	return srv.URL, network
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--url", url}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHealthCmd(t *testing.T) {
	url, _ := startSupervisor(t)
	out, err := run(t, url, "health")
	require.NoError(t, err)
	assert.Equal(t, "healthy\n", out)
}

func TestTeamCmds(t *testing.T) {
	url, network := startSupervisor(t)
	network.Serve("http://beta:9001", a2a.AgentCard{Name: "beta"})

	out, err := run(t, url, "team", "add", "http://beta:9001", "--name", "helper")
	require.NoError(t, err)
	assert.Contains(t, out, "Agent 'helper' added to the team")

	out, err = run(t, url, "team", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 agents (1 configured, 1 dynamic), 2 connected")
	assert.Contains(t, out, "helper")

	out, err = run(t, url, "team", "info", "alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "First agent")

	out, err = run(t, url, "team", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "health:     healthy")

	_, err = run(t, url, "team", "reconnect", "helper")
	require.NoError(t, err)

	_, err = run(t, url, "team", "remove", "alpha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot remove configured agent")

	out, err = run(t, url, "team", "remove", "helper")
	require.NoError(t, err)
	assert.Contains(t, out, "removed from the team")
}

func TestTeamAddCmd_Failure(t *testing.T) {
	url, _ := startSupervisor(t)
	out, err := run(t, url, "team", "add", "http://nowhere:1")
	require.Error(t, err)
	assert.Contains(t, out, "Failed to connect to agent at http://nowhere:1")
}

func TestBatchCmds(t *testing.T) {
	url, network := startSupervisor(t)
	network.Serve("http://b:1", a2a.AgentCard{Name: "beta"})
	network.Serve("http://c:1", a2a.AgentCard{Name: "gamma"})

	file := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"agent_url":"http://c:1","agent_name":"third"}]`), 0o600))

	out, err := run(t, url, "team", "batch-add", "http://b:1", "http://down:1")
	require.NoError(t, err)
	assert.Contains(t, out, "batch of 2: 1 succeeded, 1 failed")

	out, err = run(t, url, "team", "batch-add", "-f", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Agent 'third' added to the team")

	out, err = run(t, url, "team", "batch-remove", "beta", "third")
	require.NoError(t, err)
	assert.Contains(t, out, "batch of 2: 2 succeeded, 0 failed")

	_, err = run(t, url, "team", "batch-add")
	assert.Error(t, err)
}

func TestSendAndSessionCmds(t *testing.T) {
	url, _ := startSupervisor(t)

	out, err := run(t, url, "send", "--session", "s-1", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "session: s-1")
	assert.Contains(t, out, "Analyzing your request...")
	assert.Contains(t, out, "alpha: hello there\n")

	out, err = run(t, url, "send", "--session", "s-1", "--no-stream", "again")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha: again\n")

	out, err = run(t, url, "session", "show", "s-1", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "session s-1: 4 messages")
	assert.Contains(t, out, "user: again")
	assert.Contains(t, out, "supervisor_agent: [Handled by alpha]")

	out, err = run(t, url, "session", "delete", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "session s-1 deleted")

	_, err = run(t, url, "session", "show", "s-1")
	assert.Error(t, err)
}

func TestSendCmd_NoAgents(t *testing.T) {
	url, network := startSupervisor(t)
	network.SetUnreachable("http://alpha:9000")

	out, err := run(t, url, "send", "hello")
	require.Error(t, err)
	assert.Contains(t, out, "No suitable agent available to handle this request.")
}
