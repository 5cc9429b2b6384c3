// ABOUTME: Tests for team management over a registry backed by a fake agent network.
// ABOUTME: Covers status health, batch limits and aggregate batch reporting.

package team

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent"
	"github.com/2389/coven-supervisor/internal/agent/agenttest"
)

func newTestService(t *testing.T, configured ...string) (*Service, *agenttest.Network) {
	t.Helper()
	net := agenttest.NewNetwork()
	for i, url := range configured {
		net.Serve(url, a2a.AgentCard{Name: fmt.Sprintf("configured%d", i)})
	}
	reg := agent.NewRegistry(agent.RegistryParams{URLs: configured, Dialer: net.Dial})
	t.Cleanup(reg.Close)
	return New(reg, nil), net
}

func TestStatus(t *testing.T) {
	t.Run("warning with no connected agents", func(t *testing.T) {
		svc, _ := newTestService(t)
		st := svc.Status(context.Background())
		assert.Equal(t, "active", st.SupervisorStatus)
		assert.Equal(t, 0, st.TotalAgents)
		assert.Equal(t, HealthWarning, st.Health)
	})

	t.Run("healthy with a connected agent", func(t *testing.T) {
		svc, net := newTestService(t, "http://c:1")
		net.Serve("http://d:1", a2a.AgentCard{Name: "dyn"})
		require.True(t, svc.Add(context.Background(), "http://d:1", "").Success)

		st := svc.Status(context.Background())
		assert.Equal(t, 2, st.TotalAgents)
		assert.Equal(t, 1, st.ConfiguredAgents)
		assert.Equal(t, 1, st.DynamicAgents)
		assert.Equal(t, 2, st.ConnectedAgents)
		assert.Equal(t, 0, st.DisconnectedAgents)
		assert.Equal(t, HealthHealthy, st.Health)
	})
}

func TestBatchAdd(t *testing.T) {
	svc, net := newTestService(t)
	net.Serve("http://a:1", a2a.AgentCard{Name: "alpha"})
	net.Serve("http://b:1", a2a.AgentCard{Name: "beta"})

	res, err := svc.BatchAdd(context.Background(), []AddItem{
		{URL: "http://a:1"},
		{URL: "http://b:1", Name: "custom"},
		{URL: "http://nowhere:1"},
		{URL: "http://a:1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.BatchSize)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Results, 4)
	assert.Equal(t, "custom", res.Results[1].AgentName)
	assert.Equal(t, "alpha", res.Results[3].AgentName)
	assert.Contains(t, res.Results[3].Error, "already connected")
}

func TestBatchRemove(t *testing.T) {
	svc, net := newTestService(t, "http://c:1")
	net.Serve("http://a:1", a2a.AgentCard{Name: "alpha"})
	net.Serve("http://b:1", a2a.AgentCard{Name: "beta"})
	require.True(t, svc.Add(context.Background(), "http://a:1", "").Success)
	require.True(t, svc.Add(context.Background(), "http://b:1", "").Success)

	res, err := svc.BatchRemove(context.Background(), []string{"alpha", "configured0", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.BatchSize)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Results[1].Error, "configured agent")

	list := svc.List(context.Background())
	require.Len(t, list.TeamMembers, 1)
	assert.Equal(t, "configured0", list.TeamMembers[0].Name)
}

func TestBatchLimits(t *testing.T) {
	svc, _ := newTestService(t)

	names := make([]string, MaxBatchSize+1)
	for i := range names {
		names[i] = fmt.Sprintf("a%d", i)
	}
	_, err := svc.BatchRemove(context.Background(), names)
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = svc.BatchAdd(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	res, err := svc.BatchRemove(context.Background(), names[:MaxBatchSize])
	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize, res.Failed)
}

func TestAddReconnectListRoundTrip(t *testing.T) {
	svc, net := newTestService(t)
	net.Serve("http://d:1", a2a.AgentCard{Name: "dyn", Description: "dynamic agent"})

	require.True(t, svc.Add(context.Background(), "http://d:1", "").Success)
	res := svc.Reconnect(context.Background(), "dyn")
	require.True(t, res.Success, res.Error)

	list := svc.List(context.Background())
	require.Len(t, list.TeamMembers, 1)
	m := list.TeamMembers[0]
	assert.Equal(t, agent.ProvenanceDynamic, m.Type)
	assert.Equal(t, agent.StatusConnected, m.Status)
	assert.NotNil(t, m.ReconnectedAt)
	assert.NotNil(t, m.AddedAt)

	info, ok := svc.Info(context.Background(), "dyn")
	require.True(t, ok)
	assert.Equal(t, "dynamic agent", info.AgentCard.Description)

	net.SetUnreachable("http://d:1")
	res = svc.Reconnect(context.Background(), "dyn")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Failed to reconnect")
}
