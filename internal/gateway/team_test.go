// ABOUTME: Tests for the team management HTTP routes.
// ABOUTME: Covers status codes, strict request decoding and batch limits.

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent"
	"github.com/2389/coven-supervisor/internal/team"
)

func decodeMember(t *testing.T, body []byte) agent.MemberResult {
	t.Helper()
	var res agent.MemberResult
	require.NoError(t, json.Unmarshal(body, &res))
	return res
}

func TestTeamAdd(t *testing.T) {
	tg := newTestGateway(t, "", nil)
	tg.network.Serve("http://beta:9001", a2a.AgentCard{Name: "beta", Description: "Second agent"})

	rec := tg.do(t, http.MethodPost, "/team/add", AddMemberRequest{AgentURL: "beta:9001"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeMember(t, rec.Body.Bytes())
	assert.True(t, res.Success)
	assert.Equal(t, "beta", res.AgentName)
	assert.Equal(t, "http://beta:9001", res.URL)

	// A second add of the same URL is reported, not rejected.
	rec = tg.do(t, http.MethodPost, "/team/add", AddMemberRequest{AgentURL: "http://beta:9001"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeMember(t, rec.Body.Bytes())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "already connected")
}

func TestTeamAdd_BadRequests(t *testing.T) {
	tg := newTestGateway(t, "", nil)

	rec := tg.do(t, http.MethodPost, "/team/add", `{"agent_url":"http://x","extra":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = tg.do(t, http.MethodPost, "/team/add", `{"agent_name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "agent_url is required", decodeError(t, rec))
}

func TestTeamRemove(t *testing.T) {
	tg := newTestGateway(t, "", map[string]string{"alpha": "http://alpha:9000"})
	tg.network.Serve("http://beta:9001", a2a.AgentCard{Name: "beta"})
	require.Equal(t, http.StatusOK, tg.do(t, http.MethodPost, "/team/add", AddMemberRequest{AgentURL: "http://beta:9001"}).Code)

	t.Run("configured agent", func(t *testing.T) {
		rec := tg.do(t, http.MethodDelete, "/team/remove", MemberNameRequest{AgentName: "alpha"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec), "Cannot remove configured agent 'alpha'")
	})

	t.Run("unknown agent", func(t *testing.T) {
		rec := tg.do(t, http.MethodDelete, "/team/remove", MemberNameRequest{AgentName: "ghost"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Agent 'ghost' not found", decodeError(t, rec))
	})

	t.Run("dynamic agent", func(t *testing.T) {
		rec := tg.do(t, http.MethodDelete, "/team/remove", MemberNameRequest{AgentName: "beta"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeMember(t, rec.Body.Bytes()).Success)
	})
}

func TestTeamListAndInfo(t *testing.T) {
	tg := newTestGateway(t, "", map[string]string{"alpha": "http://alpha:9000"})

	rec := tg.do(t, http.MethodGet, "/team/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list agent.TeamList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.TotalAgents)
	assert.Equal(t, 1, list.ConfiguredAgents)
	require.Len(t, list.TeamMembers, 1)
	assert.Equal(t, "alpha", list.TeamMembers[0].Name)
	assert.Equal(t, agent.StatusConnected, list.TeamMembers[0].Status)

	rec = tg.do(t, http.MethodGet, "/team/info/alpha", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail agent.MemberDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, agent.ProvenanceConfigured, detail.Type)
	require.NotNil(t, detail.AgentCard)
	assert.Equal(t, "alpha agent", detail.AgentCard.Description)

	rec = tg.do(t, http.MethodGet, "/team/info/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Agent 'ghost' not found", decodeError(t, rec))
}

func TestTeamReconnect(t *testing.T) {
	tg := newTestGateway(t, "", map[string]string{"alpha": "http://alpha:9000"})

	rec := tg.do(t, http.MethodPost, "/team/reconnect", MemberNameRequest{AgentName: "alpha"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeMember(t, rec.Body.Bytes()).Success)

	tg.network.SetUnreachable("http://alpha:9000")
	rec = tg.do(t, http.MethodPost, "/team/reconnect", MemberNameRequest{AgentName: "alpha"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Failed to reconnect")

	rec = tg.do(t, http.MethodPost, "/team/reconnect", `{"agent_name":"alpha","force":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamStatus(t *testing.T) {
	tg := newTestGateway(t, "", nil)

	rec := tg.do(t, http.MethodGet, "/team/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st team.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "active", st.SupervisorStatus)
	assert.Equal(t, team.HealthWarning, st.Health)
}

func TestTeamBatch(t *testing.T) {
	tg := newTestGateway(t, "", nil)
	tg.network.Serve("http://a:1", a2a.AgentCard{Name: "alpha"})
	tg.network.Serve("http://b:1", a2a.AgentCard{Name: "beta"})

	rec := tg.do(t, http.MethodPost, "/team/batch/add", []AddMemberRequest{
		{AgentURL: "http://a:1"},
		{AgentURL: "http://b:1", AgentName: "second"},
		{AgentURL: "http://down:1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var added team.BatchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&added))
	assert.Equal(t, 3, added.BatchSize)
	assert.Equal(t, 2, added.Successful)
	assert.Equal(t, 1, added.Failed)
	assert.Equal(t, "second", added.Results[1].AgentName)

	rec = tg.do(t, http.MethodPost, "/team/batch/remove", []MemberNameRequest{{AgentName: "alpha"}, {AgentName: "ghost"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var removed team.BatchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&removed))
	assert.Equal(t, 1, removed.Successful)
	assert.Equal(t, 1, removed.Failed)
}

func TestTeamBatch_Limits(t *testing.T) {
	tg := newTestGateway(t, "", nil)

	var tooMany []AddMemberRequest
	for i := 0; i <= team.MaxBatchSize; i++ {
		tooMany = append(tooMany, AddMemberRequest{AgentURL: fmt.Sprintf("http://a%d:1", i)})
	}
	rec := tg.do(t, http.MethodPost, "/team/batch/add", tooMany)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Batch size limited to 10 agents", decodeError(t, rec))

	rec = tg.do(t, http.MethodPost, "/team/batch/remove", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, team.ErrEmptyBatch.Error(), decodeError(t, rec))

	rec = tg.do(t, http.MethodPost, "/team/batch/remove", `{"agent_names":["a"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
