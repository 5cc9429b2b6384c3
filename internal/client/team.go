// ABOUTME: Team management calls: add, remove, list, info, reconnect, status and batches
// ABOUTME: Add reports failures in the returned result; remove and reconnect fail with APIError

package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/2389/coven-supervisor/internal/agent"
	"github.com/2389/coven-supervisor/internal/gateway"
	"github.com/2389/coven-supervisor/internal/team"
)

// AddAgent asks the supervisor to connect the agent at agentURL. name may
// be empty to use the agent's self-reported name.
func (c *Client) AddAgent(ctx context.Context, agentURL, name string) (*agent.MemberResult, error) {
	var res agent.MemberResult
	req := gateway.AddMemberRequest{AgentURL: agentURL, AgentName: name}
	if err := c.do(ctx, http.MethodPost, "/team/add", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveAgent removes a dynamically added agent.
func (c *Client) RemoveAgent(ctx context.Context, name string) (*agent.MemberResult, error) {
	var res agent.MemberResult
	if err := c.do(ctx, http.MethodDelete, "/team/remove", gateway.MemberNameRequest{AgentName: name}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReconnectAgent refreshes an agent's connection.
func (c *Client) ReconnectAgent(ctx context.Context, name string) (*agent.MemberResult, error) {
	var res agent.MemberResult
	if err := c.do(ctx, http.MethodPost, "/team/reconnect", gateway.MemberNameRequest{AgentName: name}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListAgents returns every team member.
func (c *Client) ListAgents(ctx context.Context) (*agent.TeamList, error) {
	var list agent.TeamList
	if err := c.do(ctx, http.MethodGet, "/team/list", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AgentInfo returns one member with its agent card.
func (c *Client) AgentInfo(ctx context.Context, name string) (*agent.MemberDetail, error) {
	var detail agent.MemberDetail
	if err := c.do(ctx, http.MethodGet, "/team/info/"+url.PathEscape(name), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Status returns team totals and health.
func (c *Client) Status(ctx context.Context) (*team.Status, error) {
	var st team.Status
	if err := c.do(ctx, http.MethodGet, "/team/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// BatchAdd adds up to team.MaxBatchSize agents.
func (c *Client) BatchAdd(ctx context.Context, items []gateway.AddMemberRequest) (*team.BatchResult, error) {
	var res team.BatchResult
	if err := c.do(ctx, http.MethodPost, "/team/batch/add", items, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BatchRemove removes up to team.MaxBatchSize agents by name.
func (c *Client) BatchRemove(ctx context.Context, names []string) (*team.BatchResult, error) {
	reqs := make([]gateway.MemberNameRequest, len(names))
	for i, n := range names {
		reqs[i] = gateway.MemberNameRequest{AgentName: n}
	}
	var res team.BatchResult
	if err := c.do(ctx, http.MethodPost, "/team/batch/remove", reqs, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
