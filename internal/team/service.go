// ABOUTME: Team management operations over the agent registry, including batch add/remove.
// ABOUTME: Shared by the HTTP team routes and reported as structured results, never raw errors.

package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/coven-supervisor/internal/agent"
)

// MaxBatchSize bounds batch add and remove requests.
const MaxBatchSize = 10

// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize.
var ErrBatchTooLarge = fmt.Errorf("batch size exceeds maximum of %d", MaxBatchSize)

// ErrEmptyBatch is returned for a batch with no items.
var ErrEmptyBatch = errors.New("batch is empty")

// Health values reported by Status.
const (
	HealthHealthy = "healthy"
	HealthWarning = "warning"
)

// Registry is what the service needs from the agent registry.
type Registry interface {
	EnsureInitialized(ctx context.Context)
	Add(ctx context.Context, url, name string) agent.MemberResult
	Remove(name string) agent.MemberResult
	Reconnect(ctx context.Context, name string) agent.MemberResult
	List() agent.TeamList
	Info(name string) (*agent.MemberDetail, bool)
}

// AddItem is one entry of a batch add.
type AddItem struct {
	URL  string `json:"agent_url"`
	Name string `json:"agent_name,omitempty"`
}

// BatchResult aggregates per-item results.
type BatchResult struct {
	BatchSize  int                  `json:"batch_size"`
	Successful int                  `json:"successful"`
	Failed     int                  `json:"failed"`
	Results    []agent.MemberResult `json:"results"`
}

func (b *BatchResult) add(res agent.MemberResult) {
	b.Results = append(b.Results, res)
	if res.Success {
		b.Successful++
	} else {
		b.Failed++
	}
}

// Status summarizes team health.
type Status struct {
	SupervisorStatus   string `json:"supervisor_status"`
	TotalAgents        int    `json:"total_agents"`
	ConfiguredAgents   int    `json:"configured_agents"`
	DynamicAgents      int    `json:"dynamic_agents"`
	ConnectedAgents    int    `json:"connected_agents"`
	DisconnectedAgents int    `json:"disconnected_agents"`
	Health             string `json:"health"`
}

// Service exposes team management.
type Service struct {
	registry Registry
	logger   *slog.Logger
}

// New creates a Service.
func New(registry Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: registry, logger: logger.With("component", "team")}
}

// Add connects and registers a dynamic agent.
func (s *Service) Add(ctx context.Context, url, name string) agent.MemberResult {
	res := s.registry.Add(ctx, url, name)
	s.logResult("add", res)
	return res
}

// Remove drops a dynamic agent.
func (s *Service) Remove(ctx context.Context, name string) agent.MemberResult {
	s.registry.EnsureInitialized(ctx)
	res := s.registry.Remove(name)
	s.logResult("remove", res)
	return res
}

// Reconnect refreshes an agent's connection.
func (s *Service) Reconnect(ctx context.Context, name string) agent.MemberResult {
	res := s.registry.Reconnect(ctx, name)
	s.logResult("reconnect", res)
	return res
}

// List returns all members.
func (s *Service) List(ctx context.Context) agent.TeamList {
	s.registry.EnsureInitialized(ctx)
	return s.registry.List()
}

// Info returns one member's detail.
func (s *Service) Info(ctx context.Context, name string) (*agent.MemberDetail, bool) {
	s.registry.EnsureInitialized(ctx)
	return s.registry.Info(name)
}

// Status reports totals and health: healthy when at least one agent is connected.
func (s *Service) Status(ctx context.Context) Status {
	list := s.List(ctx)
	health := HealthWarning
	if list.ConnectedAgents > 0 {
		health = HealthHealthy
	}
	return Status{
		SupervisorStatus:   "active",
		TotalAgents:        list.TotalAgents,
		ConfiguredAgents:   list.ConfiguredAgents,
		DynamicAgents:      list.DynamicAgents,
		ConnectedAgents:    list.ConnectedAgents,
		DisconnectedAgents: list.TotalAgents - list.ConnectedAgents,
		Health:             health,
	}
}

func checkBatch(n int) error {
	switch {
	case n == 0:
		return ErrEmptyBatch
	case n > MaxBatchSize:
		return ErrBatchTooLarge
	}
	return nil
}

// BatchAdd adds each item in order.
func (s *Service) BatchAdd(ctx context.Context, items []AddItem) (*BatchResult, error) {
	if err := checkBatch(len(items)); err != nil {
		return nil, err
	}
	out := &BatchResult{BatchSize: len(items), Results: make([]agent.MemberResult, 0, len(items))}
	for _, item := range items {
		out.add(s.Add(ctx, item.URL, item.Name))
	}
	s.logger.Info("batch add finished", "batch_size", out.BatchSize, "successful", out.Successful, "failed", out.Failed)
	return out, nil
}

// BatchRemove removes each name in order.
func (s *Service) BatchRemove(ctx context.Context, names []string) (*BatchResult, error) {
	if err := checkBatch(len(names)); err != nil {
		return nil, err
	}
	out := &BatchResult{BatchSize: len(names), Results: make([]agent.MemberResult, 0, len(names))}
	for _, name := range names {
		out.add(s.Remove(ctx, name))
	}
	s.logger.Info("batch remove finished", "batch_size", out.BatchSize, "successful", out.Successful, "failed", out.Failed)
	return out, nil
}

func (s *Service) logResult(op string, res agent.MemberResult) {
	if res.Success {
		s.logger.Info("team operation succeeded", "op", op, "agent", res.AgentName)
		return
	}
	s.logger.Warn("team operation failed", "op", op, "agent", res.AgentName, "error", res.Error)
}
