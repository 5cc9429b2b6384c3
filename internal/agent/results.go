// ABOUTME: Structured results returned by registry operations and team listings.
// ABOUTME: Every operation reports success or failure as data so callers never see raw errors.

package agent

import (
	"time"

	"github.com/2389/coven-supervisor/internal/a2a"
)

// Provenance records how an agent entered the registry.
type Provenance string

const (
	// ProvenanceConfigured agents come from startup configuration and cannot
	// be removed at runtime.
	ProvenanceConfigured Provenance = "configured"
	// ProvenanceDynamic agents were added through team management.
	ProvenanceDynamic Provenance = "dynamic"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Descriptor is the registry's record of one agent.
type Descriptor struct {
	Name              string
	URL               string
	Description       string
	SupportsStreaming bool
	Provenance        Provenance
	AddedAt           *time.Time
	ReconnectedAt     *time.Time
}

// MemberResult is the outcome of Add, Remove and Reconnect.
type MemberResult struct {
	Success     bool   `json:"success"`
	AgentName   string `json:"agent_name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Streaming   *bool  `json:"streaming,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

func failure(name, url, msg string) MemberResult {
	return MemberResult{Success: false, AgentName: name, URL: url, Error: msg}
}

// MemberInfo describes one team member in listings.
type MemberInfo struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	URL           string     `json:"url"`
	Streaming     bool       `json:"streaming"`
	Type          Provenance `json:"type"`
	Status        string     `json:"status"`
	AddedAt       *time.Time `json:"added_at,omitempty"`
	ReconnectedAt *time.Time `json:"reconnected_at,omitempty"`
}

// MemberDetail is MemberInfo plus the agent card.
type MemberDetail struct {
	MemberInfo
	AgentCard *a2a.AgentCard `json:"agent_card,omitempty"`
}

// TeamList is the registry listing.
type TeamList struct {
	TotalAgents      int          `json:"total_agents"`
	ConfiguredAgents int          `json:"configured_agents"`
	DynamicAgents    int          `json:"dynamic_agents"`
	ConnectedAgents  int          `json:"connected_agents"`
	TeamMembers      []MemberInfo `json:"team_members"`
}
