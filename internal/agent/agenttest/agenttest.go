// ABOUTME: In-memory agent network for tests of packages built on the registry.
// ABOUTME: Dials scripted remotes by URL instead of speaking HTTP.

// Package agenttest provides a fake agent network for registry-backed tests.
package agenttest

import (
	"context"
	"sync"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent"
)

// Network maps URLs to agent cards. Unknown or unreachable URLs fail the
// handshake.
type Network struct {
	mu          sync.Mutex
	cards       map[string]a2a.AgentCard
	unreachable map[string]bool
	reply       func(card a2a.AgentCard, task *a2a.TaskRequest) *a2a.TaskResponse
}

// NewNetwork returns an empty network whose agents echo task text.
func NewNetwork() *Network {
	return &Network{
		cards:       make(map[string]a2a.AgentCard),
		unreachable: make(map[string]bool),
		reply: func(card a2a.AgentCard, task *a2a.TaskRequest) *a2a.TaskResponse {
			return &a2a.TaskResponse{
				ID:      task.ID,
				State:   a2a.StateCompleted,
				Message: a2a.NewTextMessage("agent", card.Name+": "+task.Message.JoinText(" ")),
			}
		},
	}
}

// Serve makes url answer the handshake with card.
func (n *Network) Serve(url string, card a2a.AgentCard) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cards[url] = card
	delete(n.unreachable, url)
}

// SetUnreachable makes later handshakes to url fail.
func (n *Network) SetUnreachable(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unreachable[url] = true
}

// Dial implements agent.Dialer.
func (n *Network) Dial(url string) agent.Remote {
	return &Remote{network: n, url: url}
}

func (n *Network) lookup(url string) (a2a.AgentCard, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	card, ok := n.cards[url]
	return card, ok && !n.unreachable[url]
}

// Remote is a dialed fake agent.
type Remote struct {
	network *Network
	url     string

	mu        sync.Mutex
	card      *a2a.AgentCard
	connected bool
}

var _ agent.Remote = (*Remote)(nil)

func (r *Remote) Connect(ctx context.Context) bool {
	card, ok := r.network.lookup(r.url)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok {
		return false
	}
	r.card = &card
	r.connected = true
	return true
}

func (r *Remote) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Remote) Card() *a2a.AgentCard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.card == nil {
		return nil
	}
	card := *r.card
	return &card
}

func (r *Remote) SupportsStreaming() bool {
	card := r.Card()
	return card != nil && card.Capabilities.Streaming
}

func (r *Remote) SendTask(ctx context.Context, task *a2a.TaskRequest) *a2a.TaskResponse {
	card := r.Card()
	if card == nil || !r.IsConnected() {
		return a2a.FailedResponse(task.ID, "Not connected to agent")
	}
	return r.network.reply(*card, task)
}

func (r *Remote) SendTaskStreaming(ctx context.Context, task *a2a.TaskRequest) <-chan a2a.StreamEvent {
	resp := r.SendTask(ctx, task)
	out := make(chan a2a.StreamEvent, 3)
	if resp.State == a2a.StateFailed {
		out <- a2a.FailedEvent(resp.Error)
	} else {
		out <- a2a.StreamEvent{Result: &a2a.Task{ID: resp.ID, Status: a2a.TaskStatus{State: a2a.StateRunning, Message: resp.Message}}}
		out <- a2a.StreamEvent{Final: true, Result: &a2a.Task{ID: resp.ID, Status: a2a.TaskStatus{State: a2a.StateCompleted, Message: resp.Message}}}
		out <- a2a.StreamEvent{Final: true, Done: true}
	}
	close(out)
	return out
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	return nil
}
