// ABOUTME: Round-robin policy that rotates over the current candidates.
// ABOUTME: Needs no model; useful when every agent can handle every request.

package routing

import (
	"context"
	"sync/atomic"
)

// RoundRobin selects candidates in a rotating fashion.
type RoundRobin struct {
	current atomic.Uint64
}

// NewRoundRobin creates a RoundRobin policy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Select implements Policy. Returns ErrNoCandidates for an empty list.
func (r *RoundRobin) Select(ctx context.Context, req *Request) (string, error) {
	if len(req.Agents) == 0 {
		return "", ErrNoCandidates
	}
	idx := r.current.Add(1) - 1
	return req.Agents[idx%uint64(len(req.Agents))].Name, nil
}
