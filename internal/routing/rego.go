// ABOUTME: Policy-as-code routing evaluated with OPA against text, history and candidates.
// ABOUTME: The module must define data.supervisor.routing.agent as a string.

package routing

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// RegoQuery is the rule a routing module must define.
const RegoQuery = "data.supervisor.routing.agent"

// DefaultRegoPolicy routes to the agent whose description mentions a word of
// the request, alphabetically first on ties, and to the only agent when there
// is exactly one.
const DefaultRegoPolicy = `package supervisor.routing

default agent := "none"

words contains w if {
	some w in split(lower(input.text), " ")
	count(w) > 3
}

matches contains a.name if {
	some a in input.agents
	some w in words
	contains(lower(a.description), w)
}

agent := sort(matches)[0] if count(matches) > 0

agent := input.agents[0].name if {
	count(matches) == 0
	count(input.agents) == 1
}
`

// Rego evaluates a prepared routing query.
type Rego struct {
	query rego.PreparedEvalQuery
}

// NewRego compiles module. An empty module uses DefaultRegoPolicy.
func NewRego(ctx context.Context, module string) (*Rego, error) {
	if module == "" {
		module = DefaultRegoPolicy
	}
	r := rego.New(
		rego.Query(RegoQuery),
		rego.Module("routing.rego", module),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing routing policy: %w", err)
	}
	return &Rego{query: query}, nil
}

// Select implements Policy. An undefined or non-string result means None.
func (r *Rego) Select(ctx context.Context, req *Request) (string, error) {
	history := make([]any, 0, len(req.History))
	for _, h := range req.History {
		history = append(history, map[string]any{"role": h.Role, "content": h.Content})
	}
	agents := make([]any, 0, len(req.Agents))
	for _, a := range req.Agents {
		agents = append(agents, map[string]any{"name": a.Name, "description": a.Description})
	}
	input := map[string]any{
		"text":    req.Text,
		"history": history,
		"agents":  agents,
	}

	results, err := r.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("evaluating routing policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return None, nil
	}
	if name, ok := results[0].Expressions[0].Value.(string); ok {
		return name, nil
	}
	return None, nil
}
