// ABOUTME: Routing policy contract: given request text, history and candidates, name one agent.
// ABOUTME: Also holds the small deterministic policies used without a model.

package routing

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// None is the name a policy returns when no candidate fits.
const None = "none"

// ErrNoCandidates is returned by policies that cannot pick from an empty list.
var ErrNoCandidates = errors.New("no candidate agents")

// Candidate is an agent the policy may choose.
type Candidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HistoryMessage is one prior turn of the session.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the input to a routing decision.
type Request struct {
	Text    string           `json:"text"`
	History []HistoryMessage `json:"history"`
	Agents  []Candidate      `json:"agents"`
}

// Policy names the agent that should handle a request. Implementations may
// return a name that is not among the candidates; the caller validates.
type Policy interface {
	Select(ctx context.Context, req *Request) (string, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, req *Request) (string, error)

// Select calls f.
func (f PolicyFunc) Select(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// Static routes by keyword: the first keyword (in sorted order) found in the
// lowercased text wins, otherwise Default. An empty Default means None.
type Static struct {
	Routes  map[string]string
	Default string
}

// Select implements Policy.
func (s *Static) Select(ctx context.Context, req *Request) (string, error) {
	text := strings.ToLower(req.Text)

	keywords := make([]string, 0, len(s.Routes))
	for k := range s.Routes {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return s.Routes[k], nil
		}
	}
	if s.Default == "" {
		return None, nil
	}
	return s.Default, nil
}
