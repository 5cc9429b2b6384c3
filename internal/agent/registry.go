// ABOUTME: Registry of remote agents keyed by unique name, configured plus dynamically added.
// ABOUTME: Owns lazy one-shot initialization, name conflict resolution and team operations.

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-supervisor/internal/a2a"
)

// DefaultConnectConcurrency bounds parallel handshakes during initialization.
const DefaultConnectConcurrency = 4

// Dialer creates an unconnected Remote for a normalized URL.
type Dialer func(url string) Remote

// HTTPDialer returns a Dialer producing HTTP connections with the given timeout.
func HTTPDialer(timeout time.Duration, logger *slog.Logger) Dialer {
	return func(url string) Remote {
		client := a2a.NewClient(a2a.ClientParams{BaseURL: url, Timeout: timeout, Logger: logger})
		return NewConnection(ConnectionParams{URL: url, Client: client, Logger: logger})
	}
}

// NormalizeURL trims whitespace and trailing slashes and adds http:// when
// the scheme is missing.
func NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return u
}

type entry struct {
	desc Descriptor
	conn Remote
	card *a2a.AgentCard
}

// Registry holds every known agent. Names are unique; iteration order is
// configured agents in configured order followed by dynamic agents in add order.
type Registry struct {
	configured  []string
	dial        Dialer
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	initOnce sync.Once

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// RegistryParams configures a Registry.
type RegistryParams struct {
	URLs        []string
	Dialer      Dialer
	Concurrency int
	Logger      *slog.Logger
}

// NewRegistry creates an empty registry. Configured URLs are connected on
// the first EnsureInitialized call.
func NewRegistry(params RegistryParams) *Registry {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dial := params.Dialer
	if dial == nil {
		dial = HTTPDialer(a2a.DefaultTimeout, logger)
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConnectConcurrency
	}

	seen := make(map[string]bool)
	var urls []string
	for _, raw := range params.URLs {
		u := NormalizeURL(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}

	return &Registry{
		configured:  urls,
		dial:        dial,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With("component", "registry"),
		entries:     make(map[string]*entry),
	}
}

// EnsureInitialized connects every configured URL exactly once. Concurrent
// callers wait for the single in-flight initialization. Unreachable agents
// are logged and skipped, so an empty registry is a valid outcome.
func (r *Registry) EnsureInitialized(ctx context.Context) {
	r.initOnce.Do(func() {
		r.initialize(context.WithoutCancel(ctx))
	})
}

func (r *Registry) initialize(ctx context.Context) {
	r.logger.Info("initializing agent registry", "configured_urls", len(r.configured))

	conns := make([]Remote, len(r.configured))
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, url := range r.configured {
		g.Go(func() error {
			if conn, ok := r.connect(ctx, url); ok {
				conns[i] = conn
			}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, conn := range conns {
		if conn == nil {
			r.logger.Warn("configured agent unavailable", "url", r.configured[i])
			continue
		}
		e := r.insertLocked(conn, r.configured[i], "", ProvenanceConfigured)
		r.logger.Info("=== AGENT CONNECTED ===",
			"name", e.desc.Name,
			"url", e.desc.URL,
			"streaming", e.desc.SupportsStreaming,
			"type", ProvenanceConfigured,
		)
	}
	r.logger.Info("agent registry initialized", "total_agents", len(r.entries))
}

// connect dials and handshakes, recovering panics from the Remote.
func (r *Registry) connect(ctx context.Context, url string) (conn Remote, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("agent connect panicked", "url", url, "panic", p)
			if conn != nil {
				_ = conn.Close()
			}
			conn, ok = nil, false
		}
	}()

	conn = r.dial(url)
	if !conn.Connect(ctx) {
		_ = conn.Close()
		return nil, false
	}
	return conn, true
}

// insertLocked resolves a unique name and stores the entry. Caller holds mu.
func (r *Registry) insertLocked(conn Remote, url, requested string, prov Provenance) *entry {
	card := conn.Card()
	base := requested
	if base == "" && card != nil {
		base = card.Name
	}
	if base == "" {
		base = "unknown"
	}
	name := r.uniqueNameLocked(base)

	desc := Descriptor{
		Name:              name,
		URL:               url,
		SupportsStreaming: conn.SupportsStreaming(),
		Provenance:        prov,
	}
	if card != nil {
		desc.Description = card.Description
	}
	if prov == ProvenanceDynamic {
		added := r.now()
		desc.AddedAt = &added
	}

	e := &entry{desc: desc, conn: conn, card: card}
	r.entries[name] = e
	r.order = append(r.order, name)
	return e
}

func (r *Registry) uniqueNameLocked(base string) string {
	if _, taken := r.entries[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if _, taken := r.entries[candidate]; !taken {
			return candidate
		}
	}
}

func (r *Registry) findURLLocked(url string) (*entry, bool) {
	for _, name := range r.order {
		if e := r.entries[name]; e.desc.URL == url {
			return e, true
		}
	}
	return nil, false
}

// Add connects a new dynamic agent. name may be empty to use the agent's own name.
func (r *Registry) Add(ctx context.Context, rawURL, name string) MemberResult {
	r.EnsureInitialized(ctx)

	url := NormalizeURL(rawURL)
	if url == "" {
		return failure("", rawURL, "Agent URL is required")
	}

	r.mu.RLock()
	existing, dup := r.findURLLocked(url)
	r.mu.RUnlock()
	if dup {
		return failure(existing.desc.Name, url, fmt.Sprintf("Agent at %s is already connected as '%s'", url, existing.desc.Name))
	}

	conn, ok := r.connect(ctx, url)
	if !ok {
		return failure(name, url, fmt.Sprintf("Failed to connect to agent at %s", url))
	}

	r.mu.Lock()
	if existing, dup := r.findURLLocked(url); dup {
		r.mu.Unlock()
		_ = conn.Close()
		return failure(existing.desc.Name, url, fmt.Sprintf("Agent at %s is already connected as '%s'", url, existing.desc.Name))
	}
	e := r.insertLocked(conn, url, strings.TrimSpace(name), ProvenanceDynamic)
	total := len(r.entries)
	r.mu.Unlock()

	r.logger.Info("=== AGENT CONNECTED ===",
		"name", e.desc.Name,
		"url", url,
		"streaming", e.desc.SupportsStreaming,
		"type", ProvenanceDynamic,
		"total_agents", total,
	)

	streaming := e.desc.SupportsStreaming
	return MemberResult{
		Success:     true,
		AgentName:   e.desc.Name,
		Description: e.desc.Description,
		URL:         url,
		Streaming:   &streaming,
		Message:     fmt.Sprintf("Agent '%s' added to the team", e.desc.Name),
	}
}

// Remove closes and forgets a dynamic agent. Configured agents are refused.
func (r *Registry) Remove(name string) MemberResult {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return failure(name, "", fmt.Sprintf("Agent '%s' not found", name))
	}
	if e.desc.Provenance == ProvenanceConfigured {
		r.mu.Unlock()
		return failure(name, e.desc.URL, fmt.Sprintf("Cannot remove configured agent '%s'. Only dynamically added agents can be removed dynamically.", name))
	}
	delete(r.entries, name)
	r.order = removeName(r.order, name)
	total := len(r.entries)
	r.mu.Unlock()

	if err := e.conn.Close(); err != nil {
		r.logger.Warn("closing removed agent", "name", name, "error", err)
	}
	r.logger.Info("=== AGENT REMOVED ===", "name", name, "url", e.desc.URL, "total_agents", total)

	return MemberResult{
		Success:   true,
		AgentName: name,
		URL:       e.desc.URL,
		Message:   fmt.Sprintf("Agent '%s' removed from the team", name),
	}
}

func removeName(order []string, name string) []string {
	out := order[:0]
	for _, n := range order {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// Reconnect replaces an agent's connection with a fresh one to its stored
// URL. On failure the existing entry is left untouched.
func (r *Registry) Reconnect(ctx context.Context, name string) MemberResult {
	r.EnsureInitialized(ctx)

	r.mu.RLock()
	e, ok := r.entries[name]
	var url string
	if ok {
		url = e.desc.URL
	}
	r.mu.RUnlock()
	if !ok {
		return failure(name, "", fmt.Sprintf("Agent '%s' not found in registry", name))
	}

	conn, connected := r.connect(ctx, url)
	if !connected {
		return failure(name, url, fmt.Sprintf("Failed to reconnect to agent '%s' at %s", name, url))
	}

	r.mu.Lock()
	current, still := r.entries[name]
	if !still || current.desc.URL != url {
		r.mu.Unlock()
		_ = conn.Close()
		return failure(name, url, fmt.Sprintf("Agent '%s' not found in registry", name))
	}
	old := current.conn
	card := conn.Card()
	now := r.now()
	current.conn = conn
	current.card = card
	current.desc.SupportsStreaming = conn.SupportsStreaming()
	if card != nil {
		current.desc.Description = card.Description
	}
	current.desc.ReconnectedAt = &now
	desc := current.desc
	r.mu.Unlock()

	if err := old.Close(); err != nil {
		r.logger.Warn("closing replaced connection", "name", name, "error", err)
	}
	r.logger.Info("=== AGENT RECONNECTED ===", "name", name, "url", url, "streaming", desc.SupportsStreaming)

	streaming := desc.SupportsStreaming
	return MemberResult{
		Success:     true,
		AgentName:   name,
		Description: desc.Description,
		URL:         url,
		Streaming:   &streaming,
		Message:     fmt.Sprintf("Agent '%s' reconnected", name),
	}
}

func (r *Registry) memberInfoLocked(e *entry) MemberInfo {
	status := StatusDisconnected
	if e.conn.IsConnected() {
		status = StatusConnected
	}
	return MemberInfo{
		Name:          e.desc.Name,
		Description:   e.desc.Description,
		URL:           e.desc.URL,
		Streaming:     e.desc.SupportsStreaming,
		Type:          e.desc.Provenance,
		Status:        status,
		AddedAt:       e.desc.AddedAt,
		ReconnectedAt: e.desc.ReconnectedAt,
	}
}

// List returns every member with provenance and connection counts.
func (r *Registry) List() TeamList {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := TeamList{TeamMembers: make([]MemberInfo, 0, len(r.order))}
	for _, name := range r.order {
		info := r.memberInfoLocked(r.entries[name])
		list.TotalAgents++
		if info.Type == ProvenanceConfigured {
			list.ConfiguredAgents++
		} else {
			list.DynamicAgents++
		}
		if info.Status == StatusConnected {
			list.ConnectedAgents++
		}
		list.TeamMembers = append(list.TeamMembers, info)
	}
	return list
}

// Info returns one member with its agent card.
func (r *Registry) Info(name string) (*MemberDetail, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	detail := &MemberDetail{MemberInfo: r.memberInfoLocked(e)}
	if e.card != nil {
		card := *e.card
		detail.AgentCard = &card
	}
	return detail, true
}

// Names returns every registered name in iteration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Connected returns descriptors of connected agents in iteration order.
func (r *Registry) Connected() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, name := range r.order {
		if e := r.entries[name]; e.conn.IsConnected() {
			out = append(out, e.desc)
		}
	}
	return out
}

// Get returns the connection registered under name.
func (r *Registry) Get(name string) (Remote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Close closes every connection. Entries stay listed as disconnected.
func (r *Registry) Close() {
	r.mu.RLock()
	conns := make(map[string]Remote, len(r.entries))
	for name, e := range r.entries {
		conns[name] = e.conn
	}
	r.mu.RUnlock()

	for name, conn := range conns {
		if err := conn.Close(); err != nil {
			r.logger.Warn("closing agent connection", "name", name, "error", err)
		}
	}
	r.logger.Info("agent registry closed", "closed", len(conns))
}
