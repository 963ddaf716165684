package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Agent is anything that can process a RunRequest into a RunResult.
// *Loop is the only production implementation.
type Agent interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// ResolverFunc lazily builds (or looks up) an Agent for an agent key
// not already held by a Router. Used in managed mode, where agents are
// defined in the database rather than config.json.
type ResolverFunc func(agentKey string) (Agent, error)

type agentEntry struct {
	agent Agent
}

// Router is the process-wide pool of agent instances keyed by agent ID
// (or key). In standalone mode every agent is created eagerly and
// registered via Register; in managed mode entries are created
// on demand by the configured resolver and cached until invalidated.
type Router struct {
	mu       sync.RWMutex
	agents   map[string]*agentEntry
	resolver ResolverFunc
}

// NewRouter creates an empty pool with no agents and no resolver.
func NewRouter() *Router {
	return &Router{agents: make(map[string]*agentEntry)}
}

// SetResolver installs the lazy-resolution function used by Get when an
// agent key isn't already cached. Passing nil disables lazy resolution.
func (r *Router) SetResolver(fn ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolver = fn
}

// Register adds or replaces an eagerly-created agent under id.
func (r *Router) Register(id string, a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[id] = &agentEntry{agent: a}
}

// Get returns the agent registered under id, resolving and caching it
// via the configured resolver on a miss. Returns an error if id is
// unknown and no resolver is configured, or resolution itself fails.
func (r *Router) Get(id string) (Agent, error) {
	r.mu.RLock()
	entry, ok := r.agents[id]
	resolver := r.resolver
	r.mu.RUnlock()

	if ok {
		return entry.agent, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("agent %s not found", id)
	}

	a, err := resolver(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.agents[id] = &agentEntry{agent: a}
	r.mu.Unlock()
	return a, nil
}

// List returns the IDs of every currently cached agent. Agents only
// reachable via the resolver but not yet resolved are not included.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// InvalidateAgent removes an agent from the router cache, forcing
// re-resolution on the next Get. Used when agent config is updated via API.
func (r *Router) InvalidateAgent(agentKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentKey)
	slog.Debug("invalidated agent cache", "agent", agentKey)
}

// InvalidateAll clears the entire agent cache, forcing all agents to
// re-resolve. Used when global tools change (custom tools reload).
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*agentEntry)
	slog.Debug("invalidated all agent caches")
}
