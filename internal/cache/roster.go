package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/kmerritt/scorecard/internal/types"
)

// Roster maintains the in-memory agent roster used for name resolution.
// Storage of record-level entities lives in the store; the roster is
// pushed by the workforce system and only needs to survive until the
// next push.
type Roster struct {
	agents    map[string]types.Agent // agentID -> identity
	updatedAt time.Time
	mu        sync.RWMutex
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		agents: make(map[string]types.Agent),
	}
}

// Replace swaps the whole roster for a freshly pushed one
func (r *Roster) Replace(agents []types.Agent) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents = make(map[string]types.Agent, len(agents))
	for _, agent := range agents {
		if agent.ID == "" {
			continue
		}
		r.agents[agent.ID] = agent
	}
	r.updatedAt = time.Now()
	return len(r.agents)
}

// Upsert adds or updates a single agent
func (r *Roster) Upsert(agent types.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID] = agent
	r.updatedAt = time.Now()
}

// Get returns one agent by ID
func (r *Roster) Get(agentID string) (types.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[agentID]
	return agent, ok
}

// Deactivate marks an agent inactive without removing the identity
func (r *Roster) Deactivate(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return false
	}
	agent.Status = types.AgentInactive
	r.agents[agentID] = agent
	r.updatedAt = time.Now()
	return true
}

// Active returns the active agents sorted by canonical name, the shape
// the resolver consumes.
func (r *Roster) Active() []types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]types.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		if agent.Status == types.AgentActive {
			agents = append(agents, agent)
		}
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CanonicalName < agents[j].CanonicalName
	})
	return agents
}

// All returns every agent regardless of status, sorted by canonical name
func (r *Roster) All() []types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]types.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CanonicalName < agents[j].CanonicalName
	})
	return agents
}

// Count returns the total number of agents in the roster
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// UpdatedAt returns when the roster last changed
func (r *Roster) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}
