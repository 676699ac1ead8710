package orchestrator

import (
	"sort"
	"sync"

	"github.com/BaSui01/pipeflow/types"
)

// Group is one topological level of the execution order. All agents in a
// group may run concurrently once every earlier group has completed.
type Group struct {
	Level  int
	Agents []string
}

// DependencyGraph stores agent dependency edges and produces the parallel
// execution order. The orchestrator consumes this interface; LevelGraph is
// the default in-process implementation.
type DependencyGraph interface {
	// AddAgent records an agent and its dependencies. Re-adding an existing
	// agent replaces its dependency list.
	AddAgent(name string, deps []string)
	// RemoveAgent removes an agent and its outgoing edges.
	RemoveAgent(name string)
	// BuildExecutionOrder (re)computes the topological levels. Returns an
	// error when the dependency edges contain a cycle.
	BuildExecutionOrder() error
	// ParallelGroups returns the levels computed by the last successful
	// BuildExecutionOrder, ordered by ascending level.
	ParallelGroups() []Group
	// AffectedAgents returns the agents impacted by the given changed
	// inputs: the inputs themselves (when registered) plus every transitive
	// dependent.
	AffectedAgents(changed []string) []string
}

// LevelGraph is a layered topological-order dependency graph.
//
// Edges referencing agents that have not been added yet are deferred: they
// do not participate in leveling or impact computation until the dependency
// itself is registered.
type LevelGraph struct {
	mu     sync.RWMutex
	deps   map[string][]string
	groups []Group
}

// NewLevelGraph creates an empty dependency graph.
func NewLevelGraph() *LevelGraph {
	return &LevelGraph{
		deps: make(map[string][]string),
	}
}

// AddAgent records an agent and its dependency list.
func (g *LevelGraph) AddAgent(name string, deps []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deps[name] = append([]string(nil), deps...)
}

// RemoveAgent removes an agent from the graph.
func (g *LevelGraph) RemoveAgent(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.deps, name)
}

// BuildExecutionOrder computes layered topological levels with Kahn's
// algorithm. Level 0 holds agents with no registered dependencies; level
// N+1 holds agents whose registered dependencies all sit in levels <= N.
func (g *LevelGraph) BuildExecutionOrder() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	indegree := make(map[string]int, len(g.deps))
	dependents := make(map[string][]string, len(g.deps))
	for name, deps := range g.deps {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range deps {
			if _, registered := g.deps[dep]; !registered {
				// Deferred edge: dependency not registered yet.
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	current := make([]string, 0, len(indegree))
	for name, deg := range indegree {
		if deg == 0 {
			current = append(current, name)
		}
	}

	groups := make([]Group, 0)
	placed := 0
	for level := 0; len(current) > 0; level++ {
		sort.Strings(current)
		groups = append(groups, Group{Level: level, Agents: current})
		placed += len(current)

		var next []string
		for _, name := range current {
			for _, dependent := range dependents[name] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if placed != len(indegree) {
		cyclic := make([]string, 0)
		for name, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return types.NewErrorf(types.ErrGraphCycle, "dependency cycle involving agents %v", cyclic)
	}

	g.groups = groups
	return nil
}

// ParallelGroups returns a copy of the computed levels.
func (g *LevelGraph) ParallelGroups() []Group {
	g.mu.RLock()
	defer g.mu.RUnlock()

	groups := make([]Group, len(g.groups))
	for i, grp := range g.groups {
		groups[i] = Group{
			Level:  grp.Level,
			Agents: append([]string(nil), grp.Agents...),
		}
	}
	return groups
}

// AffectedAgents walks the dependent closure of the changed inputs.
func (g *LevelGraph) AffectedAgents(changed []string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependents := make(map[string][]string, len(g.deps))
	for name, deps := range g.deps {
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	affected := make(map[string]struct{})
	queue := make([]string, 0, len(changed))
	for _, name := range changed {
		if _, registered := g.deps[name]; registered {
			if _, seen := affected[name]; !seen {
				affected[name] = struct{}{}
				queue = append(queue, name)
			}
		} else {
			// Changed input that is not itself an agent still impacts
			// agents depending on it by name.
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dependent := range dependents[name] {
			if _, seen := affected[dependent]; !seen {
				affected[dependent] = struct{}{}
				queue = append(queue, dependent)
			}
		}
	}

	result := make([]string, 0, len(affected))
	for name := range affected {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
