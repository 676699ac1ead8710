package orchestrator

import (
	"fmt"

	"go.uber.org/zap"
)

// PlanGroup is one parallel group of an execution plan.
type PlanGroup struct {
	Level  int      `json:"level"`
	Agents []string `json:"agents"`
}

// ExecutionPlan is the ordered list of parallel groups produced for one run.
// Rebuilt on every execute call, never persisted.
type ExecutionPlan struct {
	Groups         []PlanGroup `json:"groups"`
	TotalAgents    int         `json:"total_agents"`
	AffectedInputs []string    `json:"affected_inputs"`
}

// Planner combines the dependency graph's levels with the set of agents that
// actually need to run.
type Planner struct {
	graph    DependencyGraph
	registry *Registry
	logger   *zap.Logger
}

// NewPlanner creates an execution planner.
func NewPlanner(graph DependencyGraph, registry *Registry, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		graph:    graph,
		registry: registry,
		logger:   logger.With(zap.String("component", "execution_planner")),
	}
}

// BuildPlan builds the plan for the given changed inputs. An empty input
// list targets every registered agent; otherwise the target set is the
// graph's impact set for those inputs. Each level is filtered down to the
// target set and empty levels are dropped. TotalAgents counts the target
// set, not the sum over groups: a target agent that appears in no level is
// simply absent from the plan, no error is raised here.
func (p *Planner) BuildPlan(changed []string) (*ExecutionPlan, error) {
	var targets []string
	if len(changed) == 0 {
		targets = p.registry.Names()
	} else {
		targets = p.graph.AffectedAgents(changed)
	}

	targetSet := make(map[string]struct{}, len(targets))
	for _, name := range targets {
		targetSet[name] = struct{}{}
	}

	if err := p.graph.BuildExecutionOrder(); err != nil {
		return nil, fmt.Errorf("build execution order: %w", err)
	}

	plan := &ExecutionPlan{
		Groups:         make([]PlanGroup, 0),
		TotalAgents:    len(targetSet),
		AffectedInputs: append([]string(nil), changed...),
	}

	for _, group := range p.graph.ParallelGroups() {
		agents := make([]string, 0, len(group.Agents))
		for _, name := range group.Agents {
			if _, ok := targetSet[name]; ok {
				agents = append(agents, name)
			}
		}
		if len(agents) == 0 {
			continue
		}
		plan.Groups = append(plan.Groups, PlanGroup{Level: group.Level, Agents: agents})
	}

	p.logger.Debug("execution plan built",
		zap.Int("total_agents", plan.TotalAgents),
		zap.Int("groups", len(plan.Groups)),
		zap.Strings("changed_inputs", changed),
	)
	return plan, nil
}
