package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPlanner(t *testing.T) (*Planner, *Registry, *LevelGraph) {
	t.Helper()
	graph := NewLevelGraph()
	registry := NewRegistry(graph, NopSink{}, zap.NewNop())
	return NewPlanner(graph, registry, zap.NewNop()), registry, graph
}

func TestPlanner_BuildPlan_AllAgents(t *testing.T) {
	t.Parallel()
	planner, registry, _ := newTestPlanner(t)
	registry.Register("a", nil)
	registry.Register("b", nil, "a")
	registry.Register("c", nil, "a")

	plan, err := planner.BuildPlan(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.TotalAgents)
	require.Len(t, plan.Groups, 2)
	assert.Equal(t, 0, plan.Groups[0].Level)
	assert.Equal(t, []string{"a"}, plan.Groups[0].Agents)
	assert.ElementsMatch(t, []string{"b", "c"}, plan.Groups[1].Agents)
	assert.Empty(t, plan.AffectedInputs)
}

func TestPlanner_BuildPlan_ChangedInputsFilter(t *testing.T) {
	t.Parallel()
	planner, registry, _ := newTestPlanner(t)
	registry.Register("schema", nil)
	registry.Register("codegen", nil, "schema")
	registry.Register("docs", nil)

	plan, err := planner.BuildPlan([]string{"schema"})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.TotalAgents)
	assert.Equal(t, []string{"schema"}, plan.AffectedInputs)

	// "docs" is unaffected: the level that held only docs is dropped.
	for _, group := range plan.Groups {
		assert.NotContains(t, group.Agents, "docs")
	}
}

func TestPlanner_BuildPlan_EmptyLevelsDropped(t *testing.T) {
	t.Parallel()
	planner, registry, _ := newTestPlanner(t)
	registry.Register("a", nil)
	registry.Register("b", nil, "a")
	registry.Register("c", nil, "b")

	// Only c is affected; levels 0 and 1 are filtered empty and dropped.
	plan, err := planner.BuildPlan([]string{"c"})
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, []string{"c"}, plan.Groups[0].Agents)
	assert.Equal(t, 2, plan.Groups[0].Level)
	assert.Equal(t, 1, plan.TotalAgents)
}

func TestPlanner_BuildPlan_CycleError(t *testing.T) {
	t.Parallel()
	planner, registry, _ := newTestPlanner(t)
	registry.Register("a", nil, "b")
	registry.Register("b", nil, "a")

	_, err := planner.BuildPlan(nil)
	require.Error(t, err)
}

func TestPlanner_BuildPlan_NoAgents(t *testing.T) {
	t.Parallel()
	planner, _, _ := newTestPlanner(t)

	plan, err := planner.BuildPlan(nil)
	require.NoError(t, err)
	assert.Zero(t, plan.TotalAgents)
	assert.Empty(t, plan.Groups)
}

func TestPlanner_BuildPlan_UnknownChangedInput(t *testing.T) {
	t.Parallel()
	planner, registry, _ := newTestPlanner(t)
	registry.Register("a", nil)

	plan, err := planner.BuildPlan([]string{"never-registered"})
	require.NoError(t, err)
	assert.Zero(t, plan.TotalAgents)
	assert.Empty(t, plan.Groups)
}
