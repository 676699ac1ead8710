package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/pipeflow/types"
)

func TestLevelGraph_BuildExecutionOrder_Linear(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	g.AddAgent("a", nil)
	g.AddAgent("b", []string{"a"})
	g.AddAgent("c", []string{"b"})

	require.NoError(t, g.BuildExecutionOrder())
	groups := g.ParallelGroups()
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"a"}, groups[0].Agents)
	assert.Equal(t, []string{"b"}, groups[1].Agents)
	assert.Equal(t, []string{"c"}, groups[2].Agents)
}

func TestLevelGraph_BuildExecutionOrder_Diamond(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	g.AddAgent("root", nil)
	g.AddAgent("left", []string{"root"})
	g.AddAgent("right", []string{"root"})
	g.AddAgent("sink", []string{"left", "right"})

	require.NoError(t, g.BuildExecutionOrder())
	groups := g.ParallelGroups()
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"root"}, groups[0].Agents)
	assert.ElementsMatch(t, []string{"left", "right"}, groups[1].Agents)
	assert.Equal(t, []string{"sink"}, groups[2].Agents)
}

func TestLevelGraph_BuildExecutionOrder_Cycle(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	g.AddAgent("a", []string{"b"})
	g.AddAgent("b", []string{"a"})

	err := g.BuildExecutionOrder()
	require.Error(t, err)
	assert.Equal(t, types.ErrGraphCycle, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestLevelGraph_DeferredDependency(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	// "b" depends on an agent that is not registered yet: the edge is
	// deferred, b sits at level 0.
	g.AddAgent("b", []string{"a"})
	require.NoError(t, g.BuildExecutionOrder())
	groups := g.ParallelGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"b"}, groups[0].Agents)

	// Once "a" is registered, the edge takes effect.
	g.AddAgent("a", nil)
	require.NoError(t, g.BuildExecutionOrder())
	groups = g.ParallelGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a"}, groups[0].Agents)
	assert.Equal(t, []string{"b"}, groups[1].Agents)
}

func TestLevelGraph_RemoveAgent(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	g.AddAgent("a", nil)
	g.AddAgent("b", []string{"a"})
	g.RemoveAgent("a")

	require.NoError(t, g.BuildExecutionOrder())
	groups := g.ParallelGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"b"}, groups[0].Agents)
}

func TestLevelGraph_AffectedAgents(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	g.AddAgent("schema", nil)
	g.AddAgent("codegen", []string{"schema"})
	g.AddAgent("tests", []string{"codegen"})
	g.AddAgent("docs", nil)

	assert.Equal(t, []string{"codegen", "schema", "tests"}, g.AffectedAgents([]string{"schema"}))
	assert.Equal(t, []string{"codegen", "tests"}, g.AffectedAgents([]string{"codegen"}))
	assert.Equal(t, []string{"docs"}, g.AffectedAgents([]string{"docs"}))
	assert.Empty(t, g.AffectedAgents([]string{"unknown"}))
}

func TestLevelGraph_AffectedAgents_NonAgentInput(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	// Dependencies may name inputs that are not agents themselves.
	g.AddAgent("codegen", []string{"schema.sql"})
	g.AddAgent("tests", []string{"codegen"})

	assert.Equal(t, []string{"codegen", "tests"}, g.AffectedAgents([]string{"schema.sql"}))
}

func TestLevelGraph_ParallelGroups_ReturnsCopy(t *testing.T) {
	t.Parallel()
	g := NewLevelGraph()
	g.AddAgent("a", nil)
	require.NoError(t, g.BuildExecutionOrder())

	groups := g.ParallelGroups()
	groups[0].Agents[0] = "mutated"
	assert.Equal(t, []string{"a"}, g.ParallelGroups()[0].Agents)
}
