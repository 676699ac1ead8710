package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollector_RegisterAgent(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("pipeflow", reg, zap.NewNop())

	c.RegisterAgent("schema-designer")
	c.RegisterAgent("code-generator")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.agentsRegistered))
}

func TestCollector_RecordExecution(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("pipeflow", reg, zap.NewNop())

	c.RecordExecution("schema-designer", true, 120*time.Millisecond, "")
	c.RecordExecution("schema-designer", true, 80*time.Millisecond, "")
	c.RecordExecution("test-runner", false, 10*time.Millisecond, "boom")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("schema-designer", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("test-runner", "failure")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCollector_RecordRollback(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("pipeflow", reg, zap.NewNop())

	c.RecordRollback()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rollbacksTotal))
}
