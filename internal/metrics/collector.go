// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现编排器的 MetricsSink 接口
type Collector struct {
	// Agent 指标
	agentsRegistered  prometheus.Gauge
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	// Run 指标
	rollbacksTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器，所有指标注册到给定的 Registerer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.agentsRegistered = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_registered",
			Help:      "Number of agents currently registered",
		},
	)

	c.executionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_executions_total",
			Help:      "Total number of agent executions",
		},
		[]string{"agent", "status"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_execution_duration_seconds",
			Help:      "Agent execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	c.rollbacksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Total number of checkpoint rollbacks",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎭 Agent 指标记录
// =============================================================================

// RegisterAgent 记录 Agent 注册
func (c *Collector) RegisterAgent(name string) {
	c.agentsRegistered.Inc()
}

// RecordExecution 记录一次 Agent 执行结果
func (c *Collector) RecordExecution(name string, success bool, duration time.Duration, errMsg string) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.executionsTotal.WithLabelValues(name, status).Inc()
	c.executionDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordRollback 记录一次检查点回滚
func (c *Collector) RecordRollback() {
	c.rollbacksTotal.Inc()
}
