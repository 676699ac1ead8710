// Copyright (c) PipeFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的编排指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
工厂绑定到调用方提供的 Registerer，便于测试隔离与多实例共存。
Collector 满足编排器的 MetricsSink 接口，可直接注入。

# 指标一览

  - agents_registered                — 已注册 Agent 数量 Gauge
  - agent_executions_total           — Agent 执行计数，按 agent/status 分组
  - agent_execution_duration_seconds — Agent 执行耗时 Histogram，按 agent 分组
  - rollbacks_total                  — 检查点回滚计数
*/
package metrics
