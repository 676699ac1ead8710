// Copyright (c) PipeFlow Authors.
// Licensed under the MIT License.

/*
Package orchestrator 提供多 Agent 交付流水线的执行引擎。

# 概述

orchestrator 包实现 PipeFlow 的调度核心：动态 Agent 注册与懒加载、
执行前校验门、按依赖层级的并行执行（带并发窗口上限）、基于检查点的
失败回滚，以及运行状态跟踪与协作式紧急停止。单进程、单次运行互斥。

# 核心接口与类型

  - Orchestrator     — 编排器门面（Execute / Stop / Status / 注册接口）
  - Agent / Loader   — Agent 统一执行契约与懒加载工厂
  - DependencyGraph  — 依赖图协作者接口，LevelGraph 为默认实现
  - ValidationGate   — 校验门，聚合所有校验者裁决为放行/阻断
  - Planner          — 执行计划构建器（层级 × 目标集过滤）
  - LevelExecutor    — 有界并行执行器（信号量槽位、完成即补位）
  - CheckpointStore  — 检查点协作者接口（内存与 Redis 两种实现）
  - EventBus         — 进程内事件总线（run/agent 生命周期事件）

# 执行语义

  - 层级全序：L+1 层在 L 层全部落定前绝不启动
  - 层内无序：同层 Agent 并发执行，完成顺序只取决于各自耗时
  - 失败遏制：单个 Agent 失败不阻止同层兄弟执行，但阻止后续层级
    并触发检查点回滚
  - 加载失败：Loader 失败或返回空视为成功的 no-op，结果摘要中以
    Skipped 区分"真正执行"与"静默跳过"
*/
package orchestrator
