// Copyright (c) PipeFlow Authors.
// Licensed under the MIT License.

/*
包 config 提供编排器运行时配置。

# 概述

统一配置加载，支持 YAML 文件 + 环境变量覆盖。
配置优先级: 默认值 → YAML 文件 → 环境变量（PIPEFLOW_ 前缀）。

# 配置项

  - max_concurrency     — 单个层级内并发执行的 Agent 上限（默认 5）
  - validation_enabled  — 是否启用执行前校验门（默认 true）
  - stop_poll_interval  — Stop 排空轮询间隔（默认 100ms）
  - event_buffer_size   — 进程内事件总线缓冲大小（默认 100）
*/
package config
