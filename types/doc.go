// Copyright (c) PipeFlow Authors.
// Licensed under the MIT License.

/*
包 types 提供 PipeFlow 全框架共享的结构化错误类型。

# 概述

types 包定义统一的错误码体系与 Error 结构体，编排引擎、依赖图与
配置层均通过本包表达失败语义，便于调用方按错误码分支处理。

# 核心类型

  - ErrorCode — 统一错误码（VALIDATION_BLOCKED、ORCHESTRATION_CONFLICT、
    AGENT_EXECUTION_FAILED、GRAPH_CYCLE 等）
  - Error     — 结构化错误，携带错误码、消息、可重试标记与底层原因，
    支持 errors.Is / errors.As 链式匹配

# 主要能力

  - 链式构造：NewError(...).WithCause(...).WithRetryable(...)
  - 错误码提取：GetErrorCode / IsCode / IsRetryable
*/
package types
