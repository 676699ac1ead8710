package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/pipeflow/config"
	"github.com/BaSui01/pipeflow/types"
)

// MetricsSink receives agent registration and execution measurements. The
// orchestrator only consumes this interface; internal/metrics provides the
// Prometheus implementation.
type MetricsSink interface {
	RegisterAgent(name string)
	RecordExecution(name string, success bool, duration time.Duration, errMsg string)
	RecordRollback()
}

// NopSink discards all measurements.
type NopSink struct{}

func (NopSink) RegisterAgent(string)                                {}
func (NopSink) RecordExecution(string, bool, time.Duration, string) {}
func (NopSink) RecordRollback()                                     {}

// ExecuteResult summarizes one successful run. Skipped lists agents whose
// loader produced no handle: they count as successful no-ops but are kept
// apart from Completed so callers can tell "ran" from "silently skipped".
type ExecuteResult struct {
	RunID     string                      `json:"run_id"`
	Outcomes  map[string]ExecutionOutcome `json:"outcomes"`
	Completed []string                    `json:"completed"`
	Skipped   []string                    `json:"skipped"`
	Duration  time.Duration               `json:"duration"`
}

// ValidationBlockedError rejects a run before any checkpoint is opened or
// any agent executes.
type ValidationBlockedError struct {
	Result ValidationResult
}

func (e *ValidationBlockedError) Error() string {
	critical := 0
	for _, v := range e.Result.Verdicts {
		if !v.Valid && v.HasCriticalError() {
			critical++
		}
	}
	return fmt.Sprintf("[%s] pre-execution validation blocked the run (%d blocking verdicts)",
		types.ErrValidationBlocked, critical)
}

// Orchestrator coordinates dependency-ordered, level-by-level parallel
// execution of pipeline agents with checkpoint-based failure recovery.
// Single-process, single-run-at-a-time: a second Execute while one is in
// progress is rejected immediately.
type Orchestrator struct {
	cfg      config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	graph    DependencyGraph
	registry *Registry
	gate     *ValidationGate
	planner  *Planner
	executor *LevelExecutor
	store    CheckpointStore
	metrics  MetricsSink
	bus      EventBus
	state    *statusTracker
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithDependencyGraph injects an external dependency graph.
func WithDependencyGraph(graph DependencyGraph) Option {
	return func(o *Orchestrator) { o.graph = graph }
}

// WithCheckpointStore injects the rollback collaborator.
func WithCheckpointStore(store CheckpointStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithMetricsSink injects the metrics collaborator.
func WithMetricsSink(sink MetricsSink) Option {
	return func(o *Orchestrator) { o.metrics = sink }
}

// WithEventBus injects the pub/sub collaborator.
func WithEventBus(bus EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// New constructs an Orchestrator. Collaborators not injected via options
// fall back to working in-process defaults: a LevelGraph, a memory
// checkpoint store, a nop metrics sink, and an in-process event bus.
func New(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:    cfg,
		tracer: otel.Tracer("pipeflow/orchestrator"),
		state:  newStatusTracker(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	if o.graph == nil {
		o.graph = NewLevelGraph()
	}
	if o.store == nil {
		o.store = NewMemoryCheckpointStore()
	}
	if o.metrics == nil {
		o.metrics = NopSink{}
	}
	if o.bus == nil {
		o.bus = NewEventBus(o.cfg.EventBufferSize, o.logger)
	}

	o.registry = NewRegistry(o.graph, o.metrics, o.logger)
	o.gate = NewValidationGate(o.cfg.ValidationEnabled, o.bus, o.logger)
	o.planner = NewPlanner(o.graph, o.registry, o.logger)
	o.executor = NewLevelExecutor(o.cfg.MaxConcurrency, o.logger)
	return o, nil
}

// RegisterAgent registers an agent loader with its dependencies.
// Re-registering an existing name overwrites it.
func (o *Orchestrator) RegisterAgent(name string, loader Loader, deps ...string) {
	o.registry.Register(name, loader, deps...)
}

// UnregisterAgent removes an agent and any cached handle.
func (o *Orchestrator) UnregisterAgent(name string) {
	o.registry.Unregister(name)
}

// RegisterValidationAgent adds a pre-execution validator.
func (o *Orchestrator) RegisterValidationAgent(v ValidationAgent) {
	o.gate.Register(v)
}

// UnregisterValidationAgent removes a pre-execution validator.
func (o *Orchestrator) UnregisterValidationAgent(v ValidationAgent) {
	o.gate.Unregister(v)
}

// EventBus exposes the bus for subscribers.
func (o *Orchestrator) EventBus() EventBus {
	return o.bus
}

// BuildExecutionPlan builds the plan for the given changed inputs without
// executing it.
func (o *Orchestrator) BuildExecutionPlan(changed ...string) (*ExecutionPlan, error) {
	return o.planner.BuildPlan(changed)
}

// Status returns a snapshot of the current run state.
func (o *Orchestrator) Status() RunStatus {
	return o.state.snapshot()
}

// Execute runs every agent affected by the changed inputs (all registered
// agents when none are given), level by level, inside a checkpoint
// boundary. On any level failure the checkpoint is rolled back and no
// further level starts; on full success it is committed once.
func (o *Orchestrator) Execute(ctx context.Context, changed ...string) (*ExecuteResult, error) {
	if !o.state.beginRun() {
		return nil, types.NewError(types.ErrOrchestrationConflict, "execution already in progress")
	}
	defer o.state.endRun()

	runID := uuid.NewString()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.execute",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.StringSlice("run.changed_inputs", changed),
		))
	defer span.End()

	logger := o.logger.With(zap.String("run_id", runID))
	logger.Info("run starting", zap.Strings("changed_inputs", changed))

	// Validation precedes any resource allocation.
	validation := o.gate.Run(ctx)
	if !validation.CanProceed {
		span.SetStatus(codes.Error, "validation blocked")
		return nil, &ValidationBlockedError{Result: validation}
	}

	checkpointID, err := o.store.CreateCheckpoint(ctx, runID, map[string]any{
		"changed_inputs": changed,
		"started_at":     start,
	})
	if err != nil {
		span.SetStatus(codes.Error, "checkpoint failed")
		return nil, types.NewError(types.ErrCheckpointFailed, "create checkpoint").WithCause(err)
	}

	plan, err := o.planner.BuildPlan(changed)
	if err != nil {
		// The checkpoint guards no side effects yet; release it.
		if rbErr := o.store.Rollback(ctx, checkpointID, "execution plan build failed"); rbErr != nil {
			logger.Error("rollback after plan failure failed", zap.Error(rbErr))
		}
		span.SetStatus(codes.Error, "plan failed")
		return nil, fmt.Errorf("build execution plan: %w", err)
	}

	o.bus.Publish(Event{
		Type:  EventRunStarted,
		RunID: runID,
		Payload: map[string]any{
			"total_agents":  plan.TotalAgents,
			"groups":        len(plan.Groups),
			"checkpoint_id": checkpointID,
		},
	})

	for _, group := range plan.Groups {
		if o.state.stopPending() {
			return nil, o.abortRun(ctx, span, logger, runID, checkpointID, "run stopped before level", group.Level, nil)
		}

		logger.Info("level starting",
			zap.Int("level", group.Level),
			zap.Strings("agents", group.Agents),
		)

		outcomes := o.executor.Run(ctx, group.Agents, func(ctx context.Context, name string) ExecutionOutcome {
			return o.executeAgent(ctx, runID, name)
		})
		for _, outcome := range outcomes {
			// First write wins, so agents the executor settled without
			// starting are recorded here.
			o.state.record(outcome)
		}

		if failed := failedNames(outcomes); len(failed) > 0 {
			return nil, o.abortRun(ctx, span, logger, runID, checkpointID,
				"agents failed: "+strings.Join(failed, ", "), group.Level, failed)
		}
	}

	if err := o.store.CommitCheckpoint(ctx, checkpointID); err != nil {
		span.SetStatus(codes.Error, "commit failed")
		return nil, types.NewError(types.ErrCheckpointFailed, "commit checkpoint").WithCause(err)
	}

	result := o.buildResult(runID, time.Since(start))
	o.bus.Publish(Event{
		Type:  EventRunCompleted,
		RunID: runID,
		Payload: map[string]any{
			"completed": len(result.Completed),
			"skipped":   len(result.Skipped),
			"duration":  result.Duration,
		},
	})
	logger.Info("run completed",
		zap.Int("completed", len(result.Completed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// abortRun rolls the checkpoint back and fails the run. A rollback failure
// propagates to the caller unwrapped from the run failure.
func (o *Orchestrator) abortRun(ctx context.Context, span trace.Span, logger *zap.Logger, runID, checkpointID, reason string, level int, failed []string) error {
	logger.Error("run aborting",
		zap.Int("level", level),
		zap.String("reason", reason),
	)
	if err := o.store.Rollback(ctx, checkpointID, reason); err != nil {
		span.SetStatus(codes.Error, "rollback failed")
		return types.NewError(types.ErrRollbackFailed, "rollback checkpoint "+checkpointID).WithCause(err)
	}
	o.metrics.RecordRollback()

	o.bus.Publish(Event{
		Type:  EventRunFailed,
		RunID: runID,
		Payload: map[string]any{
			"level":         level,
			"reason":        reason,
			"failed_agents": failed,
			"checkpoint_id": checkpointID,
		},
	})
	span.SetStatus(codes.Error, reason)

	if len(failed) == 0 {
		return types.NewErrorf(types.ErrRunStopped, "run %s stopped at level %d", runID, level)
	}
	return types.NewErrorf(types.ErrAgentExecutionFailed, "run %s failed at level %d: %s", runID, level, reason)
}

// executeAgent runs one agent to a terminal outcome. A missing handle is a
// successful no-op, a raised error is a failed outcome; either way the
// outcome is recorded before the level evaluates it, and currentlyRunning
// is cleaned up regardless.
func (o *Orchestrator) executeAgent(ctx context.Context, runID, name string) ExecutionOutcome {
	o.state.markRunning(name)
	defer o.state.markDone(name)

	ctx, span := o.tracer.Start(ctx, "orchestrator.agent",
		trace.WithAttributes(attribute.String("agent.name", name)))
	defer span.End()

	o.bus.Publish(Event{Type: EventAgentStarted, RunID: runID, Agent: name})

	start := time.Now()
	outcome := ExecutionOutcome{
		AgentName: name,
		StartedAt: start,
	}

	handle, loaded := o.registry.Load(ctx, name)
	if !loaded {
		outcome.Success = true
		outcome.AgentLoaded = false
		outcome.Duration = time.Since(start)
		o.state.record(outcome)
		o.metrics.RecordExecution(name, true, outcome.Duration, "")
		o.bus.Publish(Event{
			Type: EventAgentCompleted, RunID: runID, Agent: name,
			Payload: map[string]any{"skipped": true},
		})
		return outcome
	}

	outcome.AgentLoaded = true
	err := runAgent(ctx, handle)
	outcome.Duration = time.Since(start)

	if err != nil {
		outcome.Success = false
		outcome.Error = err.Error()
		o.state.record(outcome)
		o.metrics.RecordExecution(name, false, outcome.Duration, outcome.Error)
		span.SetStatus(codes.Error, outcome.Error)
		o.bus.Publish(Event{
			Type: EventAgentFailed, RunID: runID, Agent: name,
			Payload: map[string]any{"error": outcome.Error},
		})
		o.logger.Error("agent failed",
			zap.String("run_id", runID),
			zap.String("agent", name),
			zap.Duration("duration", outcome.Duration),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Success = true
	o.state.record(outcome)
	o.metrics.RecordExecution(name, true, outcome.Duration, "")
	o.bus.Publish(Event{Type: EventAgentCompleted, RunID: runID, Agent: name})
	return outcome
}

// runAgent invokes the handle, converting a panic into an error so a
// misbehaving agent fails its own outcome instead of the process.
func runAgent(ctx context.Context, agent Agent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()
	return agent.Run(ctx)
}

func (o *Orchestrator) buildResult(runID string, duration time.Duration) *ExecuteResult {
	status := o.state.snapshot()
	result := &ExecuteResult{
		RunID:     runID,
		Outcomes:  status.Outcomes,
		Completed: make([]string, 0, len(status.Outcomes)),
		Skipped:   make([]string, 0),
		Duration:  duration,
	}
	for name, outcome := range status.Outcomes {
		if outcome.Skipped() {
			result.Skipped = append(result.Skipped, name)
		} else if outcome.Success {
			result.Completed = append(result.Completed, name)
		}
	}
	sort.Strings(result.Completed)
	sort.Strings(result.Skipped)
	return result
}

// Stop requests a cooperative stop. With no run in progress it is a logged
// no-op. Otherwise it clears the execution gate immediately; agents already
// in flight are not interrupted, so the call polls until currentlyRunning
// drains. An agent that never returns blocks Stop until ctx is cancelled.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if !o.state.requestStop() {
		o.logger.Info("stop requested with no run in progress")
		return nil
	}

	o.logger.Info("stop requested, draining in-flight agents")
	ticker := time.NewTicker(o.cfg.StopPollInterval)
	defer ticker.Stop()

	for {
		if o.state.runningCount() == 0 {
			o.logger.Info("stop complete")
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
