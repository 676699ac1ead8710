package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// agentRunner executes one agent by name and returns its terminal outcome.
type agentRunner func(ctx context.Context, name string) ExecutionOutcome

// LevelExecutor runs all agents of one level with a bounded concurrency
// window. Slots refill eagerly on completion: up to limit agents stay in
// flight at all times, never more, and never fewer than min(limit,
// remaining). A fixed-batch strategy would let one slow agent idle the
// other slots; the semaphore gate does not.
type LevelExecutor struct {
	limit  int64
	logger *zap.Logger
}

// NewLevelExecutor creates a bounded executor. A non-positive limit is
// clamped to 1.
func NewLevelExecutor(limit int, logger *zap.Logger) *LevelExecutor {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelExecutor{
		limit:  int64(limit),
		logger: logger.With(zap.String("component", "level_executor")),
	}
}

// Run executes every named agent and collects one outcome per agent. Start
// order follows the input order whenever a slot is free; completion order
// depends only on individual durations. An agent's failure never prevents
// its siblings from running; the caller evaluates the level's aggregate
// result after all outcomes have settled.
//
// When ctx is cancelled before every agent has started, the not-yet-started
// remainder settles as failed outcomes carrying the context error.
func (e *LevelExecutor) Run(ctx context.Context, names []string, run agentRunner) []ExecutionOutcome {
	if len(names) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(e.limit)
	results := make(chan ExecutionOutcome, len(names))
	var wg sync.WaitGroup

	started := 0
	for _, name := range names {
		// Blocks until an in-flight agent settles and releases its slot.
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer sem.Release(1)
			results <- run(ctx, name)
		}(name)
	}

	// Cancelled before the whole queue was started: settle the remainder
	// without running it.
	for _, name := range names[started:] {
		results <- ExecutionOutcome{
			AgentName: name,
			Success:   false,
			Error:     ctx.Err().Error(),
		}
	}

	wg.Wait()
	close(results)

	outcomes := make([]ExecutionOutcome, 0, len(names))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}

	e.logger.Debug("level settled",
		zap.Int("agents", len(names)),
		zap.Int("started", started),
	)
	return outcomes
}

// failedNames extracts the names of failed outcomes, in settle order.
func failedNames(outcomes []ExecutionOutcome) []string {
	var failed []string
	for _, o := range outcomes {
		if o.Failed() {
			failed = append(failed, o.AgentName)
		}
	}
	return failed
}
