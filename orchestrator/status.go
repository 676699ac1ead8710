package orchestrator

import (
	"sort"
	"sync"
	"time"
)

// ExecutionOutcome is the terminal record of one agent within one run.
// Written exactly once per agent per run; immutable once written.
type ExecutionOutcome struct {
	AgentName   string        `json:"agent_name"`
	Success     bool          `json:"success"`
	AgentLoaded bool          `json:"agent_loaded"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Failed reports whether the outcome is a real execution failure.
func (o ExecutionOutcome) Failed() bool {
	return !o.Success
}

// Skipped reports whether the agent was silently skipped because no handle
// could be loaded. Skipped outcomes still count as successful.
func (o ExecutionOutcome) Skipped() bool {
	return o.Success && !o.AgentLoaded
}

// RunStatus is a point-in-time snapshot of the tracker state.
type RunStatus struct {
	IsExecuting      bool                        `json:"is_executing"`
	CurrentlyRunning []string                    `json:"currently_running"`
	Outcomes         map[string]ExecutionOutcome `json:"outcomes"`
	CompletedAgents  int                         `json:"completed_agents"`
}

// statusTracker records per-agent outcomes and the single-writer execution
// gate. All mutation goes through this mutex: the original design relied on
// a single logical thread, goroutines require real serialization here.
type statusTracker struct {
	mu            sync.Mutex
	executing     bool
	stopRequested bool
	running       map[string]struct{}
	outcomes      map[string]ExecutionOutcome
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		running:  make(map[string]struct{}),
		outcomes: make(map[string]ExecutionOutcome),
	}
}

// beginRun attempts to take the execution gate. Returns false, with no
// state mutated, when another run is already in progress.
func (t *statusTracker) beginRun() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.executing {
		return false
	}
	t.executing = true
	t.stopRequested = false
	t.outcomes = make(map[string]ExecutionOutcome)
	return true
}

// endRun releases the execution gate.
func (t *statusTracker) endRun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executing = false
}

// requestStop clears the execution gate and flags the run loop to abort at
// the next level boundary. Returns false when no run is in progress.
func (t *statusTracker) requestStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.executing {
		return false
	}
	t.executing = false
	t.stopRequested = true
	return true
}

func (t *statusTracker) stopPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopRequested
}

func (t *statusTracker) isExecuting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executing
}

func (t *statusTracker) markRunning(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[name] = struct{}{}
}

func (t *statusTracker) markDone(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, name)
}

func (t *statusTracker) runningCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}

// record stores an outcome. First write wins; outcomes are immutable.
func (t *statusTracker) record(outcome ExecutionOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.outcomes[outcome.AgentName]; exists {
		return
	}
	t.outcomes[outcome.AgentName] = outcome
}

func (t *statusTracker) outcome(name string) (ExecutionOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.outcomes[name]
	return o, ok
}

// snapshot copies the tracker state for status queries.
func (t *statusTracker) snapshot() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	running := make([]string, 0, len(t.running))
	for name := range t.running {
		running = append(running, name)
	}
	sort.Strings(running)

	outcomes := make(map[string]ExecutionOutcome, len(t.outcomes))
	for name, o := range t.outcomes {
		outcomes[name] = o
	}

	return RunStatus{
		IsExecuting:      t.executing,
		CurrentlyRunning: running,
		Outcomes:         outcomes,
		CompletedAgents:  len(outcomes),
	}
}
