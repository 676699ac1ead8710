package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Severity classifies validation findings. Only critical errors block a run.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// ValidationIssue is a single finding reported by a validation agent.
type ValidationIssue struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationVerdict is one validator's pre-run verdict.
type ValidationVerdict struct {
	ValidatorID string            `json:"validator_id"`
	Valid       bool              `json:"valid"`
	Errors      []ValidationIssue `json:"errors,omitempty"`
	Warnings    []ValidationIssue `json:"warnings,omitempty"`
}

// HasCriticalError reports whether the verdict contains at least one
// critical-severity error.
func (v ValidationVerdict) HasCriticalError() bool {
	for _, issue := range v.Errors {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ValidationAgent is the pre-execution validation collaborator contract.
type ValidationAgent interface {
	ValidateBeforeExecution(ctx context.Context) ValidationVerdict
}

// ValidationResult aggregates every validator's verdict into a single
// proceed/block decision.
type ValidationResult struct {
	CanProceed bool                `json:"can_proceed"`
	Verdicts   []ValidationVerdict `json:"verdicts"`
}

// ValidationGate holds the registered validation agents and runs them, in
// registration order, before a run is admitted.
type ValidationGate struct {
	mu         sync.Mutex
	validators []ValidationAgent
	enabled    bool
	bus        EventBus
	logger     *zap.Logger
}

// NewValidationGate creates a validation gate. A disabled gate always
// admits the run.
func NewValidationGate(enabled bool, bus EventBus, logger *zap.Logger) *ValidationGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = nopBus{}
	}
	return &ValidationGate{
		enabled: enabled,
		bus:     bus,
		logger:  logger.With(zap.String("component", "validation_gate")),
	}
}

// Register appends a validator. A nil validator is rejected: logged and
// ignored.
func (g *ValidationGate) Register(v ValidationAgent) {
	if v == nil {
		g.logger.Warn("rejecting nil validation agent")
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.validators = append(g.validators, v)
	g.logger.Info("validation agent registered", zap.Int("total", len(g.validators)))
}

// Unregister removes a previously registered validator by identity.
func (g *ValidationGate) Unregister(v ValidationAgent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, registered := range g.validators {
		if registered == v {
			g.validators = append(g.validators[:i], g.validators[i+1:]...)
			g.logger.Info("validation agent unregistered", zap.Int("total", len(g.validators)))
			return
		}
	}
}

// Run invokes every validator sequentially and aggregates their verdicts.
// The run is blocked only when some verdict is invalid and carries at least
// one critical error; ordinary errors and warnings never block. A validator
// that panics produces an invalid verdict with the failure message. The
// aggregated result is published on the event bus before returning.
func (g *ValidationGate) Run(ctx context.Context) ValidationResult {
	g.mu.Lock()
	validators := append([]ValidationAgent(nil), g.validators...)
	enabled := g.enabled
	g.mu.Unlock()

	if !enabled || len(validators) == 0 {
		return ValidationResult{CanProceed: true, Verdicts: []ValidationVerdict{}}
	}

	result := ValidationResult{CanProceed: true, Verdicts: make([]ValidationVerdict, 0, len(validators))}
	for i, v := range validators {
		verdict := g.runValidator(ctx, i, v)
		result.Verdicts = append(result.Verdicts, verdict)
		if !verdict.Valid && verdict.HasCriticalError() {
			result.CanProceed = false
		}
	}

	g.bus.Publish(Event{
		Type: EventPreExecutionValidation,
		Payload: map[string]any{
			"can_proceed": result.CanProceed,
			"verdicts":    result.Verdicts,
		},
	})

	if !result.CanProceed {
		g.logger.Warn("pre-execution validation blocked the run",
			zap.Int("verdicts", len(result.Verdicts)),
		)
	}
	return result
}

func (g *ValidationGate) runValidator(ctx context.Context, index int, v ValidationAgent) (verdict ValidationVerdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("validation agent panicked",
				zap.Int("index", index),
				zap.Any("recover", r),
			)
			verdict = ValidationVerdict{
				ValidatorID: fmt.Sprintf("validator-%d", index),
				Valid:       false,
				Errors: []ValidationIssue{
					{Message: fmt.Sprintf("validator panicked: %v", r), Severity: SeverityError},
				},
			}
		}
	}()
	return v.ValidateBeforeExecution(ctx)
}
