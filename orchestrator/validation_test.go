package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubValidator returns a fixed verdict, optionally recording call order.
type stubValidator struct {
	verdict ValidationVerdict
	calls   *[]string
}

func (s *stubValidator) ValidateBeforeExecution(ctx context.Context) ValidationVerdict {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.verdict.ValidatorID)
	}
	return s.verdict
}

type panickingValidator struct{}

func (panickingValidator) ValidateBeforeExecution(ctx context.Context) ValidationVerdict {
	panic("schema store offline")
}

func validVerdict(id string) ValidationVerdict {
	return ValidationVerdict{ValidatorID: id, Valid: true}
}

func criticalVerdict(id string) ValidationVerdict {
	return ValidationVerdict{
		ValidatorID: id,
		Valid:       false,
		Errors:      []ValidationIssue{{Message: "broken reference", Severity: SeverityCritical}},
	}
}

func TestValidationGate_EmptyOrDisabledProceeds(t *testing.T) {
	t.Parallel()

	empty := NewValidationGate(true, nil, zap.NewNop())
	result := empty.Run(context.Background())
	assert.True(t, result.CanProceed)
	assert.Empty(t, result.Verdicts)

	disabled := NewValidationGate(false, nil, zap.NewNop())
	disabled.Register(&stubValidator{verdict: criticalVerdict("blocker")})
	result = disabled.Run(context.Background())
	assert.True(t, result.CanProceed)
	assert.Empty(t, result.Verdicts)
}

func TestValidationGate_RunsInRegistrationOrder(t *testing.T) {
	t.Parallel()
	gate := NewValidationGate(true, nil, zap.NewNop())

	var calls []string
	gate.Register(&stubValidator{verdict: validVerdict("first"), calls: &calls})
	gate.Register(&stubValidator{verdict: validVerdict("second"), calls: &calls})
	gate.Register(&stubValidator{verdict: validVerdict("third"), calls: &calls})

	result := gate.Run(context.Background())
	require.True(t, result.CanProceed)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestValidationGate_CriticalErrorBlocks(t *testing.T) {
	t.Parallel()
	gate := NewValidationGate(true, nil, zap.NewNop())
	gate.Register(&stubValidator{verdict: validVerdict("ok")})
	gate.Register(&stubValidator{verdict: criticalVerdict("blocker")})

	result := gate.Run(context.Background())
	assert.False(t, result.CanProceed)
	require.Len(t, result.Verdicts, 2)
	assert.Equal(t, "blocker", result.Verdicts[1].ValidatorID)
}

func TestValidationGate_NonCriticalErrorsDoNotBlock(t *testing.T) {
	t.Parallel()
	gate := NewValidationGate(true, nil, zap.NewNop())
	gate.Register(&stubValidator{verdict: ValidationVerdict{
		ValidatorID: "lint",
		Valid:       false,
		Errors:      []ValidationIssue{{Message: "style issue", Severity: SeverityError}},
		Warnings:    []ValidationIssue{{Message: "deprecated field", Severity: SeverityWarning}},
	}})

	result := gate.Run(context.Background())
	assert.True(t, result.CanProceed)
	require.Len(t, result.Verdicts, 1)
	assert.False(t, result.Verdicts[0].Valid)
}

func TestValidationGate_PanicBecomesInvalidVerdict(t *testing.T) {
	t.Parallel()
	gate := NewValidationGate(true, nil, zap.NewNop())
	gate.Register(panickingValidator{})
	gate.Register(&stubValidator{verdict: validVerdict("survivor")})

	result := gate.Run(context.Background())
	// A panic is reported but never blocks: the recovered verdict carries an
	// ordinary error, not a critical one.
	assert.True(t, result.CanProceed)
	require.Len(t, result.Verdicts, 2)
	assert.Equal(t, "validator-0", result.Verdicts[0].ValidatorID)
	assert.False(t, result.Verdicts[0].Valid)
	assert.Contains(t, result.Verdicts[0].Errors[0].Message, "schema store offline")
	assert.True(t, result.Verdicts[1].Valid)
}

func TestValidationGate_Unregister(t *testing.T) {
	t.Parallel()
	gate := NewValidationGate(true, nil, zap.NewNop())
	blocker := &stubValidator{verdict: criticalVerdict("blocker")}
	gate.Register(blocker)
	gate.Register(&stubValidator{verdict: validVerdict("keeper")})

	gate.Unregister(blocker)

	result := gate.Run(context.Background())
	assert.True(t, result.CanProceed)
	assert.Len(t, result.Verdicts, 1)
}

func TestValidationGate_PublishesAggregateEvent(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(8, zap.NewNop())
	defer bus.Stop()

	events := make(chan Event, 1)
	bus.Subscribe(EventPreExecutionValidation, func(ev Event) {
		events <- ev
	})

	gate := NewValidationGate(true, bus, zap.NewNop())
	gate.Register(&stubValidator{verdict: criticalVerdict("blocker")})
	gate.Run(context.Background())

	ev := waitForEvent(t, events)
	assert.Equal(t, false, ev.Payload["can_proceed"])
}
