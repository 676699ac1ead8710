package orchestrator

import (
	"context"
	"fmt"
)

// Agent is the canonical execution contract every pipeline agent exposes to
// the scheduler. Legacy agents with other entry points are translated into
// this shape at registration time, never probed inside the scheduler.
type Agent interface {
	Run(ctx context.Context) error
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context) error

func (f AgentFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Loader lazily constructs an agent instance. It is invoked at most once per
// agent name; the resulting handle is cached for the life of the Orchestrator.
type Loader func(ctx context.Context) (Agent, error)

// Analyzer is the legacy analysis entry point some pipeline agents expose
// instead of Run.
type Analyzer interface {
	Analyze(ctx context.Context) error
}

// analyzerAgent wraps a legacy Analyzer as an Agent.
type analyzerAgent struct {
	inner Analyzer
}

func (a *analyzerAgent) Run(ctx context.Context) error {
	return a.inner.Analyze(ctx)
}

// AdaptLegacy translates a legacy agent value into the canonical Agent
// contract. Run is preferred over Analyze when both are present. Returns
// false when the value exposes neither capability.
func AdaptLegacy(v any) (Agent, bool) {
	switch agent := v.(type) {
	case Agent:
		return agent, true
	case Analyzer:
		return &analyzerAgent{inner: agent}, true
	default:
		return nil, false
	}
}

// LoaderFor builds a Loader from an already-constructed legacy agent value.
func LoaderFor(v any) Loader {
	return func(ctx context.Context) (Agent, error) {
		agent, ok := AdaptLegacy(v)
		if !ok {
			return nil, fmt.Errorf("value of type %T exposes no runnable capability", v)
		}
		return agent, nil
	}
}
