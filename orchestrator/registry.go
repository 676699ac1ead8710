package orchestrator

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// descriptor holds the registration record for one agent name.
type descriptor struct {
	name   string
	loader Loader
	deps   []string
}

// Registry maps agent names to lazy loaders and caches loaded handles.
// Loading is a lazy singleton per name: the loader runs at most once and the
// handle lives for the life of the Orchestrator.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*descriptor
	instances   map[string]Agent
	graph       DependencyGraph
	metrics     MetricsSink
	logger      *zap.Logger
}

// NewRegistry creates an agent registry bound to a dependency graph and a
// metrics sink.
func NewRegistry(graph DependencyGraph, metrics MetricsSink, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		descriptors: make(map[string]*descriptor),
		instances:   make(map[string]Agent),
		graph:       graph,
		metrics:     metrics,
		logger:      logger.With(zap.String("component", "agent_registry")),
	}
}

// Register stores the agent descriptor, forwards its dependencies to the
// dependency graph, and announces the name to the metrics sink.
// Re-registering an existing name overwrites it and drops any cached handle.
func (r *Registry) Register(name string, loader Loader, deps ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replacing := r.descriptors[name]
	r.descriptors[name] = &descriptor{
		name:   name,
		loader: loader,
		deps:   append([]string(nil), deps...),
	}
	delete(r.instances, name)

	r.graph.AddAgent(name, deps)
	r.metrics.RegisterAgent(name)

	r.logger.Info("agent registered",
		zap.String("name", name),
		zap.Strings("dependencies", deps),
		zap.Bool("replaced", replacing),
	)
}

// Unregister removes the descriptor and any cached handle.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.descriptors, name)
	delete(r.instances, name)
	r.graph.RemoveAgent(name)

	r.logger.Info("agent unregistered", zap.String("name", name))
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[name]
	return ok
}

// Names returns all registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load returns the cached handle if present, otherwise invokes the loader.
// Agent unavailability is not a load-time fatal error: a loader that fails,
// returns nil, or is missing entirely yields (nil, false) after a logged
// warning, and the caller treats the agent as a no-op.
func (r *Registry) Load(ctx context.Context, name string) (Agent, bool) {
	r.mu.RLock()
	if handle, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return handle, true
	}
	desc, ok := r.descriptors[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("load requested for unregistered agent", zap.String("name", name))
		return nil, false
	}
	if desc.loader == nil {
		r.logger.Warn("agent has no loader", zap.String("name", name))
		return nil, false
	}

	handle, err := desc.loader(ctx)
	if err != nil {
		r.logger.Warn("agent loader failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return nil, false
	}
	if handle == nil {
		r.logger.Warn("agent loader returned no handle", zap.String("name", name))
		return nil, false
	}

	r.mu.Lock()
	r.instances[name] = handle
	r.mu.Unlock()

	r.logger.Debug("agent loaded", zap.String("name", name))
	return handle, true
}
