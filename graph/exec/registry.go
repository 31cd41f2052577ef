package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/nodeflow-go/graph"
)

// Registry is a NodeExecutor that dispatches to other executors by node
// kind. Register an executor under a kind ("http.fetch") or a prefix
// ("openai." covers openai.chat and openai.image); exact matches win
// over prefix matches.
//
// A workflow mixing provider nodes is wired by registering each
// provider's executor and handing the registry to the orchestrator:
//
//	reg := exec.NewRegistry()
//	reg.Register("openai.", openaiExec)
//	reg.Register("anthropic.", anthropicExec)
//	orch := exec.New(model, reg, exec.Options{})
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]NodeExecutor
	prefixes map[string]NodeExecutor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:    make(map[string]NodeExecutor),
		prefixes: make(map[string]NodeExecutor),
	}
}

// Register binds an executor to a node kind. A trailing dot registers a
// prefix match. Re-registering a kind replaces the previous binding.
func (r *Registry) Register(kind string, executor NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.HasSuffix(kind, ".") {
		r.prefixes[kind] = executor
		return
	}
	r.exact[kind] = executor
}

// Lookup resolves the executor for a node kind.
func (r *Registry) Lookup(kind string) (NodeExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.exact[kind]; ok {
		return e, true
	}
	for prefix, e := range r.prefixes {
		if strings.HasPrefix(kind, prefix) {
			return e, true
		}
	}
	return nil, false
}

// Execute implements NodeExecutor by dispatching on node.Kind.
func (r *Registry) Execute(ctx context.Context, node graph.Node, inputs map[string]Input, progress ProgressFunc) (Output, error) {
	executor, ok := r.Lookup(node.Kind)
	if !ok {
		return Output{}, fmt.Errorf("no executor registered for node kind %q", node.Kind)
	}
	return executor.Execute(ctx, node, inputs, progress)
}
