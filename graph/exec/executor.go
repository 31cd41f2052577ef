// Package exec provides the execution orchestrator for NodeFlow-Go
// workflows: run sessions, per-node status tracking, cooperative
// cancellation, and result caching over an injected NodeExecutor.
package exec

import (
	"context"

	"github.com/dshills/nodeflow-go/graph"
)

// ProgressFunc receives incremental progress reports from an executor
// while a node runs. Percent is in [0, 100]; message is optional
// human-readable detail.
type ProgressFunc func(percent float64, message string)

// Input is one resolved upstream input for a node execution, keyed in the
// inputs map by the node's target handle (input port name).
type Input struct {
	// SourceNodeID is the upstream node that produced this input.
	SourceNodeID string

	// SourceHandle is the upstream output port the edge reads from.
	SourceHandle string

	// URLs are the upstream node's most recent result URLs. Empty when
	// the upstream node has no result (e.g. it failed) — executors are
	// expected to fail fast on unusable input.
	URLs []string
}

// Output is the successful result of one node execution.
type Output struct {
	// URLs locate the produced media.
	URLs []string

	// Cost is the provider cost of this execution, in USD. Zero when
	// the executor does not track cost.
	Cost float64

	// RequiresAck marks results that need user acknowledgement; the
	// node finishes in the "unconfirmed" status instead of "confirmed".
	RequiresAck bool
}

// NodeExecutor performs the actual work of a node. Implementations are
// opaque to the orchestrator: an executor may call an AI model over HTTP,
// transform files, or dispatch to in-process workers, selected by the
// node's Kind.
//
// The orchestrator invokes Execute once per node per run. The context
// carries the run's cooperative cancellation signal; long-running
// executors are expected to observe it and abort their own I/O — the
// orchestrator cannot forcibly interrupt an executor that ignores it.
//
// Any concurrency inside a scheduler level is the executor's concern;
// the orchestrator only guarantees that a node is never dispatched
// before all its upstream nodes have resolved or been cache-satisfied.
type NodeExecutor interface {
	Execute(ctx context.Context, node graph.Node, inputs map[string]Input, progress ProgressFunc) (Output, error)
}

// ExecutorFunc adapts a plain function to the NodeExecutor interface.
type ExecutorFunc func(ctx context.Context, node graph.Node, inputs map[string]Input, progress ProgressFunc) (Output, error)

// Execute implements NodeExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, node graph.Node, inputs map[string]Input, progress ProgressFunc) (Output, error) {
	return f(ctx, node, inputs, progress)
}
