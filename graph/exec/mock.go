package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/nodeflow-go/graph"
)

// MockExecutor is a configurable NodeExecutor for tests.
//
// By default every node succeeds with a single synthetic URL. Per-node
// outputs, errors, and delays can be configured, and the executor
// records every invocation for assertions. Delayed executions observe
// context cancellation, which makes the mock suitable for cancellation
// tests.
type MockExecutor struct {
	mu sync.Mutex

	// outputs maps node ID to a fixed output.
	outputs map[string]Output

	// errs maps node ID to a fixed error.
	errs map[string]error

	// delays maps node ID to an artificial execution duration.
	delays map[string]time.Duration

	// calls records executed node IDs in completion order.
	calls []string

	// inputsSeen records the inputs each node received.
	inputsSeen map[string]map[string]Input
}

// NewMockExecutor returns an empty mock; all nodes succeed by default.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		outputs:    make(map[string]Output),
		errs:       make(map[string]error),
		delays:     make(map[string]time.Duration),
		inputsSeen: make(map[string]map[string]Input),
	}
}

// SetOutput fixes the output for a node.
func (m *MockExecutor) SetOutput(nodeID string, out Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[nodeID] = out
}

// SetError makes a node fail with err.
func (m *MockExecutor) SetError(nodeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[nodeID] = err
}

// SetDelay makes a node take d before resolving.
func (m *MockExecutor) SetDelay(nodeID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[nodeID] = d
}

// Calls returns the executed node IDs in completion order.
func (m *MockExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Inputs returns the inputs a node received on its last execution.
func (m *MockExecutor) Inputs(nodeID string) map[string]Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputsSeen[nodeID]
}

// Execute implements NodeExecutor.
func (m *MockExecutor) Execute(ctx context.Context, node graph.Node, inputs map[string]Input, progress ProgressFunc) (Output, error) {
	m.mu.Lock()
	delay := m.delays[node.ID]
	m.inputsSeen[node.ID] = inputs
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Output{}, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}

	if progress != nil {
		progress(100, "done")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, node.ID)

	if err, ok := m.errs[node.ID]; ok {
		return Output{}, err
	}
	if out, ok := m.outputs[node.ID]; ok {
		return out, nil
	}
	return Output{URLs: []string{fmt.Sprintf("mock://%s/result", node.ID)}}, nil
}
