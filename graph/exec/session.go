package exec

import "time"

// MaxSessions caps the retained run-session ring. Eviction is FIFO by
// start time.
const MaxSessions = 20

// RunMode identifies which request shape created a session.
type RunMode string

const (
	// ModeFull schedules every node in the graph.
	ModeFull RunMode = "full"

	// ModeSingleNode schedules the upstream closure of one target node.
	ModeSingleNode RunMode = "single_node"

	// ModeContinueFrom schedules the full graph but substitutes cached
	// results for already-satisfied upstream nodes.
	ModeContinueFrom RunMode = "continue_from"
)

// SessionStatus is the lifecycle state of a run session.
type SessionStatus string

const (
	// SessionRunning means the session still has nodes in flight.
	SessionRunning SessionStatus = "running"

	// SessionCompleted means every node finished without error.
	SessionCompleted SessionStatus = "completed"

	// SessionError means at least one node's executor failed.
	SessionError SessionStatus = "error"

	// SessionCancelled means the session was cooperatively aborted.
	SessionCancelled SessionStatus = "cancelled"
)

// Outcome is a session's frozen view of one node's result. It is
// independent of the live NodeStatus, which later runs may change.
type Outcome string

const (
	// OutcomeRunning means the node has not resolved within the session.
	OutcomeRunning Outcome = "running"

	// OutcomeDone means the node resolved successfully (executed or
	// cache-satisfied).
	OutcomeDone Outcome = "done"

	// OutcomeError means the node's executor failed.
	OutcomeError Outcome = "error"
)

// RunSession records one run invocation: which nodes it covers, its
// frozen per-node outcomes and costs, and its terminal status.
//
// A session becomes immutable once Status leaves SessionRunning. The
// orchestrator retains the most recent MaxSessions sessions for
// observability; accessors hand out defensive copies.
type RunSession struct {
	// ID uniquely identifies this run invocation.
	ID string

	// WorkflowID is the owning workflow.
	WorkflowID string

	// Mode is the request shape that created the session.
	Mode RunMode

	// StartedAt is the run-request time.
	StartedAt time.Time

	// NodeIDs is the ordered set of nodes included in this run.
	NodeIDs []string

	// NodeResults maps node ID to the outcome frozen to this session.
	NodeResults map[string]Outcome

	// NodeCosts maps node ID to the cost attributed to this session.
	NodeCosts map[string]float64

	// Status is the session lifecycle state.
	Status SessionStatus
}

// clone returns a defensive copy for read-model accessors.
func (s *RunSession) clone() RunSession {
	out := *s
	out.NodeIDs = append([]string(nil), s.NodeIDs...)
	out.NodeResults = make(map[string]Outcome, len(s.NodeResults))
	for k, v := range s.NodeResults {
		out.NodeResults[k] = v
	}
	out.NodeCosts = make(map[string]float64, len(s.NodeCosts))
	for k, v := range s.NodeCosts {
		out.NodeCosts[k] = v
	}
	return out
}

// session is the orchestrator's internal handle: the public record plus
// the run's cancellation and completion plumbing.
type session struct {
	RunSession

	cancel func()
	done   chan struct{}
}
