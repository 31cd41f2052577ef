package exec

// NodeStatus is the live, mutable status of a node, independent of any
// specific run session.
//
// Lifecycle: idle -> running -> {confirmed | unconfirmed | error}, with
// the three terminal states re-enterable to running on the next
// execution. Confirmed and unconfirmed are both terminal-success for
// scheduling purposes; unconfirmed additionally awaits user
// acknowledgement.
type NodeStatus string

const (
	// StatusIdle means the node has no execution in flight or recorded.
	StatusIdle NodeStatus = "idle"

	// StatusRunning means an executor call is in flight for the node.
	StatusRunning NodeStatus = "running"

	// StatusConfirmed means the node finished successfully.
	StatusConfirmed NodeStatus = "confirmed"

	// StatusUnconfirmed means the node finished successfully but the
	// result awaits user acknowledgement.
	StatusUnconfirmed NodeStatus = "unconfirmed"

	// StatusError means the node's most recent execution failed.
	StatusError NodeStatus = "error"
)

// Succeeded reports whether the status is a terminal-success state.
func (s NodeStatus) Succeeded() bool {
	return s == StatusConfirmed || s == StatusUnconfirmed
}

// Observer receives execution notifications from the orchestrator.
//
// Observers are the read-model hook for UI collaborators (canvas badges,
// progress bars, auto-save-results features). They are registered at
// construction via Options.Observers or later via Subscribe; the
// orchestrator never reaches into collaborator state.
//
// Callbacks are invoked synchronously from execution goroutines and must
// return quickly; they must not block.
type Observer interface {
	// NodeStatus fires on every live status transition. errMsg is
	// non-empty only for StatusError.
	NodeStatus(nodeID string, status NodeStatus, errMsg string)

	// Progress forwards incremental executor progress.
	Progress(nodeID string, percent float64, message string)

	// NodeComplete fires once per successful node execution.
	NodeComplete(nodeID string, res Result)
}
