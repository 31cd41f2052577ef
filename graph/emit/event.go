// Package emit provides observability event emission for NodeFlow-Go
// execution.
package emit

// Event is one observability event emitted during workflow execution.
//
// Events cover session lifecycle (session_start, session_end), node
// lifecycle (node_start, node_end, node_error, node_cached), and
// persistence activity (history_restored, store_error). They are
// delivered to an Emitter, which can log them, convert them to spans,
// or buffer them for inspection.
type Event struct {
	// SessionID identifies the run session that emitted the event.
	// Empty for session-independent events such as history_restored.
	SessionID string

	// NodeID identifies the node the event concerns. Empty for
	// session-level events.
	NodeID string

	// Msg names the event kind.
	Msg string

	// Meta carries event-specific structured data. Common keys:
	//   - "duration_ms": executor call duration
	//   - "cost_usd": provider cost of the execution
	//   - "error": failure details
	//   - "mode": run request shape (session_start)
	//   - "status": terminal session status (session_end)
	Meta map[string]any
}
