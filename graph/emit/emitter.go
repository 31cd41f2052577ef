package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be:
//   - Non-blocking: events are emitted from execution goroutines
//   - Thread-safe: nodes within a level emit concurrently
//   - Resilient: an emitter failure must never crash a workflow
//
// Provided implementations: LogEmitter (text/JSONL to a writer),
// NullEmitter (discard), BufferedEmitter (in-memory, queryable), and
// OTelEmitter (OpenTelemetry spans).
type Emitter interface {
	// Emit delivers one event. It must not panic; internal errors
	// should be swallowed or logged by the implementation.
	Emit(event Event)
}
