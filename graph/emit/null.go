package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use it where an Emitter is required but event output is not wanted.
// Emit is a no-op and is safe for concurrent use.
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
