package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory,
// organized by session ID for retrieval and filtering.
//
// Intended for tests, debugging, and post-run analysis. Everything is
// kept in memory; long-lived deployments should Clear sessions they are
// done with.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // sessionID -> events, emit order
}

// Filter narrows History queries. Empty fields match everything; set
// fields combine with AND.
type Filter struct {
	// NodeID restricts to events concerning one node.
	NodeID string

	// Msg restricts to one event kind (e.g. "node_error").
	Msg string
}

// NewBufferedEmitter returns an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit stores the event under its session ID.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.SessionID] = append(b.events[event.SessionID], event)
}

// History returns all events for a session in emit order.
func (b *BufferedEmitter) History(sessionID string) []Event {
	return b.HistoryWithFilter(sessionID, Filter{})
}

// HistoryWithFilter returns the session's events matching the filter.
func (b *BufferedEmitter) HistoryWithFilter(sessionID string, f Filter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.events[sessionID] {
		if f.NodeID != "" && e.NodeID != f.NodeID {
			continue
		}
		if f.Msg != "" && e.Msg != f.Msg {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear drops all events recorded for a session.
func (b *BufferedEmitter) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, sessionID)
}

// ClearAll drops every recorded event.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
