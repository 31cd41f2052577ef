package graph

import (
	"sync"
	"time"
)

// Default history limits. Fifty steps matches what the editor exposes;
// 600ms coalesces multi-keystroke text edits (including composed CJK IME
// sequences) into a single undo step.
const (
	DefaultHistoryLimit   = 50
	DefaultDebounceWindow = 600 * time.Millisecond
)

// History holds bounded undo/redo stacks of graph snapshots.
//
// Contract:
//   - Push appends to the undo stack and always clears the redo stack:
//     any new forward edit invalidates previously undone futures.
//   - Undo and Redo are no-ops on empty stacks and never fail.
//   - Both stacks are capped; the oldest entry is evicted when full.
//
// Two policies keep high-frequency edits from flooding the stacks:
//
//   - PushDebounced records a snapshot only if the debounce window has
//     elapsed since the last debounced push. Structural edits (add/remove
//     node or edge) must use Push and are never debounced.
//   - Gesture capture: for continuous pointer-driven moves, BeginGesture
//     captures the pre-gesture snapshot once, intermediate frames mutate
//     the live graph directly, and EndGesture commits the captured
//     snapshot as a single undo step.
//
// All methods are safe for concurrent use.
type History struct {
	mu   sync.Mutex
	undo []Snapshot
	redo []Snapshot

	limit    int
	debounce time.Duration

	lastDebounced time.Time

	// Gesture state machine: idle -> dragging -> idle. The captured
	// snapshot is committed on the second transition.
	dragging    bool
	gestureSnap Snapshot

	// now is injectable for debounce tests.
	now func() time.Time
}

// NewHistory returns a History with the default limit and debounce window.
func NewHistory() *History {
	return &History{
		limit:    DefaultHistoryLimit,
		debounce: DefaultDebounceWindow,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for debouncing. Intended for tests.
func (h *History) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Push records snapshot as a new undo step and clears the redo stack.
//
// Use this for structural operations; they always record immediately.
func (h *History) Push(snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushLocked(snapshot)
}

// PushDebounced records snapshot only if the debounce window has elapsed
// since the last debounced push. Returns true if a step was recorded.
//
// Intended for high-frequency mutations such as free-text param edits.
func (h *History) PushDebounced(snapshot Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if !h.lastDebounced.IsZero() && now.Sub(h.lastDebounced) < h.debounce {
		return false
	}
	h.lastDebounced = now
	h.pushLocked(snapshot)
	return true
}

// BeginGesture captures the pre-gesture snapshot if no gesture is active.
// Repeated calls during the same gesture are no-ops.
func (h *History) BeginGesture(current Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dragging {
		return
	}
	h.dragging = true
	h.gestureSnap = current
}

// EndGesture commits the snapshot captured at gesture start as a single
// undo step. No-op if no gesture is active.
func (h *History) EndGesture() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dragging {
		return
	}
	h.dragging = false
	h.pushLocked(h.gestureSnap)
	h.gestureSnap = Snapshot{}
}

// Undo pops the most recent undo step, pushing current onto the redo
// stack. Returns the snapshot to restore and true, or false if the undo
// stack is empty.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undo) == 0 {
		return Snapshot{}, false
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	h.redo = append(h.redo, current)
	if len(h.redo) > h.limit {
		h.redo = h.redo[1:]
	}
	return top, true
}

// Redo pops the most recent redo step, pushing current onto the undo
// stack. Returns the snapshot to restore and true, or false if the redo
// stack is empty.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redo) == 0 {
		return Snapshot{}, false
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	h.undo = append(h.undo, current)
	if len(h.undo) > h.limit {
		h.undo = h.undo[1:]
	}
	return top, true
}

// CanUndo reports whether an undo step is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether a redo step is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// UndoDepth returns the current number of undo steps.
func (h *History) UndoDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo)
}

// RedoDepth returns the current number of redo steps.
func (h *History) RedoDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo)
}

// pushLocked appends to the undo stack, evicting the oldest entry when
// full, and clears the redo stack. Caller holds h.mu.
func (h *History) pushLocked(snapshot Snapshot) {
	h.undo = append(h.undo, snapshot)
	if len(h.undo) > h.limit {
		h.undo = h.undo[1:]
	}
	h.redo = h.redo[:0]
}
