package graph

import (
	"sync"

	"github.com/google/uuid"
)

// RunningSet answers whether a node currently belongs to a running
// execution session.
//
// The model takes this as a capability parameter on removal operations
// instead of reaching into the orchestrator, keeping the two layers
// decoupled: the orchestrator depends on the model, never the reverse.
// exec.Orchestrator implements it.
type RunningSet interface {
	IsRunning(nodeID string) bool
}

// Model is the authoritative node/edge graph for one workflow.
//
// All mutations go through Model operations, which enforce the graph
// invariants:
//   - at most one edge per (target, targetHandle) pair — connecting a
//     second edge atomically replaces the prior one
//   - no self-loops
//   - edges reference live nodes; removing a node cascades edge deletion
//
// Every mutating operation first records an undo snapshot in the attached
// History (structural edits immediately, param edits debounced, drags via
// the gesture capture) and then marks the model dirty for the external
// persistence collaborator.
//
// Model is safe for concurrent use, though the intended discipline is a
// single logical writer (the editor) with concurrent readers (the
// orchestrator snapshots the graph at run-request time).
type Model struct {
	mu    sync.RWMutex
	nodes []Node
	edges []Edge

	history *History
	dirty   bool

	// newID is injectable for deterministic tests.
	newID func() string
}

// NewModel creates an empty Model with its own History.
func NewModel() *Model {
	return &Model{
		history: NewHistory(),
		newID:   uuid.NewString,
	}
}

// History returns the model's undo/redo history.
func (m *Model) History() *History {
	return m.history
}

// Snapshot returns an immutable copy of the current graph.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Model) snapshotLocked() Snapshot {
	return Snapshot{Nodes: m.nodes, Edges: m.edges}.Clone()
}

// restoreLocked replaces the live graph with snap without touching the
// history stacks. Caller holds m.mu.
func (m *Model) restoreLocked(snap Snapshot) {
	c := snap.Clone()
	m.nodes = c.Nodes
	m.edges = c.Edges
	m.dirty = true
}

// Nodes returns a copy of all nodes in insertion order.
func (m *Model) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = cloneNode(n)
	}
	return out
}

// Edges returns a copy of all edges.
func (m *Model) Edges() []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// Node returns the node with the given ID.
func (m *Model) Node(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.nodes {
		if n.ID == id {
			return cloneNode(n), true
		}
	}
	return Node{}, false
}

// EdgeTo returns the edge occupying the (target, targetHandle) input
// port, if any.
func (m *Model) EdgeTo(target, targetHandle string) (Edge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.edges {
		if e.Target == target && e.TargetHandle == targetHandle {
			return e, true
		}
	}
	return Edge{}, false
}

// Dirty reports whether the graph has unsaved changes.
func (m *Model) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// MarkSaved clears the dirty flag. The persistence collaborator calls
// this after a successful save.
func (m *Model) MarkSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = false
}

// AddNode creates a node with a fresh unique ID and returns the ID.
// It always succeeds.
func (m *Model) AddNode(kind string, pos Position, params map[string]any) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushHistoryLocked()

	id := m.newID()
	m.nodes = append(m.nodes, cloneNode(Node{
		ID:       id,
		Kind:     kind,
		Params:   params,
		Position: pos,
	}))
	m.dirty = true
	return id
}

// RemoveNode removes a node and cascades deletion of every edge touching
// it. It fails with a NodeInUseError if the node currently belongs to a
// running session (cancel the execution first), and ErrNodeNotFound if
// the ID is unknown.
//
// A nil running set disables the in-use guard.
func (m *Model) RemoveNode(nodeID string, running RunningSet) error {
	return m.RemoveNodes([]string{nodeID}, running)
}

// RemoveNodes removes a batch of nodes atomically. The in-use guard is
// evaluated over the whole batch: if any requested node is running, the
// entire batch is rejected and the returned NodeInUseError lists every
// blocking ID.
func (m *Model) RemoveNodes(nodeIDs []string, running RunningSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		requested[id] = true
	}

	var missing bool
	found := make(map[string]bool, len(nodeIDs))
	for _, n := range m.nodes {
		if requested[n.ID] {
			found[n.ID] = true
		}
	}
	for id := range requested {
		if !found[id] {
			missing = true
		}
	}
	if missing {
		return ErrNodeNotFound
	}

	if running != nil {
		var blocking []string
		for _, id := range nodeIDs {
			if running.IsRunning(id) {
				blocking = append(blocking, id)
			}
		}
		if len(blocking) > 0 {
			return &NodeInUseError{NodeIDs: blocking}
		}
	}

	m.pushHistoryLocked()

	nodes := m.nodes[:0]
	for _, n := range m.nodes {
		if !requested[n.ID] {
			nodes = append(nodes, n)
		}
	}
	m.nodes = nodes

	edges := m.edges[:0]
	for _, e := range m.edges {
		if !requested[e.Source] && !requested[e.Target] {
			edges = append(edges, e)
		}
	}
	m.edges = edges

	m.dirty = true
	return nil
}

// Connect creates an edge from (source, sourceHandle) to
// (target, targetHandle) and returns its ID.
//
// Self-loops and exact duplicates are rejected silently (empty ID, no
// history push). If a different edge already occupies the target input
// port it is atomically replaced. An empty sourceHandle defaults to
// DefaultSourceHandle.
func (m *Model) Connect(source, sourceHandle, target, targetHandle string) string {
	if sourceHandle == "" {
		sourceHandle = DefaultSourceHandle
	}
	if source == target {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	replaceAt := -1
	for i, e := range m.edges {
		if e.Target == target && e.TargetHandle == targetHandle {
			if e.Source == source && e.SourceHandle == sourceHandle {
				// Exact duplicate.
				return ""
			}
			replaceAt = i
			break
		}
	}

	m.pushHistoryLocked()

	edge := Edge{
		ID:           m.newID(),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
	if replaceAt >= 0 {
		m.edges[replaceAt] = edge
	} else {
		m.edges = append(m.edges, edge)
	}
	m.dirty = true
	return edge.ID
}

// Disconnect removes the edge with the given ID.
func (m *Model) Disconnect(edgeID string) error {
	return m.DisconnectMany([]string{edgeID})
}

// DisconnectMany removes a batch of edges. Unknown IDs fail the whole
// batch with ErrEdgeNotFound before anything is removed.
func (m *Model) DisconnectMany(edgeIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested := make(map[string]bool, len(edgeIDs))
	for _, id := range edgeIDs {
		requested[id] = true
	}
	found := 0
	for _, e := range m.edges {
		if requested[e.ID] {
			found++
		}
	}
	if found != len(requested) {
		return ErrEdgeNotFound
	}

	m.pushHistoryLocked()

	edges := m.edges[:0]
	for _, e := range m.edges {
		if !requested[e.ID] {
			edges = append(edges, e)
		}
	}
	m.edges = edges
	m.dirty = true
	return nil
}

// UpdateNodeParams replaces a node's params map in full — not a merge.
// Callers are responsible for preserving fields they don't intend to
// change.
//
// The undo snapshot is recorded through the debounced policy so that
// multi-keystroke edits coalesce into a single undo step.
func (m *Model) UpdateNodeParams(nodeID string, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, n := range m.nodes {
		if n.ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNodeNotFound
	}

	if m.history != nil {
		m.history.PushDebounced(m.snapshotLocked())
	}

	n := m.nodes[idx]
	n.Params = params
	m.nodes[idx] = cloneNode(n)
	m.dirty = true
	return nil
}

// MoveNode updates a node's canvas position without recording history.
// Intermediate drag frames call this directly; wrap the gesture in
// BeginGesture/EndGesture to get a single undo step per drag.
func (m *Model) MoveNode(nodeID string, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.nodes {
		if n.ID == nodeID {
			n.Position = pos
			m.nodes[i] = n
			m.dirty = true
			return nil
		}
	}
	return ErrNodeNotFound
}

// BeginGesture captures the current graph for a continuous pointer
// gesture (drag, resize). Safe to call on every pointer-down; repeated
// calls during an active gesture are no-ops.
func (m *Model) BeginGesture() {
	if m.history == nil {
		return
	}
	m.mu.RLock()
	snap := m.snapshotLocked()
	m.mu.RUnlock()
	m.history.BeginGesture(snap)
}

// EndGesture commits the gesture's starting snapshot as one undo step.
func (m *Model) EndGesture() {
	if m.history != nil {
		m.history.EndGesture()
	}
}

// Undo restores the most recent undo snapshot. Returns false if the undo
// stack is empty. Never fails.
func (m *Model) Undo() bool {
	if m.history == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.history.Undo(m.snapshotLocked())
	if !ok {
		return false
	}
	m.restoreLocked(snap)
	return true
}

// Redo restores the most recently undone snapshot. Returns false if the
// redo stack is empty. Never fails.
func (m *Model) Redo() bool {
	if m.history == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.history.Redo(m.snapshotLocked())
	if !ok {
		return false
	}
	m.restoreLocked(snap)
	return true
}

// pushHistoryLocked records an immediate (structural) undo snapshot.
// Caller holds m.mu.
func (m *Model) pushHistoryLocked() {
	if m.history != nil {
		m.history.Push(m.snapshotLocked())
	}
}
