// Package graph provides the editable node/edge model, topological
// scheduling, and snapshot-based undo/redo for NodeFlow-Go workflows.
package graph

// DefaultSourceHandle is the output port name used when a connection
// does not name one explicitly.
const DefaultSourceHandle = "output"

// Position is the canvas placement of a node. It is layout-only and has
// no effect on scheduling or execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single processing step in a workflow graph.
//
// The Kind tag selects executor behavior (e.g. "openai.image",
// "media.resize"); Params are opaque to this package and interpreted only
// by the executor that handles the Kind. Nodes are owned exclusively by a
// Model and mutated only through Model operations.
type Node struct {
	// ID is the opaque, stable node identifier.
	ID string `json:"id"`

	// Kind selects which executor behavior this node invokes.
	Kind string `json:"kind"`

	// Params is the node's configuration. The values are treated as
	// immutable by this package; UpdateNodeParams replaces the whole map.
	Params map[string]any `json:"params"`

	// Position is the canvas placement, irrelevant to execution.
	Position Position `json:"position"`
}

// Edge connects one node's output port to another node's input port.
//
// At most one edge may target a given (Target, TargetHandle) pair;
// connecting a second edge atomically replaces the prior one. Self-loops
// are rejected.
type Edge struct {
	// ID is the opaque, stable edge identifier.
	ID string `json:"id"`

	// Source is the upstream node ID.
	Source string `json:"source"`

	// SourceHandle is the upstream output port name.
	SourceHandle string `json:"sourceHandle"`

	// Target is the downstream node ID.
	Target string `json:"target"`

	// TargetHandle is the downstream input port name.
	TargetHandle string `json:"targetHandle"`
}

// Snapshot is an immutable (nodes, edges) pair.
//
// Snapshots are what the undo/redo history stores and what the
// orchestrator reads at run-request time. A stored snapshot is never
// mutated; every edit produces a new one.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a structurally independent copy of the snapshot.
//
// Node Params maps are copied one level deep; the param values themselves
// are treated as immutable by the model, so sharing them is safe.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = cloneNode(n)
	}
	copy(out.Edges, s.Edges)
	return out
}

func cloneNode(n Node) Node {
	c := n
	if n.Params != nil {
		c.Params = make(map[string]any, len(n.Params))
		for k, v := range n.Params {
			c.Params[k] = v
		}
	}
	return c
}

// NodeIDs returns the IDs of every node in the snapshot, in model order.
func (s Snapshot) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}
