package graph_test

import (
	"errors"
	"testing"

	"github.com/dshills/nodeflow-go/graph"
)

// stubRunning implements graph.RunningSet over a fixed set of node IDs.
type stubRunning map[string]bool

func (s stubRunning) IsRunning(nodeID string) bool { return s[nodeID] }

func TestModelAddRemove(t *testing.T) {
	t.Run("add assigns fresh unique ids", func(t *testing.T) {
		m := graph.NewModel()

		a := m.AddNode("media.load", graph.Position{X: 10}, nil)
		b := m.AddNode("media.load", graph.Position{X: 20}, nil)

		if a == "" || b == "" || a == b {
			t.Errorf("expected two distinct non-empty ids, got %q and %q", a, b)
		}
		if got := len(m.Nodes()); got != 2 {
			t.Errorf("expected 2 nodes, got %d", got)
		}
	})

	t.Run("remove cascades edge deletion", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)
		b := m.AddNode("b", graph.Position{}, nil)
		c := m.AddNode("c", graph.Position{}, nil)
		m.Connect(a, "", b, "input")
		m.Connect(b, "", c, "input")

		if err := m.RemoveNode(b, nil); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if got := len(m.Edges()); got != 0 {
			t.Errorf("expected both edges cascaded away, got %d", got)
		}
		if got := len(m.Nodes()); got != 2 {
			t.Errorf("expected 2 surviving nodes, got %d", got)
		}
	})

	t.Run("remove of a running node is blocked", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)

		err := m.RemoveNode(a, stubRunning{a: true})

		var inUse *graph.NodeInUseError
		if !errors.As(err, &inUse) {
			t.Fatalf("expected NodeInUseError, got %v", err)
		}
		if len(inUse.NodeIDs) != 1 || inUse.NodeIDs[0] != a {
			t.Errorf("expected blocking id %q, got %v", a, inUse.NodeIDs)
		}
		if got := len(m.Nodes()); got != 1 {
			t.Error("blocked removal must not mutate the graph")
		}
	})

	t.Run("batch removal is all-or-nothing", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)
		b := m.AddNode("b", graph.Position{}, nil)

		err := m.RemoveNodes([]string{a, b}, stubRunning{b: true})

		var inUse *graph.NodeInUseError
		if !errors.As(err, &inUse) {
			t.Fatalf("expected NodeInUseError, got %v", err)
		}
		if len(inUse.NodeIDs) != 1 || inUse.NodeIDs[0] != b {
			t.Errorf("expected blocking id %q, got %v", b, inUse.NodeIDs)
		}
		if got := len(m.Nodes()); got != 2 {
			t.Error("rejected batch must leave all nodes in place")
		}
	})

	t.Run("remove of unknown node fails", func(t *testing.T) {
		m := graph.NewModel()
		if err := m.RemoveNode("nope", nil); !errors.Is(err, graph.ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
	})
}

func TestModelConnect(t *testing.T) {
	t.Run("self-loop is a silent no-op", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)

		if id := m.Connect(a, "", a, "input"); id != "" {
			t.Errorf("self-loop should return empty id, got %q", id)
		}
		if got := len(m.Edges()); got != 0 {
			t.Errorf("self-loop should not create an edge, got %d", got)
		}
	})

	t.Run("exact duplicate is a silent no-op", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)
		b := m.AddNode("b", graph.Position{}, nil)

		first := m.Connect(a, "", b, "input")
		dup := m.Connect(a, "", b, "input")

		if first == "" {
			t.Fatal("first connect should create an edge")
		}
		if dup != "" {
			t.Errorf("duplicate connect should return empty id, got %q", dup)
		}
		if got := len(m.Edges()); got != 1 {
			t.Errorf("expected 1 edge, got %d", got)
		}
	})

	t.Run("occupied input port is replaced, not duplicated", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)
		b := m.AddNode("b", graph.Position{}, nil)
		c := m.AddNode("c", graph.Position{}, nil)

		m.Connect(a, "", c, "input")
		m.Connect(b, "", c, "input")

		if got := len(m.Edges()); got != 1 {
			t.Fatalf("expected edge count unchanged at 1, got %d", got)
		}
		e, ok := m.EdgeTo(c, "input")
		if !ok {
			t.Fatal("expected an edge at (c, input)")
		}
		if e.Source != b {
			t.Errorf("expected replacement source %q, got %q", b, e.Source)
		}
	})

	t.Run("empty source handle defaults", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, nil)
		b := m.AddNode("b", graph.Position{}, nil)

		m.Connect(a, "", b, "input")

		e, _ := m.EdgeTo(b, "input")
		if e.SourceHandle != graph.DefaultSourceHandle {
			t.Errorf("expected default source handle, got %q", e.SourceHandle)
		}
	})
}

func TestModelParamsAndDirty(t *testing.T) {
	t.Run("params are replaced in full", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{}, map[string]any{"prompt": "old", "seed": 7})

		if err := m.UpdateNodeParams(a, map[string]any{"prompt": "new"}); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		n, _ := m.Node(a)
		if n.Params["prompt"] != "new" {
			t.Errorf("expected prompt replaced, got %v", n.Params["prompt"])
		}
		if _, kept := n.Params["seed"]; kept {
			t.Error("full replacement must drop fields not present in the new map")
		}
	})

	t.Run("mutations mark the graph dirty", func(t *testing.T) {
		m := graph.NewModel()
		m.AddNode("a", graph.Position{}, nil)

		if !m.Dirty() {
			t.Error("AddNode should mark the model dirty")
		}
		m.MarkSaved()
		if m.Dirty() {
			t.Error("MarkSaved should clear the dirty flag")
		}
	})
}

func TestModelUndoRedo(t *testing.T) {
	t.Run("n edits then n undos round-trip", func(t *testing.T) {
		m := graph.NewModel()

		before := m.Snapshot()
		a := m.AddNode("a", graph.Position{}, nil)
		b := m.AddNode("b", graph.Position{}, nil)
		m.Connect(a, "", b, "input")

		for i := 0; i < 3; i++ {
			if !m.Undo() {
				t.Fatalf("undo %d should succeed", i)
			}
		}
		after := m.Snapshot()
		if len(after.Nodes) != len(before.Nodes) || len(after.Edges) != len(before.Edges) {
			t.Errorf("expected pristine graph after undos, got %d nodes %d edges",
				len(after.Nodes), len(after.Edges))
		}

		for i := 0; i < 3; i++ {
			if !m.Redo() {
				t.Fatalf("redo %d should succeed", i)
			}
		}
		redone := m.Snapshot()
		if len(redone.Nodes) != 2 || len(redone.Edges) != 1 {
			t.Errorf("expected post-edit graph after redos, got %d nodes %d edges",
				len(redone.Nodes), len(redone.Edges))
		}
	})

	t.Run("undo on empty history returns false", func(t *testing.T) {
		m := graph.NewModel()
		if m.Undo() {
			t.Error("undo with no history should return false")
		}
		if m.Redo() {
			t.Error("redo with no history should return false")
		}
	})

	t.Run("drag gesture records one undo step", func(t *testing.T) {
		m := graph.NewModel()
		a := m.AddNode("a", graph.Position{X: 0}, nil)
		depth := m.History().UndoDepth()

		m.BeginGesture()
		for x := 1.0; x <= 30; x++ {
			if err := m.MoveNode(a, graph.Position{X: x}); err != nil {
				t.Fatalf("move failed: %v", err)
			}
		}
		m.EndGesture()

		if got := m.History().UndoDepth(); got != depth+1 {
			t.Fatalf("expected exactly one undo step for the drag, got %d new", got-depth)
		}

		if !m.Undo() {
			t.Fatal("undo should succeed")
		}
		n, _ := m.Node(a)
		if n.Position.X != 0 {
			t.Errorf("undo should restore pre-drag position, got %v", n.Position.X)
		}
	})
}
