package graph_test

import (
	"testing"
	"time"

	"github.com/dshills/nodeflow-go/graph"
)

func snapshotWith(ids ...string) graph.Snapshot {
	s := graph.Snapshot{}
	for _, id := range ids {
		s.Nodes = append(s.Nodes, graph.Node{ID: id, Kind: "test"})
	}
	return s
}

func TestHistoryPush(t *testing.T) {
	t.Run("push clears the redo stack", func(t *testing.T) {
		h := graph.NewHistory()

		h.Push(snapshotWith("a"))
		if _, ok := h.Undo(snapshotWith("a", "b")); !ok {
			t.Fatal("undo should succeed after a push")
		}
		if !h.CanRedo() {
			t.Fatal("redo should be available after an undo")
		}

		h.Push(snapshotWith("c"))
		if h.CanRedo() {
			t.Error("a new push must clear the redo stack")
		}
	})

	t.Run("undo stack evicts the oldest entry beyond the cap", func(t *testing.T) {
		h := graph.NewHistory()

		for i := 0; i < graph.DefaultHistoryLimit+10; i++ {
			h.Push(snapshotWith("n"))
		}
		if got := h.UndoDepth(); got != graph.DefaultHistoryLimit {
			t.Errorf("expected undo depth %d, got %d", graph.DefaultHistoryLimit, got)
		}
	})

	t.Run("undo and redo are no-ops on empty stacks", func(t *testing.T) {
		h := graph.NewHistory()

		if _, ok := h.Undo(snapshotWith("live")); ok {
			t.Error("undo on empty stack should report false")
		}
		if _, ok := h.Redo(snapshotWith("live")); ok {
			t.Error("redo on empty stack should report false")
		}
	})
}

func TestHistoryDebounce(t *testing.T) {
	t.Run("pushes inside the window coalesce", func(t *testing.T) {
		h := graph.NewHistory()
		now := time.Unix(1000, 0)
		h.SetClock(func() time.Time { return now })

		if !h.PushDebounced(snapshotWith("a")) {
			t.Fatal("first debounced push should record")
		}
		now = now.Add(100 * time.Millisecond)
		if h.PushDebounced(snapshotWith("b")) {
			t.Error("push 100ms after the last one should be dropped")
		}
		if got := h.UndoDepth(); got != 1 {
			t.Errorf("expected 1 undo entry, got %d", got)
		}
	})

	t.Run("pushes spaced past the window each record", func(t *testing.T) {
		h := graph.NewHistory()
		now := time.Unix(1000, 0)
		h.SetClock(func() time.Time { return now })

		h.PushDebounced(snapshotWith("a"))
		now = now.Add(graph.DefaultDebounceWindow + time.Millisecond)
		if !h.PushDebounced(snapshotWith("b")) {
			t.Error("push past the debounce window should record")
		}
		if got := h.UndoDepth(); got != 2 {
			t.Errorf("expected 2 undo entries, got %d", got)
		}
	})

	t.Run("structural pushes are never debounced", func(t *testing.T) {
		h := graph.NewHistory()
		now := time.Unix(1000, 0)
		h.SetClock(func() time.Time { return now })

		h.Push(snapshotWith("a"))
		h.Push(snapshotWith("b"))
		if got := h.UndoDepth(); got != 2 {
			t.Errorf("expected 2 undo entries for back-to-back structural pushes, got %d", got)
		}
	})
}

func TestHistoryGesture(t *testing.T) {
	t.Run("one undo step per gesture", func(t *testing.T) {
		h := graph.NewHistory()

		h.BeginGesture(snapshotWith("start"))
		// Intermediate frames never touch the history.
		h.BeginGesture(snapshotWith("frame1"))
		h.BeginGesture(snapshotWith("frame2"))
		h.EndGesture()

		if got := h.UndoDepth(); got != 1 {
			t.Fatalf("expected 1 undo entry for the whole gesture, got %d", got)
		}

		snap, ok := h.Undo(snapshotWith("end"))
		if !ok {
			t.Fatal("undo should succeed")
		}
		if len(snap.Nodes) != 1 || snap.Nodes[0].ID != "start" {
			t.Errorf("undo should restore the gesture-start snapshot, got %+v", snap.Nodes)
		}
	})

	t.Run("end without begin is a no-op", func(t *testing.T) {
		h := graph.NewHistory()
		h.EndGesture()
		if h.CanUndo() {
			t.Error("EndGesture without BeginGesture should not record")
		}
	})
}
