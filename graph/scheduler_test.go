package graph_test

import (
	"testing"

	"github.com/dshills/nodeflow-go/graph"
)

func edge(source, target string) graph.Edge {
	return graph.Edge{
		ID:           source + "->" + target,
		Source:       source,
		SourceHandle: graph.DefaultSourceHandle,
		Target:       target,
		TargetHandle: "input",
	}
}

// levelIndex returns the level each node landed in, or -1 if absent.
func levelIndex(levels [][]string, id string) int {
	for i, level := range levels {
		for _, n := range level {
			if n == id {
				return i
			}
		}
	}
	return -1
}

func TestLevels(t *testing.T) {
	t.Run("no edges produces a single level with all nodes", func(t *testing.T) {
		nodes := []string{"a", "b", "c", "d"}
		levels := graph.Levels(nodes, nil)

		if len(levels) != 1 {
			t.Fatalf("expected 1 level, got %d", len(levels))
		}
		if len(levels[0]) != len(nodes) {
			t.Errorf("expected %d nodes in level 0, got %d", len(nodes), len(levels[0]))
		}
	})

	t.Run("linear chain produces one level per node", func(t *testing.T) {
		nodes := []string{"a", "b", "c"}
		edges := []graph.Edge{edge("a", "b"), edge("b", "c")}

		levels := graph.Levels(nodes, edges)

		if len(levels) != 3 {
			t.Fatalf("expected 3 levels, got %d", len(levels))
		}
		for i, want := range []string{"a", "b", "c"} {
			if got := levelIndex(levels, want); got != i {
				t.Errorf("node %s: expected level %d, got %d", want, i, got)
			}
		}
	})

	t.Run("diamond schedules branches in the same level", func(t *testing.T) {
		nodes := []string{"a", "b", "c", "d"}
		edges := []graph.Edge{
			edge("a", "b"), edge("a", "c"),
			edge("b", "d"), edge("c", "d"),
		}

		levels := graph.Levels(nodes, edges)

		if len(levels) != 3 {
			t.Fatalf("expected 3 levels, got %d", len(levels))
		}
		if levelIndex(levels, "b") != 1 || levelIndex(levels, "c") != 1 {
			t.Errorf("expected b and c in level 1, got b=%d c=%d",
				levelIndex(levels, "b"), levelIndex(levels, "c"))
		}
		if levelIndex(levels, "d") != 2 {
			t.Errorf("expected d in level 2, got %d", levelIndex(levels, "d"))
		}
	})

	t.Run("every edge crosses levels forward", func(t *testing.T) {
		nodes := []string{"a", "b", "c", "d", "e"}
		edges := []graph.Edge{
			edge("a", "c"), edge("b", "c"), edge("c", "d"),
			edge("b", "e"), edge("d", "e"),
		}

		levels := graph.Levels(nodes, edges)

		seen := make(map[string]int)
		for _, level := range levels {
			for _, id := range level {
				if _, dup := seen[id]; dup {
					t.Errorf("node %s appears in more than one level", id)
				}
				seen[id] = levelIndex(levels, id)
			}
		}
		for _, e := range edges {
			if seen[e.Source] >= seen[e.Target] {
				t.Errorf("edge %s: source level %d not before target level %d",
					e.ID, seen[e.Source], seen[e.Target])
			}
		}
	})

	t.Run("cycle members are silently excluded", func(t *testing.T) {
		nodes := []string{"a", "b", "c", "d"}
		// a feeds the b<->c cycle; d is independent.
		edges := []graph.Edge{
			edge("a", "b"), edge("b", "c"), edge("c", "b"),
		}

		levels := graph.Levels(nodes, edges)

		if levelIndex(levels, "b") != -1 || levelIndex(levels, "c") != -1 {
			t.Error("cycle members should be absent from all levels")
		}
		if levelIndex(levels, "a") == -1 || levelIndex(levels, "d") == -1 {
			t.Error("nodes outside the cycle should still be scheduled")
		}
	})

	t.Run("edges outside the node set are ignored", func(t *testing.T) {
		// Restricting to {a, b} must not count the c->b edge.
		edges := []graph.Edge{edge("a", "b"), edge("c", "b")}

		levels := graph.Levels([]string{"a", "b"}, edges)

		if levelIndex(levels, "b") != 1 {
			t.Errorf("expected b in level 1, got %d", levelIndex(levels, "b"))
		}
	})

	t.Run("empty node set returns no levels", func(t *testing.T) {
		if levels := graph.Levels(nil, nil); len(levels) != 0 {
			t.Errorf("expected no levels, got %d", len(levels))
		}
	})
}

func TestUpstreamClosure(t *testing.T) {
	edges := []graph.Edge{
		edge("a", "b"), edge("b", "c"), edge("x", "b"),
	}

	t.Run("includes target and all transitive ancestors", func(t *testing.T) {
		closure := graph.UpstreamClosure("b", edges)

		for _, want := range []string{"a", "x", "b"} {
			if !closure[want] {
				t.Errorf("expected %s in closure", want)
			}
		}
		if closure["c"] {
			t.Error("downstream node c should not be in the upstream closure")
		}
	})

	t.Run("isolated target is its own closure", func(t *testing.T) {
		closure := graph.UpstreamClosure("solo", edges)
		if len(closure) != 1 || !closure["solo"] {
			t.Errorf("expected {solo}, got %v", closure)
		}
	})
}

func TestDownstreamClosure(t *testing.T) {
	edges := []graph.Edge{
		edge("a", "b"), edge("b", "c"), edge("b", "d"), edge("x", "c"),
	}

	closure := graph.DownstreamClosure("b", edges)

	for _, want := range []string{"b", "c", "d"} {
		if !closure[want] {
			t.Errorf("expected %s in closure", want)
		}
	}
	if closure["a"] || closure["x"] {
		t.Error("upstream nodes should not be in the downstream closure")
	}
}
