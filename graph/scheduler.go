package graph

// Levels computes a topological execution order for the given node set
// as a sequence of levels: each level contains nodes whose upstream
// dependencies are all satisfied by strictly earlier levels.
//
// The algorithm is Kahn's BFS by in-degree. Nodes with in-degree 0 form
// level 0; removing their outgoing edges reveals the next level, and so
// on. Only edges whose endpoints are both inside nodeIDs contribute to
// in-degree, so callers can schedule a subset of the graph (see
// UpstreamClosure) without the surrounding edges interfering.
//
// Nodes that never reach in-degree 0 — members of a cycle — are silently
// excluded from the returned levels. They are neither scheduled nor
// reported as an error here; callers that require every requested node to
// be schedulable must check for absences themselves (the orchestrator
// treats a requested node absent from all levels as a fatal
// pre-execution error).
//
// Ordering within a level carries no guarantee. Callers needing a
// deterministic sub-order must sort independently.
func Levels(nodeIDs []string, edges []Edge) [][]string {
	inSet := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		inSet[id] = true
	}

	indegree := make(map[string]int, len(nodeIDs))
	out := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		indegree[id] = 0
	}
	for _, e := range edges {
		if !inSet[e.Source] || !inSet[e.Target] {
			continue
		}
		out[e.Source] = append(out[e.Source], e.Target)
		indegree[e.Target]++
	}

	frontier := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	var levels [][]string
	for len(frontier) > 0 {
		level := frontier
		levels = append(levels, level)

		frontier = nil
		for _, id := range level {
			for _, next := range out[id] {
				indegree[next]--
				if indegree[next] == 0 {
					frontier = append(frontier, next)
				}
			}
		}
	}
	return levels
}

// UpstreamClosure returns the set of nodes reachable by following edges
// backward from target, inclusive of target itself.
//
// This backs single-node runs: the closure is the minimal node set whose
// execution produces a fresh result for the target. The result is a set;
// feed it to Levels for an executable order.
func UpstreamClosure(target string, edges []Edge) map[string]bool {
	incoming := make(map[string][]string)
	for _, e := range edges {
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}

	closure := map[string]bool{target: true}
	queue := []string{target}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, src := range incoming[id] {
			if !closure[src] {
				closure[src] = true
				queue = append(queue, src)
			}
		}
	}
	return closure
}

// DownstreamClosure returns the set of nodes reachable by following edges
// forward from start, inclusive of start itself.
//
// Continue-from runs use this as the must-execute set: everything at or
// below the start node re-runs, while satisfied upstream nodes are served
// from cache.
func DownstreamClosure(start string, edges []Edge) map[string]bool {
	outgoing := make(map[string][]string)
	for _, e := range edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}

	closure := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dst := range outgoing[id] {
			if !closure[dst] {
				closure[dst] = true
				queue = append(queue, dst)
			}
		}
	}
	return closure
}
