package exec

import "time"

// MaxResultsPerNode caps the per-node result cache. The newest entries
// win; merging and appends evict from the tail.
const MaxResultsPerNode = 50

// Result is one cached result group for a node, produced either by a
// live execution or restored from persisted history.
type Result struct {
	// URLs locate the produced media.
	URLs []string

	// ProducedAt is when the result was produced. It doubles as the
	// dedup key when merging restored history with in-memory results.
	ProducedAt time.Time

	// Cost is the provider cost in USD, when known.
	Cost float64

	// DurationMs is the execution duration in milliseconds, when known.
	DurationMs int64
}

// prependResult adds res as the newest entry, dropping any existing
// entry with the same ProducedAt and trimming to MaxResultsPerNode.
func prependResult(results []Result, res Result) []Result {
	out := make([]Result, 0, len(results)+1)
	out = append(out, res)
	for _, r := range results {
		if r.ProducedAt.Equal(res.ProducedAt) {
			continue
		}
		out = append(out, r)
	}
	if len(out) > MaxResultsPerNode {
		out = out[:MaxResultsPerNode]
	}
	return out
}

// mergeResults folds restored entries into the in-memory list without
// duplicating timestamps and without displacing newer in-memory entries.
// Both inputs and the output are newest-first.
func mergeResults(inMemory, restored []Result) []Result {
	seen := make(map[int64]bool, len(inMemory))
	for _, r := range inMemory {
		seen[r.ProducedAt.UnixNano()] = true
	}

	out := append([]Result(nil), inMemory...)
	for _, r := range restored {
		if seen[r.ProducedAt.UnixNano()] {
			continue
		}
		seen[r.ProducedAt.UnixNano()] = true
		out = append(out, r)
	}

	// Restored history is itself newest-first, but its entries may
	// interleave with what is already in memory.
	sortResultsNewestFirst(out)

	if len(out) > MaxResultsPerNode {
		out = out[:MaxResultsPerNode]
	}
	return out
}

func sortResultsNewestFirst(results []Result) {
	// Insertion sort: lists are small (capped at 50) and usually
	// already ordered.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].ProducedAt.After(results[j-1].ProducedAt); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
