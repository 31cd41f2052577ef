package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store. It is safe for concurrent use and
// keeps nothing across process restarts. Useful for tests and for
// running without persistence configured.
type MemStore struct {
	mu sync.RWMutex
	// records[workflowID][nodeID] holds executions newest-first.
	records map[string]map[string][]ExecutionRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]map[string][]ExecutionRecord),
	}
}

// SaveExecution appends a record for the node.
func (s *MemStore) SaveExecution(ctx context.Context, workflowID, nodeID string, rec ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, ok := s.records[workflowID]
	if !ok {
		nodes = make(map[string][]ExecutionRecord)
		s.records[workflowID] = nodes
	}
	// Prepend so History reads newest-first without sorting.
	nodes[nodeID] = append([]ExecutionRecord{rec}, nodes[nodeID]...)
	return nil
}

// History returns the node's records, newest first.
func (s *MemStore) History(ctx context.Context, workflowID, nodeID string) ([]ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[workflowID][nodeID]
	if len(recs) == 0 {
		return nil, nil
	}

	out := make([]ExecutionRecord, len(recs))
	copy(out, recs)
	for i := range out {
		out[i].ResultURLs = append([]string(nil), recs[i].ResultURLs...)
	}
	return out, nil
}

// ClearHistory removes all records for the node.
func (s *MemStore) ClearHistory(ctx context.Context, workflowID, nodeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if nodes, ok := s.records[workflowID]; ok {
		delete(nodes, nodeID)
	}
	return nil
}
