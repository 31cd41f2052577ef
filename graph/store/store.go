// Package store provides persistence for node execution history.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested workflow or node has no
// persisted history.
var ErrNotFound = errors.New("not found")

// Record status values.
const (
	// StatusSuccess marks an execution that produced results.
	StatusSuccess = "success"

	// StatusError marks a failed execution.
	StatusError = "error"
)

// ExecutionRecord is one persisted node execution.
//
// Records are what the orchestrator writes on node completion and reads
// back on workflow load to restore the result cache. CreatedAt is the
// dedup key when merging with in-memory results.
type ExecutionRecord struct {
	// Status is StatusSuccess or StatusError.
	Status string

	// ResultURLs locate the produced media. Empty for failures.
	ResultURLs []string

	// Message is the failure detail when Status is StatusError.
	Message string

	// Cost is the provider cost in USD, when known.
	Cost float64

	// DurationMs is the execution duration in milliseconds.
	DurationMs int64

	// CreatedAt is when the execution completed.
	CreatedAt time.Time
}

// Store persists per-node execution history for a workflow.
//
// Implementations must order History newest-first. Provided backends:
//   - MemStore: in-memory, for tests and single-process use
//   - SQLiteStore: single-file database, zero-setup local persistence
//   - MySQLStore: relational backend for multi-process deployments
type Store interface {
	// SaveExecution appends one execution record for a node.
	SaveExecution(ctx context.Context, workflowID, nodeID string, rec ExecutionRecord) error

	// History returns a node's execution records, newest first. An
	// empty history is not an error; a nil slice is a valid result.
	History(ctx context.Context, workflowID, nodeID string) ([]ExecutionRecord, error)

	// ClearHistory deletes all records for a node. Clearing a node
	// with no history is a no-op.
	ClearHistory(ctx context.Context, workflowID, nodeID string) error
}
