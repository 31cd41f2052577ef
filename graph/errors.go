package graph

import (
	"errors"
	"strings"
)

// ErrNodeNotFound is returned when an operation references a node ID that
// is not present in the model.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an operation references an edge ID that
// is not present in the model.
var ErrEdgeNotFound = errors.New("edge not found")

// NodeInUseError reports a mutation that was blocked because one or more
// of the affected nodes belong to a currently running execution session.
//
// Batch removals are all-or-nothing: if any requested node is running the
// whole batch is rejected and NodeIDs lists every blocking node.
type NodeInUseError struct {
	// NodeIDs are the nodes that blocked the mutation.
	NodeIDs []string
}

func (e *NodeInUseError) Error() string {
	return "node in use by a running session: " + strings.Join(e.NodeIDs, ", ")
}

// UnschedulableError reports a run request whose requested nodes never
// appear in the computed levels — in practice, they participate in a
// cycle. It is surfaced synchronously, before any node executes.
type UnschedulableError struct {
	// NodeIDs are the requested nodes absent from every level.
	NodeIDs []string
}

func (e *UnschedulableError) Error() string {
	return "unschedulable nodes (cycle): " + strings.Join(e.NodeIDs, ", ")
}
