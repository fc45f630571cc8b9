package core

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every failure inside a turn maps onto one of these
// sentinels; all but ErrPersist are recovered locally with a fallback so the
// user always receives an answer.
var (
	ErrRetrieval          = errors.New("retrieval failure")
	ErrGeneration         = errors.New("generation failure")
	ErrExtractionParse    = errors.New("extraction parse failure")
	ErrConflictResolution = errors.New("merge conflict resolution failure")
	ErrPersist            = errors.New("persist failure")
)

// NodeError tags a failure with the workflow node it occurred in.
type NodeError struct {
	Node string
	Kind error
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v: %v", e.Node, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func NewNodeError(node string, kind, err error) *NodeError {
	return &NodeError{Node: node, Kind: kind, Err: err}
}
