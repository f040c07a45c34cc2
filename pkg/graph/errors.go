package graph

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrDuplicateKey = errors.New("node key already exists")
	ErrUnknownNode  = errors.New("node not found")
	ErrUnknownEdge  = errors.New("edge not found")
)

// GraphError provides structured error information for graph operations.
// Lookup failures never surface to callers as hard errors (the store logs
// and returns a degraded default), but internal paths and tests still need
// the structure.
type GraphError struct {
	Op     string // Operation that failed (e.g., "AddEdge", "RemoveNode")
	Entity string // Entity type ("node" or "edge")
	Key    string // Node key or "u-v" pair involved
	Cause  error  // Underlying sentinel
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s %q: %v", e.Op, e.Entity, e.Key, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *GraphError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func nodeErr(op, key string) *GraphError {
	return &GraphError{Op: op, Entity: "node", Key: key, Cause: ErrUnknownNode}
}

func edgeErr(op, u, v string) *GraphError {
	return &GraphError{Op: op, Entity: "edge", Key: u + "-" + v, Cause: ErrUnknownEdge}
}
