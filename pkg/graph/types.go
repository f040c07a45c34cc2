// Package graph implements the weighted undirected multigraph that models
// the live mesh topology: one node per radio, one edge per observed
// communication path. Parallel edges between the same pair are distinct
// entities so repeated link observations keep independent weights.
//
// The store has single-threaded semantics. Concurrent owners (the
// ingestion pipeline) serialize access through their own lock.
package graph

import (
	"github.com/rfmesh/meshmap/pkg/logging"
)

// NodeIndex is a stable handle to a node. Handles survive unrelated
// removals; they are never reused within one store's lifetime.
type NodeIndex int

// EdgeIndex is a stable handle to a single edge entity.
type EdgeIndex int

// Node is a radio in the mesh. WeightedDegree is derived: every mutation of
// an incident edge adjusts it by twice the weight delta. Cumulative edge
// weights and the weighted random sampling built on them use the same
// doubled scale, so the factor of two must be kept.
type Node struct {
	Key            string  `json:"key"`
	WeightedDegree float64 `json:"weightedDegree"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Altitude       float64 `json:"altitude"`
}

// Edge is one observed communication path between two radios. Two edges
// between the same pair are distinct entities with independent weights.
type Edge struct {
	U      NodeIndex `json:"u"`
	V      NodeIndex `json:"v"`
	Weight float64   `json:"weight"`
}

// pairKey is an ordered endpoint pair. Every edge is indexed under both
// orderings so lookup by unordered pair is symmetric.
type pairKey struct {
	a, b NodeIndex
}

// Graph owns all nodes and edges plus the lookup indices. Snapshot
// accessors return copies; no internal state escapes.
type Graph struct {
	nodes map[NodeIndex]*Node
	edges map[EdgeIndex]*Edge

	// Insertion-order views. Snapshot and cumulative-weight iteration
	// follow these so order is deterministic between mutations.
	nodeOrder []NodeIndex
	edgeOrder []EdgeIndex

	byKey    map[string]NodeIndex
	byPair   map[pairKey][]EdgeIndex
	incident map[NodeIndex][]EdgeIndex

	nextNode NodeIndex
	nextEdge EdgeIndex

	log logging.Logger
}

// New creates an empty graph. A nil logger falls back to a no-op logger.
func New(log logging.Logger) *Graph {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Graph{
		nodes:    make(map[NodeIndex]*Node),
		edges:    make(map[EdgeIndex]*Edge),
		byKey:    make(map[string]NodeIndex),
		byPair:   make(map[pairKey][]EdgeIndex),
		incident: make(map[NodeIndex][]EdgeIndex),
		log:      log,
	}
}
