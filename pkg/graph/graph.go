package graph

import (
	"slices"

	"github.com/rfmesh/meshmap/pkg/logging"
)

// AddNode inserts a node with the given key and zero weighted degree and
// returns its handle. Adding a key that already exists is not fatal: the
// duplicate is logged and the existing handle returned, so the node count
// never double-counts a key.
func (g *Graph) AddNode(key string) NodeIndex {
	if idx, ok := g.byKey[key]; ok {
		g.log.Warn("add node: key already exists", logging.NodeKey(key),
			logging.Error(&GraphError{Op: "add node", Entity: "node", Key: key, Cause: ErrDuplicateKey}))
		return idx
	}

	idx := g.nextNode
	g.nextNode++

	g.nodes[idx] = &Node{Key: key}
	g.nodeOrder = append(g.nodeOrder, idx)
	g.byKey[key] = idx

	return idx
}

// RemoveNode removes the node and every edge incident to it. Each incident
// edge goes through the single-edge removal path, so the surviving
// endpoint's weighted degree is adjusted per removed edge. Unknown handles
// are logged and ignored.
func (g *Graph) RemoveNode(idx NodeIndex) {
	node, ok := g.nodes[idx]
	if !ok {
		g.log.Warn("remove node: unknown handle", logging.Int("index", int(idx)),
			logging.Error(ErrUnknownNode))
		return
	}

	for len(g.incident[idx]) > 0 {
		eIdx := g.incident[idx][0]
		edge := g.edges[eIdx]
		pair := pairKey{edge.U, edge.V}
		ordinal := slices.Index(g.byPair[pair], eIdx)
		g.removeEdgeAt(pair, ordinal)
	}

	delete(g.incident, idx)
	delete(g.byKey, node.Key)
	delete(g.nodes, idx)
	if i := slices.Index(g.nodeOrder, idx); i >= 0 {
		g.nodeOrder = slices.Delete(g.nodeOrder, i, i+1)
	}
}

// AddEdge creates a new edge entity between u and v, even if edges between
// the pair already exist. The handle is registered under both endpoint
// orderings, and both endpoints' weighted degrees increase by twice the
// weight. A self-loop has only one ordering, so its handle is registered
// once; the degree adjustment still lands once per endpoint slot, giving a
// self-loop four times its weight on the node. Unknown keys are logged and
// the call is a no-op.
func (g *Graph) AddEdge(u, v string, weight float64) {
	uIdx, ok := g.byKey[u]
	if !ok {
		g.log.Warn("add edge: unknown node", logging.NodeKey(u), logging.Error(nodeErr("add edge", u)))
		return
	}
	vIdx, ok := g.byKey[v]
	if !ok {
		g.log.Warn("add edge: unknown node", logging.NodeKey(v), logging.Error(nodeErr("add edge", v)))
		return
	}

	eIdx := g.nextEdge
	g.nextEdge++

	g.edges[eIdx] = &Edge{U: uIdx, V: vIdx, Weight: weight}
	g.edgeOrder = append(g.edgeOrder, eIdx)

	g.byPair[pairKey{uIdx, vIdx}] = append(g.byPair[pairKey{uIdx, vIdx}], eIdx)
	g.incident[uIdx] = append(g.incident[uIdx], eIdx)
	if uIdx != vIdx {
		g.byPair[pairKey{vIdx, uIdx}] = append(g.byPair[pairKey{vIdx, uIdx}], eIdx)
		g.incident[vIdx] = append(g.incident[vIdx], eIdx)
	}

	g.adjustDegree(uIdx, weight)
	g.adjustDegree(vIdx, weight)
}

// UpdateEdge replaces the weight of the parallel edge at the given ordinal
// between u and v and adjusts both endpoints' weighted degrees by twice the
// weight delta. If no edge exists between the pair it behaves exactly as
// AddEdge. Ordinals are transient: a prior swap-style removal may have
// reordered the parallel list, so callers must resolve the ordinal and
// update in the same breath.
func (g *Graph) UpdateEdge(u, v string, weight float64, ordinal int) {
	uIdx, ok := g.byKey[u]
	if !ok {
		g.log.Warn("update edge: unknown node", logging.NodeKey(u), logging.Error(nodeErr("update edge", u)))
		return
	}
	vIdx, ok := g.byKey[v]
	if !ok {
		g.log.Warn("update edge: unknown node", logging.NodeKey(v), logging.Error(nodeErr("update edge", v)))
		return
	}

	list := g.byPair[pairKey{uIdx, vIdx}]
	if len(list) == 0 {
		g.AddEdge(u, v, weight)
		return
	}
	if ordinal < 0 || ordinal >= len(list) {
		g.log.Warn("update edge: parallel ordinal out of range",
			logging.Int("ordinal", ordinal), logging.Error(edgeErr("update edge", u, v)))
		return
	}

	edge := g.edges[list[ordinal]]
	old := edge.Weight
	edge.Weight = weight

	g.adjustDegree(edge.U, weight-old)
	g.adjustDegree(edge.V, weight-old)
}

// EdgeWeight returns the sum of the weights of every parallel edge between
// u and v. Unknown nodes or a missing edge log a diagnostic and yield 0.
func (g *Graph) EdgeWeight(u, v string) float64 {
	list, ok := g.pairList("edge weight", u, v)
	if !ok {
		return 0
	}

	var total float64
	for _, eIdx := range list {
		total += g.edges[eIdx].Weight
	}
	return total
}

// ParallelEdgeWeight returns the weight of the single parallel edge at the
// given ordinal between u and v, or 0 (logged) on any miss.
func (g *Graph) ParallelEdgeWeight(u, v string, ordinal int) float64 {
	list, ok := g.pairList("parallel edge weight", u, v)
	if !ok {
		return 0
	}
	if ordinal < 0 || ordinal >= len(list) {
		g.log.Warn("parallel edge weight: ordinal out of range",
			logging.Int("ordinal", ordinal), logging.Error(edgeErr("parallel edge weight", u, v)))
		return 0
	}
	return g.edges[list[ordinal]].Weight
}

// RemoveEdge removes the parallel edge at the given ordinal between u and v
// from both orderings of the pair index and decreases both endpoints'
// weighted degrees by twice that edge's weight. Removal is swap-style, so
// surviving ordinals may be reordered. All misses are logged, not fatal.
func (g *Graph) RemoveEdge(u, v string, ordinal int) {
	uIdx, ok := g.byKey[u]
	if !ok {
		g.log.Warn("remove edge: unknown node", logging.NodeKey(u), logging.Error(nodeErr("remove edge", u)))
		return
	}
	vIdx, ok := g.byKey[v]
	if !ok {
		g.log.Warn("remove edge: unknown node", logging.NodeKey(v), logging.Error(nodeErr("remove edge", v)))
		return
	}

	pair := pairKey{uIdx, vIdx}
	list := g.byPair[pair]
	if len(list) == 0 {
		g.log.Warn("remove edge: no edge between pair", logging.Error(edgeErr("remove edge", u, v)))
		return
	}
	if ordinal < 0 || ordinal >= len(list) {
		g.log.Warn("remove edge: parallel ordinal out of range",
			logging.Int("ordinal", ordinal), logging.Error(edgeErr("remove edge", u, v)))
		return
	}

	g.removeEdgeAt(pair, ordinal)
}

// RemoveAllEdges removes every parallel edge between u and v, decreasing
// the endpoints' weighted degrees per removed edge, and drops both pair
// index entries entirely.
func (g *Graph) RemoveAllEdges(u, v string) {
	uIdx, ok := g.byKey[u]
	if !ok {
		g.log.Warn("remove all edges: unknown node", logging.NodeKey(u), logging.Error(nodeErr("remove all edges", u)))
		return
	}
	vIdx, ok := g.byKey[v]
	if !ok {
		g.log.Warn("remove all edges: unknown node", logging.NodeKey(v), logging.Error(nodeErr("remove all edges", v)))
		return
	}

	pair := pairKey{uIdx, vIdx}
	list := slices.Clone(g.byPair[pair])
	if len(list) == 0 {
		g.log.Warn("remove all edges: no edge between pair", logging.Error(edgeErr("remove all edges", u, v)))
		return
	}

	for _, eIdx := range list {
		edge := g.edges[eIdx]
		g.detachEdge(eIdx, edge)
		g.adjustDegree(edge.U, -edge.Weight)
		g.adjustDegree(edge.V, -edge.Weight)
	}

	delete(g.byPair, pair)
	delete(g.byPair, pairKey{vIdx, uIdx})
}

// DegreeOf returns the number of distinct edges incident to the node, each
// parallel edge counted once. Unknown keys log and return 0.
func (g *Graph) DegreeOf(key string) int {
	idx, ok := g.byKey[key]
	if !ok {
		g.log.Warn("degree: unknown node", logging.NodeKey(key), logging.Error(nodeErr("degree", key)))
		return 0
	}
	return len(g.incident[idx])
}

// Order returns the number of nodes in the graph.
func (g *Graph) Order() int {
	return len(g.nodes)
}

// Size returns the number of edges in the graph.
func (g *Graph) Size() int {
	return len(g.edges)
}

// Nodes returns a copy of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.nodeOrder))
	for _, idx := range g.nodeOrder {
		nodes = append(nodes, *g.nodes[idx])
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edgeOrder))
	for _, idx := range g.edgeOrder {
		edges = append(edges, *g.edges[idx])
	}
	return edges
}

// Neighbors returns the nodes adjacent to the given key. A neighbor
// connected through n parallel edges appears n times.
func (g *Graph) Neighbors(key string) []Node {
	idx, ok := g.byKey[key]
	if !ok {
		g.log.Warn("neighbors: unknown node", logging.NodeKey(key), logging.Error(nodeErr("neighbors", key)))
		return nil
	}

	neighbors := make([]Node, 0, len(g.incident[idx]))
	for _, eIdx := range g.incident[idx] {
		neighbors = append(neighbors, *g.nodes[g.otherEndpoint(eIdx, idx)])
	}
	return neighbors
}

// NeighborIndices returns the handles of the nodes adjacent to the given
// key, with the same parallel-edge multiplicity as Neighbors.
func (g *Graph) NeighborIndices(key string) []NodeIndex {
	idx, ok := g.byKey[key]
	if !ok {
		g.log.Warn("neighbors: unknown node", logging.NodeKey(key), logging.Error(nodeErr("neighbors", key)))
		return nil
	}

	neighbors := make([]NodeIndex, 0, len(g.incident[idx]))
	for _, eIdx := range g.incident[idx] {
		neighbors = append(neighbors, g.otherEndpoint(eIdx, idx))
	}
	return neighbors
}

// CumulativeEdgeWeights returns, in edge insertion order, the running total
// of twice each edge's weight. External samplers pick a random edge
// proportionally to its doubled weight by binary-searching this prefix-sum
// sequence.
func (g *Graph) CumulativeEdgeWeights() []float64 {
	weights := make([]float64, 0, len(g.edgeOrder))
	var total float64
	for _, idx := range g.edgeOrder {
		total += g.edges[idx].Weight * 2
		weights = append(weights, total)
	}
	return weights
}

// GetNode returns a copy of the node at the given handle.
func (g *Graph) GetNode(idx NodeIndex) (Node, bool) {
	node, ok := g.nodes[idx]
	if !ok {
		return Node{}, false
	}
	return *node, true
}

// IndexOf returns the handle registered for the given key.
func (g *Graph) IndexOf(key string) (NodeIndex, bool) {
	idx, ok := g.byKey[key]
	return idx, ok
}

// SetNodePosition records the geographic position of a node. Unknown keys
// log and return.
func (g *Graph) SetNodePosition(key string, latitude, longitude, altitude float64) {
	idx, ok := g.byKey[key]
	if !ok {
		g.log.Warn("set position: unknown node", logging.NodeKey(key), logging.Error(nodeErr("set position", key)))
		return
	}
	node := g.nodes[idx]
	node.Latitude = latitude
	node.Longitude = longitude
	node.Altitude = altitude
}

// Clone returns a deep copy sharing no mutable state with the original.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		nodes:     make(map[NodeIndex]*Node, len(g.nodes)),
		edges:     make(map[EdgeIndex]*Edge, len(g.edges)),
		nodeOrder: slices.Clone(g.nodeOrder),
		edgeOrder: slices.Clone(g.edgeOrder),
		byKey:     make(map[string]NodeIndex, len(g.byKey)),
		byPair:    make(map[pairKey][]EdgeIndex, len(g.byPair)),
		incident:  make(map[NodeIndex][]EdgeIndex, len(g.incident)),
		nextNode:  g.nextNode,
		nextEdge:  g.nextEdge,
		log:       g.log,
	}
	for idx, node := range g.nodes {
		n := *node
		clone.nodes[idx] = &n
	}
	for idx, edge := range g.edges {
		e := *edge
		clone.edges[idx] = &e
	}
	for key, idx := range g.byKey {
		clone.byKey[key] = idx
	}
	for pair, list := range g.byPair {
		clone.byPair[pair] = slices.Clone(list)
	}
	for idx, list := range g.incident {
		clone.incident[idx] = slices.Clone(list)
	}
	return clone
}

// removeEdgeAt removes the edge at the given ordinal of the pair's parallel
// list. Both orderings of the pair index are always identical sequences
// (appends and swap-removals happen in lockstep), so removing the same
// ordinal from both drops the same edge and preserves index symmetry.
func (g *Graph) removeEdgeAt(pair pairKey, ordinal int) {
	list := g.byPair[pair]
	eIdx := list[ordinal]
	edge := g.edges[eIdx]

	g.byPair[pair] = swapRemove(list, ordinal)
	rev := pairKey{pair.b, pair.a}
	if rev != pair {
		g.byPair[rev] = swapRemove(g.byPair[rev], ordinal)
	}
	if len(g.byPair[pair]) == 0 {
		delete(g.byPair, pair)
	}
	if rev != pair && len(g.byPair[rev]) == 0 {
		delete(g.byPair, rev)
	}

	g.detachEdge(eIdx, edge)
	g.adjustDegree(edge.U, -edge.Weight)
	g.adjustDegree(edge.V, -edge.Weight)
}

// detachEdge drops the edge entity from the edge arena, the insertion-order
// view and both endpoints' incident lists. Pair index maintenance is the
// caller's responsibility.
func (g *Graph) detachEdge(eIdx EdgeIndex, edge *Edge) {
	delete(g.edges, eIdx)
	if i := slices.Index(g.edgeOrder, eIdx); i >= 0 {
		g.edgeOrder = slices.Delete(g.edgeOrder, i, i+1)
	}
	if i := slices.Index(g.incident[edge.U], eIdx); i >= 0 {
		g.incident[edge.U] = swapRemove(g.incident[edge.U], i)
	}
	if i := slices.Index(g.incident[edge.V], eIdx); i >= 0 {
		g.incident[edge.V] = swapRemove(g.incident[edge.V], i)
	}
}

// adjustDegree applies the doubling convention: every weight delta lands on
// the node's weighted degree scaled by two.
func (g *Graph) adjustDegree(idx NodeIndex, delta float64) {
	if node, ok := g.nodes[idx]; ok {
		node.WeightedDegree += 2 * delta
	}
}

// pairList resolves both keys and returns the pair's parallel edge list,
// logging on any miss.
func (g *Graph) pairList(op, u, v string) ([]EdgeIndex, bool) {
	uIdx, ok := g.byKey[u]
	if !ok {
		g.log.Warn(op+": unknown node", logging.NodeKey(u), logging.Error(nodeErr(op, u)))
		return nil, false
	}
	vIdx, ok := g.byKey[v]
	if !ok {
		g.log.Warn(op+": unknown node", logging.NodeKey(v), logging.Error(nodeErr(op, v)))
		return nil, false
	}
	list := g.byPair[pairKey{uIdx, vIdx}]
	if len(list) == 0 {
		g.log.Warn(op+": no edge between pair", logging.Error(edgeErr(op, u, v)))
		return nil, false
	}
	return list, true
}

func (g *Graph) otherEndpoint(eIdx EdgeIndex, idx NodeIndex) NodeIndex {
	edge := g.edges[eIdx]
	if edge.U == idx {
		return edge.V
	}
	return edge.U
}

func swapRemove[T comparable](s []T, i int) []T {
	s[i] = s[len(s)-1]
	return s[:len(s)-1]
}
