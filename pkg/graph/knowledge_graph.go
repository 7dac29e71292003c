package graph

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// KnowledgeGraphData is the output of one conversion: the edge list and the
// node table, both in emission order.
type KnowledgeGraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// PredicateCounts counts edges per predicate.
func (d *KnowledgeGraphData) PredicateCounts() map[string]int {
	out := make(map[string]int)
	for _, e := range d.Edges {
		out[e.Predicate]++
	}
	return out
}

// KindCounts counts nodes per kind.
func (d *KnowledgeGraphData) KindCounts() map[string]int {
	out := make(map[string]int)
	for _, n := range d.Nodes {
		out[n.Kind]++
	}
	return out
}

// NodeSet accumulates nodes with unique IDs, keeping insertion order. The
// first node with a given ID wins.
type NodeSet struct {
	ids   mapset.Set[string]
	nodes []Node
}

// NewNodeSet creates an empty set.
func NewNodeSet() *NodeSet {
	return &NodeSet{ids: mapset.NewThreadUnsafeSet[string]()}
}

// Add inserts n unless its ID is already present, and reports whether it
// was inserted.
func (s *NodeSet) Add(n Node) bool {
	if !s.ids.Add(n.ID) {
		return false
	}
	s.nodes = append(s.nodes, n)
	return true
}

// Contains reports whether a node with the ID was added.
func (s *NodeSet) Contains(id string) bool {
	return s.ids.Contains(id)
}

// Len returns the number of nodes.
func (s *NodeSet) Len() int {
	return len(s.nodes)
}

// Nodes returns the nodes in insertion order.
func (s *NodeSet) Nodes() []Node {
	return s.nodes
}
