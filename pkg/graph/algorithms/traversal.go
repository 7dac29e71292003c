// Package algorithms walks a converted graph.
package algorithms

import (
	"context"

	"github.com/pkg/errors"

	"github.com/athapong/gencode-kg/pkg/graph"
)

type TraversalType string

const (
	BFS TraversalType = "BFS"
	DFS TraversalType = "DFS"
)

// ErrUnknownNode is returned when the start ID appears in no edge and no
// node.
var ErrUnknownNode = errors.New("unknown node")

// GraphTraversal follows edges in both directions. Vocabulary and ontology
// objects have no node row but are still visited.
type GraphTraversal struct {
	nodes map[string]graph.Node
	adj   map[string][]int
	edges []graph.Edge
}

func NewGraphTraversal(g *graph.KnowledgeGraphData) *GraphTraversal {
	t := &GraphTraversal{
		nodes: make(map[string]graph.Node, len(g.Nodes)),
		adj:   make(map[string][]int),
		edges: g.Edges,
	}
	for _, n := range g.Nodes {
		if _, ok := t.nodes[n.ID]; !ok {
			t.nodes[n.ID] = n
		}
	}
	for i, e := range g.Edges {
		t.adj[e.Subject] = append(t.adj[e.Subject], i)
		if e.Object != e.Subject {
			t.adj[e.Object] = append(t.adj[e.Object], i)
		}
	}
	return t
}

// Traverse collects the subgraph within maxDepth hops of startID. Nodes
// come back in visit order; IDs with no node row get a stub carrying only
// the ID. Edges are those whose both ends were visited, in file order.
func (t *GraphTraversal) Traverse(ctx context.Context, startID string, maxDepth int, traversalType TraversalType) (*graph.KnowledgeGraphData, error) {
	if _, ok := t.nodes[startID]; !ok && len(t.adj[startID]) == 0 {
		return nil, errors.Wrapf(ErrUnknownNode, "%q", startID)
	}

	var (
		order []string
		err   error
	)
	visited := make(map[string]bool)
	switch traversalType {
	case BFS:
		order, err = t.bfs(ctx, startID, maxDepth, visited)
	case DFS:
		order, err = t.dfs(ctx, startID, maxDepth, visited, make(map[string]int), nil)
	default:
		return nil, errors.Errorf("unsupported traversal type: %s", traversalType)
	}
	if err != nil {
		return nil, err
	}

	out := &graph.KnowledgeGraphData{Nodes: make([]graph.Node, 0, len(order))}
	for _, id := range order {
		n, ok := t.nodes[id]
		if !ok {
			n = graph.Node{ID: id}
		}
		out.Nodes = append(out.Nodes, n)
	}
	for _, e := range t.edges {
		if visited[e.Subject] && visited[e.Object] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out, nil
}

func (t *GraphTraversal) neighbors(id string) []string {
	out := make([]string, 0, len(t.adj[id]))
	for _, i := range t.adj[id] {
		e := t.edges[i]
		if e.Subject == id {
			out = append(out, e.Object)
		} else {
			out = append(out, e.Subject)
		}
	}
	return out
}

func (t *GraphTraversal) bfs(ctx context.Context, startID string, maxDepth int, visited map[string]bool) ([]string, error) {
	queue := []string{startID}
	var order []string

	for depth := 0; len(queue) > 0 && depth <= maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		for _, current := range queue {
			if visited[current] {
				continue
			}
			visited[current] = true
			order = append(order, current)
			for _, r := range t.neighbors(current) {
				if !visited[r] {
					next = append(next, r)
				}
			}
		}
		queue = next
	}
	return order, nil
}

// dfs re-expands a node reached again with more depth remaining, so a
// shorter path found later still reaches everything within maxDepth.
func (t *GraphTraversal) dfs(ctx context.Context, currentID string, maxDepth int, visited map[string]bool, remaining map[string]int, order []string) ([]string, error) {
	if maxDepth < 0 {
		return order, nil
	}
	if best, ok := remaining[currentID]; ok && best >= maxDepth {
		return order, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remaining[currentID] = maxDepth
	if !visited[currentID] {
		visited[currentID] = true
		order = append(order, currentID)
	}

	var err error
	for _, r := range t.neighbors(currentID) {
		if order, err = t.dfs(ctx, r, maxDepth-1, visited, remaining, order); err != nil {
			return nil, err
		}
	}
	return order, nil
}
