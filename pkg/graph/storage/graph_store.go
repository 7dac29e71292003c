package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/athapong/gencode-kg/pkg/graph"
	"github.com/athapong/gencode-kg/pkg/table"
)

// Output file names of a conversion.
const (
	EdgesFile     = "OWLNETS_edgelist.txt"
	NodesFile     = "OWLNETS_node_metadata.txt"
	RelationsFile = "OWLNETS_relations.txt"
)

// EdgeHeader and NodeHeader are the column names of the output files.
var (
	EdgeHeader = []string{"subject", "predicate", "object"}
	NodeHeader = []string{
		"node_id", "node_namespace", "node_label", "node_definition",
		"node_synonyms", "node_dbxrefs", "value", "lowerbound", "upperbound", "unit",
	}
	RelationHeader = []string{"relation_id", "relation_namespace", "relation_label", "relation_definition"}
)

// listSeparator joins multi-valued node fields.
const listSeparator = "|"

// GraphStore defines an interface for storing knowledge graphs
type GraphStore interface {
	// StoreGraph persists a knowledge graph
	StoreGraph(ctx context.Context, graph *graph.KnowledgeGraphData) error

	// LoadGraph loads a knowledge graph from storage
	LoadGraph(ctx context.Context) (*graph.KnowledgeGraphData, error)
}

// TSVGraphStore keeps a graph as an edge list and a node table.
type TSVGraphStore struct {
	edgesPath string
	nodesPath string
}

// NewTSVGraphStore creates a store over the two files.
func NewTSVGraphStore(edgesPath, nodesPath string) *TSVGraphStore {
	return &TSVGraphStore{edgesPath: edgesPath, nodesPath: nodesPath}
}

// StoreGraph rewrites both files. Each file is replaced atomically.
func (s *TSVGraphStore) StoreGraph(ctx context.Context, g *graph.KnowledgeGraphData) error {
	if err := table.AtomicWrite(s.edgesPath, func(w io.Writer) error {
		return WriteEdges(w, g.Edges)
	}); err != nil {
		return errors.Wrap(err, "store edges")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(table.AtomicWrite(s.nodesPath, func(w io.Writer) error {
		return WriteNodes(w, g.Nodes)
	}), "store nodes")
}

// LoadGraph reads both files back. Node kinds are not stored and come back
// empty.
func (s *TSVGraphStore) LoadGraph(ctx context.Context) (*graph.KnowledgeGraphData, error) {
	et, err := table.ReadFile(s.edgesPath, table.ReadOptions{Header: true, Raw: true})
	if err != nil {
		return nil, errors.Wrap(err, "load edges")
	}
	nt, err := table.ReadFile(s.nodesPath, table.ReadOptions{Header: true, Raw: true})
	if err != nil {
		return nil, errors.Wrap(err, "load nodes")
	}

	out := &graph.KnowledgeGraphData{
		Edges: make([]graph.Edge, 0, et.Len()),
		Nodes: make([]graph.Node, 0, nt.Len()),
	}
	for r := range et.Rows {
		out.Edges = append(out.Edges, graph.Edge{
			Subject:   et.Value(r, "subject"),
			Predicate: et.Value(r, "predicate"),
			Object:    et.Value(r, "object"),
		})
	}
	for r := range nt.Rows {
		n := graph.Node{
			ID:         nt.Value(r, "node_id"),
			Namespace:  nt.Value(r, "node_namespace"),
			Label:      nt.Value(r, "node_label"),
			Definition: nt.Value(r, "node_definition"),
			Synonyms:   splitList(nt.Value(r, "node_synonyms")),
			DBXrefs:    splitList(nt.Value(r, "node_dbxrefs")),
			Value:      nt.Value(r, "value"),
			Unit:       nt.Value(r, "unit"),
		}
		lo, hi := nt.Value(r, "lowerbound"), nt.Value(r, "upperbound")
		if lo != "" || hi != "" {
			lower, err := strconv.ParseInt(lo, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "node %s lowerbound", n.ID)
			}
			upper, err := strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "node %s upperbound", n.ID)
			}
			n.Bounds = &graph.Range{Lower: lower, Upper: upper}
		}
		out.Nodes = append(out.Nodes, n)
	}
	return out, nil
}

// WriteEdges writes the edge list with its header.
func WriteEdges(w io.Writer, edges []graph.Edge) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	if err := table.WriteRow(bw, EdgeHeader); err != nil {
		return err
	}
	for _, e := range edges {
		if err := table.WriteRow(bw, []string{e.Subject, e.Predicate, e.Object}); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteNodes writes the node table with its header.
func WriteNodes(w io.Writer, nodes []graph.Node) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	if err := table.WriteRow(bw, NodeHeader); err != nil {
		return err
	}
	for _, n := range nodes {
		var lower, upper string
		if n.Bounds != nil {
			lower = strconv.FormatInt(n.Bounds.Lower, 10)
			upper = strconv.FormatInt(n.Bounds.Upper, 10)
		}
		row := []string{
			n.ID, n.Namespace, n.Label, n.Definition,
			strings.Join(n.Synonyms, listSeparator),
			strings.Join(n.DBXrefs, listSeparator),
			n.Value, lower, upper, n.Unit,
		}
		if err := table.WriteRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteRelations writes the relations file with its header.
func WriteRelations(w io.Writer, relations []graph.Relation) error {
	bw := bufio.NewWriter(w)
	if err := table.WriteRow(bw, RelationHeader); err != nil {
		return err
	}
	for _, r := range relations {
		if err := table.WriteRow(bw, []string{r.ID, r.Namespace, r.Label, r.Definition}); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}

// RelationsStore writes the predicates a conversion can emit.
type RelationsStore struct {
	path      string
	namespace string
}

// NewRelationsStore creates a relations writer for namespace.
func NewRelationsStore(path, namespace string) *RelationsStore {
	return &RelationsStore{path: path, namespace: namespace}
}

// StoreGraph writes every known relation; the graph itself is not read.
func (s *RelationsStore) StoreGraph(ctx context.Context, _ *graph.KnowledgeGraphData) error {
	return errors.Wrap(table.AtomicWrite(s.path, func(w io.Writer) error {
		return WriteRelations(w, graph.Relations(s.namespace))
	}), "store relations")
}

// JSONGraphStore implements GraphStore using JSON files
type JSONGraphStore struct {
	filePath string
}

// NewJSONGraphStore creates a new JSON graph store
func NewJSONGraphStore(filePath string) *JSONGraphStore {
	return &JSONGraphStore{
		filePath: filePath,
	}
}

// StoreGraph stores the knowledge graph as JSON
func (s *JSONGraphStore) StoreGraph(ctx context.Context, g *graph.KnowledgeGraphData) error {
	return errors.Wrap(table.AtomicWrite(s.filePath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	}), "store json graph")
}

// LoadGraph loads a knowledge graph from a JSON file
func (s *JSONGraphStore) LoadGraph(ctx context.Context) (*graph.KnowledgeGraphData, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "load json graph")
	}

	var g graph.KnowledgeGraphData
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.filePath)
	}
	return &g, nil
}
