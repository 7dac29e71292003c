// Package vocabulary resolves controlled-vocabulary labels (chromosome
// names, feature types, biotypes, strand directions) to the node IDs
// assigned by a prior ingestion.
package vocabulary

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gencode-kg/pkg/table"
)

// ErrMissingPrerequisite is returned when the node table of the prerequisite
// ingestion is absent.
var ErrMissingPrerequisite = errors.New("missing prerequisite ingestion")

// NodeFile is the node table written by every ingestion.
const NodeFile = "OWLNETS_node_metadata.txt"

const (
	colNodeID    = "node_id"
	colNodeLabel = "node_label"
)

// Node is one row of the prior node table.
type Node struct {
	ID    string
	Label string
}

// Resolver maps labels to nodes. It is immutable after construction and
// safe for concurrent readers.
type Resolver struct {
	byLabel    map[string]Node
	n          int
	duplicates map[string]int
}

// NewResolver indexes nodes by label. The first node with a given label
// wins; later ones are counted as duplicates.
func NewResolver(nodes []Node) *Resolver {
	r := &Resolver{
		byLabel:    make(map[string]Node, len(nodes)),
		n:          len(nodes),
		duplicates: make(map[string]int),
	}
	for _, n := range nodes {
		if _, ok := r.byLabel[n.Label]; ok {
			r.duplicates[n.Label]++
			continue
		}
		r.byLabel[n.Label] = n
	}
	return r
}

// Load reads NodeFile from dir. prerequisite names the ingestion that
// produces it and is reported when the file is missing.
func Load(dir, prerequisite string, logger *logrus.Logger) (*Resolver, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	path := filepath.Join(dir, NodeFile)
	t, err := table.ReadFile(path, table.ReadOptions{Header: true})
	if err != nil {
		if errors.Is(err, table.ErrFileNotFound) {
			return nil, errors.Wrapf(ErrMissingPrerequisite,
				"%s not found; run the %s ingestion first", path, prerequisite)
		}
		return nil, errors.Wrap(err, "load vocabulary")
	}

	ids, err := t.Column(colNodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "vocabulary %s", path)
	}
	labels, err := t.Column(colNodeLabel)
	if err != nil {
		return nil, errors.Wrapf(err, "vocabulary %s", path)
	}

	nodes := make([]Node, len(ids))
	for i := range ids {
		nodes[i] = Node{ID: ids[i], Label: labels[i]}
	}
	r := NewResolver(nodes)

	for label, n := range r.duplicates {
		logger.WithFields(logrus.Fields{
			"label":   label,
			"extra":   n,
			"node_id": r.byLabel[label].ID,
		}).Warn("Duplicate vocabulary label; keeping the first node")
	}
	logger.WithFields(logrus.Fields{
		"path":   path,
		"nodes":  r.n,
		"labels": len(r.byLabel),
	}).Info("Loaded vocabulary")
	return r, nil
}

// Resolve returns the node for an exact, case-sensitive label. Empty labels
// and nodes without an ID never resolve.
func (r *Resolver) Resolve(label string) (Node, bool) {
	if label == "" {
		return Node{}, false
	}
	n, ok := r.byLabel[label]
	if !ok || n.ID == "" {
		return Node{}, false
	}
	return n, true
}

// Len returns the number of nodes read, duplicates included.
func (r *Resolver) Len() int {
	return r.n
}

// DuplicateLabels returns how many extra nodes carried each repeated label.
func (r *Resolver) DuplicateLabels() map[string]int {
	out := make(map[string]int, len(r.duplicates))
	for k, v := range r.duplicates {
		out[k] = v
	}
	return out
}
