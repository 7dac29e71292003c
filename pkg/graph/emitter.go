package graph

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/athapong/gencode-kg/pkg/gtf"
	"github.com/athapong/gencode-kg/pkg/vocabulary"
)

// SkipReason says why a derived edge was not emitted.
type SkipReason string

const (
	SkipMissingField SkipReason = "missing_field"
	SkipUnresolved   SkipReason = "unresolved"
	SkipNoSubject    SkipReason = "no_subject"
)

// Strand labels as they appear in the vocabulary.
var strandLabels = map[string]string{
	"+": "positive",
	"-": "negative",
}

// Vocabulary resolves labels to prior nodes.
type Vocabulary interface {
	Resolve(label string) (vocabulary.Node, bool)
}

// Skip identifies a skipped edge by predicate and reason.
type Skip struct {
	Predicate string
	Reason    SkipReason
}

// EmitStats counts what an emission pass produced and dropped.
type EmitStats struct {
	Edges          map[string]int
	Skipped        map[Skip]int
	Nodes          map[string]int
	DuplicateNodes int
	SwappedBounds  int
}

func newEmitStats() EmitStats {
	return EmitStats{
		Edges:   make(map[string]int),
		Skipped: make(map[Skip]int),
		Nodes:   make(map[string]int),
	}
}

func (s *EmitStats) merge(o EmitStats) {
	for k, v := range o.Edges {
		s.Edges[k] += v
	}
	for k, v := range o.Skipped {
		s.Skipped[k] += v
	}
	for k, v := range o.Nodes {
		s.Nodes[k] += v
	}
	s.DuplicateNodes += o.DuplicateNodes
	s.SwappedBounds += o.SwappedBounds
}

// Emitter turns feature records into edges and nodes.
type Emitter struct {
	Namespace string
	Workers   int
	vocab     Vocabulary
	logger    *logrus.Logger
}

// NewEmitter creates an emitter. namespace is written on every node.
func NewEmitter(namespace string, vocab Vocabulary, workers int, logger *logrus.Logger) *Emitter {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Emitter{
		Namespace: namespace,
		Workers:   workers,
		vocab:     vocab,
		logger:    logger,
	}
}

// Emit runs both passes.
func (e *Emitter) Emit(ctx context.Context, records []gtf.FeatureRecord) (*KnowledgeGraphData, EmitStats, error) {
	edges, stats, err := e.Edges(ctx, records)
	if err != nil {
		return nil, stats, err
	}
	nodes, nodeStats := e.Nodes(records)
	stats.merge(nodeStats)
	return &KnowledgeGraphData{Nodes: nodes, Edges: edges}, stats, nil
}

// Edges emits transcript-scope edges for each distinct transcript, then
// feature-scope edges for every record, both in record order. The
// feature-scope pass is sharded over Workers and reassembled in order.
func (e *Emitter) Edges(ctx context.Context, records []gtf.FeatureRecord) ([]Edge, EmitStats, error) {
	stats := newEmitStats()
	var edges []Edge

	for _, rec := range gtf.DistinctBy(records, gtf.FeatureTranscript, gtf.ByTranscriptID) {
		edges = e.transcriptEdges(edges, rec, &stats)
	}

	ranges := gtf.ShardRanges(len(records), e.Workers)
	shardEdges := make([][]Edge, len(ranges))
	shardStats := make([]EmitStats, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Workers, 1))
	for i, rg := range ranges {
		i, rg := i, rg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := newEmitStats()
			var out []Edge
			for _, rec := range records[rg[0]:rg[1]] {
				out = e.featureEdges(out, rec, &st)
			}
			shardEdges[i], shardStats[i] = out, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, errors.Wrap(err, "emit feature edges")
	}

	for i := range ranges {
		edges = append(edges, shardEdges[i]...)
		stats.merge(shardStats[i])
	}
	return edges, stats, nil
}

func (e *Emitter) transcriptEdges(out []Edge, rec gtf.FeatureRecord, st *EmitStats) []Edge {
	subject, _ := Canonical(PrefixEnsembl, rec.TranscriptID)
	emit := func(pred, obj string) {
		out = append(out, Edge{Subject: subject, Predicate: pred, Object: obj})
		st.Edges[pred]++
	}

	if rec.GeneID != "" {
		gene, _ := Canonical(PrefixEnsembl, rec.GeneID)
		emit(PredTranscribedFrom, gene)
	} else {
		st.Skipped[Skip{PredTranscribedFrom, SkipMissingField}]++
	}

	for _, an := range []string{rec.SwissProtAN, rec.TrEMBLAN} {
		if an == "" {
			st.Skipped[Skip{PredHasGeneProduct, SkipMissingField}]++
			continue
		}
		emit(PredHasGeneProduct, CURIE(PrefixUniProtKB, an))
	}
	return out
}

func (e *Emitter) featureEdges(out []Edge, rec gtf.FeatureRecord, st *EmitStats) []Edge {
	var subject string
	switch {
	case rec.TranscriptID != "":
		subject, _ = Canonical(PrefixEnsembl, rec.TranscriptID)
	case rec.GeneID != "":
		subject, _ = Canonical(PrefixEnsembl, rec.GeneID)
	default:
		st.Skipped[Skip{"", SkipNoSubject}]++
		return out
	}

	emit := func(pred, obj string) {
		out = append(out, Edge{Subject: subject, Predicate: pred, Object: obj})
		st.Edges[pred]++
	}
	resolved := func(pred, label string) {
		if label == "" {
			st.Skipped[Skip{pred, SkipMissingField}]++
			return
		}
		n, ok := e.vocab.Resolve(label)
		if !ok {
			st.Skipped[Skip{pred, SkipUnresolved}]++
			return
		}
		emit(pred, n.ID)
	}

	resolved(PredLocatedIn, rec.Chromosome)
	resolved(PredIsFeatureType, rec.FeatureType)
	resolved(PredIsGeneBiotype, rec.GeneType)
	resolved(PredIsTranscriptBiotype, rec.TranscriptType)
	resolved(PredHasDirectionalFormOf, strandLabels[rec.Strand])

	if rec.Ont == "" {
		st.Skipped[Skip{PredSubClassOf, SkipMissingField}]++
	}
	for _, ref := range strings.Split(rec.Ont, ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			emit(PredSubClassOf, ref)
		}
	}

	for _, id := range []string{rec.RefSeqRNAID, rec.RefSeqProteinID} {
		if id == "" {
			st.Skipped[Skip{PredHasRefSeqID, SkipMissingField}]++
			continue
		}
		emit(PredHasRefSeqID, CURIE(PrefixRefSeq, id))
	}
	return out
}

// Nodes emits, in order: genes, transcripts, Entrez genes, RefSeq RNAs and
// RefSeq proteins. Node IDs are unique across all kinds; a repeated ID
// keeps the first node.
func (e *Emitter) Nodes(records []gtf.FeatureRecord) ([]Node, EmitStats) {
	stats := newEmitStats()
	set := NewNodeSet()
	add := func(n Node) {
		if set.Add(n) {
			stats.Nodes[n.Kind]++
		} else {
			stats.DuplicateNodes++
		}
	}
	bounds := func(rec gtf.FeatureRecord) *Range {
		if !rec.HasBounds {
			return nil
		}
		r, swapped := NewRange(rec.Start, rec.End)
		if swapped {
			stats.SwappedBounds++
			e.logger.WithFields(logrus.Fields{
				"row":   rec.Ordinal,
				"start": rec.Start,
				"end":   rec.End,
			}).Warn("Genomic start after end; swapping bounds")
		}
		return &r
	}

	for _, rec := range gtf.DistinctBy(records, gtf.FeatureGene, gtf.ByGeneID) {
		id, version := Canonical(PrefixEnsembl, rec.GeneID)
		n := Node{
			ID:        id,
			Kind:      KindGene,
			Namespace: e.Namespace,
			Label:     strings.TrimSpace(rec.GeneName),
			Value:     version,
			Bounds:    bounds(rec),
		}
		if rec.HGNCID != "" {
			n.DBXrefs = []string{rec.HGNCID}
		}
		add(n)
	}

	transcripts := gtf.DistinctBy(records, gtf.FeatureTranscript, gtf.ByTranscriptID)
	for _, rec := range transcripts {
		id, version := Canonical(PrefixEnsembl, rec.TranscriptID)
		add(Node{
			ID:        id,
			Kind:      KindTranscript,
			Namespace: e.Namespace,
			Label:     rec.TranscriptName,
			Value:     version,
			Bounds:    bounds(rec),
		})
	}

	entrez := gtf.DistinctBy(transcripts, "", func(r gtf.FeatureRecord) string {
		return normalizeEntrezID(r.EntrezGeneID)
	})
	for _, rec := range entrez {
		n := Node{
			ID:        CURIE(PrefixEntrez, normalizeEntrezID(rec.EntrezGeneID)),
			Kind:      KindEntrezGene,
			Namespace: e.Namespace,
			Label:     rec.GeneName,
			Bounds:    bounds(rec),
		}
		if rec.HGNCID != "" {
			n.DBXrefs = []string{rec.HGNCID}
		}
		add(n)
	}

	refseq := func(kind string, id func(gtf.FeatureRecord) string) {
		for _, rec := range gtf.DistinctBy(records, "", id) {
			add(Node{
				ID:        CURIE(PrefixRefSeq, id(rec)),
				Kind:      kind,
				Namespace: e.Namespace,
				Label:     id(rec),
			})
		}
	}
	refseq(KindRefSeqRNA, func(r gtf.FeatureRecord) string { return r.RefSeqRNAID })
	refseq(KindRefSeqProtein, func(r gtf.FeatureRecord) string { return r.RefSeqProteinID })

	return set.Nodes(), stats
}

// normalizeEntrezID renders integral IDs written as floats ("1234.0") as
// integers. Anything else is kept as is.
func normalizeEntrezID(id string) string {
	if id == "" {
		return ""
	}
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return id
	}
	f, err := strconv.ParseFloat(id, 64)
	if err != nil || f != float64(int64(f)) {
		return id
	}
	return strconv.FormatInt(int64(f), 10)
}
