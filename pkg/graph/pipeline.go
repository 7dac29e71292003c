package graph

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gencode-kg/pkg/graph/metrics"
	"github.com/athapong/gencode-kg/pkg/gtf"
	"github.com/athapong/gencode-kg/pkg/table"
	"github.com/athapong/gencode-kg/pkg/vocabulary"
	"github.com/athapong/gencode-kg/pkg/xref"
)

// Sink receives the finished graph. Output stores implement it.
type Sink interface {
	StoreGraph(ctx context.Context, g *KnowledgeGraphData) error
}

// Options configures one conversion run.
type Options struct {
	// SAB is the source identifier; it is also the node namespace.
	SAB string
	// PrerequisiteSAB names the ingestion that produced the vocabulary.
	PrerequisiteSAB string

	// SourceDir holds the raw annotation and cross-reference files.
	SourceDir string
	// OutputDir receives the translated annotation file. Empty means
	// SourceDir.
	OutputDir     string
	VocabularyDir string

	AnnotationPattern string
	AnnotationFile    string

	Columns        []string
	Keys           []string
	PairDelimiter  string
	FieldDelimiter string

	FeatureTypes   []string
	ProjectColumns []string
	XRefs          []xref.Source

	Workers int
	// Fetch rebuilds the translated annotation file from raw sources.
	// Otherwise the previously written file is read.
	Fetch bool
}

// DefaultOptions returns options for a GENCODE run.
func DefaultOptions() Options {
	return Options{
		SAB:               "GENCODE",
		PrerequisiteSAB:   "GENCODE_VS",
		AnnotationPattern: "annotation.gtf",
		AnnotationFile:    "GTF_annotation.tsv",
		Columns:           gtf.DefaultColumns,
		Keys:              gtf.DefaultKeys,
		PairDelimiter:     gtf.DefaultPairDelimiter,
		FieldDelimiter:    gtf.DefaultFieldDelimiter,
		XRefs:             xref.DefaultSources(),
		Workers:           1,
	}
}

// Pipeline runs a conversion: vocabulary, annotation, joins, emission and
// output.
type Pipeline struct {
	opts   Options
	sinks  []Sink
	mutex  sync.RWMutex
	logger *logrus.Logger
	runID  string
}

// NewPipeline creates a pipeline with a fresh run ID.
func NewPipeline(opts Options, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		opts:   opts,
		logger: logger,
		runID:  uuid.New().String(),
	}
}

// AddSink adds an output store. Sinks run in the order they were added.
func (p *Pipeline) AddSink(s Sink) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.sinks = append(p.sinks, s)
}

// RunID identifies this run in logs.
func (p *Pipeline) RunID() string {
	return p.runID
}

func (p *Pipeline) log() *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{"run_id": p.runID, "sab": p.opts.SAB})
}

// AnnotationPath is the translated annotation file.
func (p *Pipeline) AnnotationPath() string {
	dir := p.opts.OutputDir
	if dir == "" {
		dir = p.opts.SourceDir
	}
	return filepath.Join(dir, p.opts.AnnotationFile)
}

// Run builds the graph and hands it to every sink.
func (p *Pipeline) Run(ctx context.Context) (*KnowledgeGraphData, error) {
	g, err := p.Build(ctx)
	if err != nil {
		return nil, err
	}

	p.mutex.RLock()
	sinks := append([]Sink(nil), p.sinks...)
	p.mutex.RUnlock()

	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("write"))
	defer timer.ObserveDuration()
	for i, s := range sinks {
		if err := s.StoreGraph(ctx, g); err != nil {
			return nil, errors.Wrapf(err, "sink %d", i)
		}
	}
	p.log().Info("Conversion completed")
	return g, nil
}

// Build produces the graph in memory. With Fetch set it also rewrites the
// translated annotation file.
func (p *Pipeline) Build(ctx context.Context) (*KnowledgeGraphData, error) {
	p.log().WithFields(logrus.Fields{
		"fetch":   p.opts.Fetch,
		"workers": p.opts.Workers,
	}).Info("Starting conversion")

	vocab, err := p.loadVocabulary()
	if err != nil {
		return nil, err
	}

	features, err := p.features(ctx)
	if err != nil {
		return nil, err
	}

	records := gtf.Records(features)
	var missing []string
	for _, col := range gtf.RecordColumns {
		if !features.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		p.log().WithField("columns", missing).Warn("Feature table lacks columns; dependent edges and nodes will be skipped")
	}

	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("emit"))
	emitter := NewEmitter(p.opts.SAB, vocab, p.opts.Workers, p.logger)
	g, stats, err := emitter.Emit(ctx, records)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}
	p.record(stats)

	p.log().WithFields(logrus.Fields{
		"records": humanize.Comma(int64(len(records))),
		"edges":   humanize.Comma(int64(len(g.Edges))),
		"nodes":   humanize.Comma(int64(len(g.Nodes))),
		"kinds":   g.KindCounts(),
	}).Info("Emitted graph")
	return g, nil
}

func (p *Pipeline) loadVocabulary() (*vocabulary.Resolver, error) {
	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("vocabulary"))
	defer timer.ObserveDuration()

	vocab, err := vocabulary.Load(p.opts.VocabularyDir, p.opts.PrerequisiteSAB, p.logger)
	if err != nil {
		return nil, err
	}
	metrics.RowsRead.WithLabelValues("vocabulary").Add(float64(vocab.Len()))
	metrics.VocabularyDuplicateLabels.Set(float64(len(vocab.DuplicateLabels())))
	return vocab, nil
}

// features returns the joined, projected feature table, either rebuilt from
// raw sources or read from the translated annotation file.
func (p *Pipeline) features(ctx context.Context) (*table.Table, error) {
	if !p.opts.Fetch {
		timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("read_annotation"))
		defer timer.ObserveDuration()

		t, err := table.ReadFile(p.AnnotationPath(), table.ReadOptions{Header: true})
		if errors.Is(err, table.ErrFileNotFound) {
			return nil, errors.Wrap(err, "translated annotation file missing; rerun with --fetch")
		}
		if err != nil {
			return nil, err
		}
		metrics.RowsRead.WithLabelValues("annotation").Add(float64(t.Len()))
		p.log().WithField("rows", humanize.Comma(int64(t.Len()))).Info("Read translated annotation file")
		return t, nil
	}

	raw, err := p.readRaw()
	if err != nil {
		return nil, err
	}

	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("decode"))
	filter := gtf.FeatureFilter{FeatureTypes: p.opts.FeatureTypes, Columns: p.opts.ProjectColumns}
	decoder := &gtf.Decoder{
		PairDelimiter:  p.opts.PairDelimiter,
		FieldDelimiter: p.opts.FieldDelimiter,
		Keys:           p.opts.Keys,
		Workers:        p.opts.Workers,
	}
	decoded, attrs, err := gtf.NewAnnotation(filter, decoder, p.logger).Build(ctx, raw)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}
	metrics.MalformedRows.Add(float64(len(attrs.Malformed)))

	timer = prometheus.NewTimer(metrics.StageDuration.WithLabelValues("join"))
	joiner := xref.NewJoiner(p.opts.XRefs, p.logger)
	aux, err := joiner.Load(p.opts.SourceDir)
	if err != nil {
		return nil, err
	}
	for _, a := range aux {
		metrics.RowsRead.WithLabelValues(a.Source.Name).Add(float64(a.Table.Len()))
	}
	joined, err := joiner.Join(decoded, aux)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	projected, err := filter.Project(joined)
	if err != nil {
		return nil, errors.Wrap(err, "project feature columns")
	}

	if err := table.WriteFile(p.AnnotationPath(), projected); err != nil {
		return nil, err
	}
	p.log().WithFields(logrus.Fields{
		"path": p.AnnotationPath(),
		"rows": humanize.Comma(int64(projected.Len())),
	}).Info("Wrote translated annotation file")
	return projected, nil
}

func (p *Pipeline) readRaw() (*table.Table, error) {
	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("read_gtf"))
	defer timer.ObserveDuration()

	path, err := table.FindFile(p.opts.SourceDir, p.opts.AnnotationPattern)
	if err != nil {
		return nil, errors.Wrap(err, "locate annotation GTF")
	}
	raw, err := table.ReadFile(path, table.ReadOptions{Columns: p.opts.Columns, Comment: "#"})
	if err != nil {
		return nil, err
	}
	metrics.RowsRead.WithLabelValues("gtf").Add(float64(raw.Len()))
	p.log().WithFields(logrus.Fields{
		"path": path,
		"rows": humanize.Comma(int64(raw.Len())),
	}).Info("Read annotation GTF")
	return raw, nil
}

func (p *Pipeline) record(stats EmitStats) {
	for pred, n := range stats.Edges {
		metrics.EdgesEmitted.WithLabelValues(pred).Add(float64(n))
	}
	for kind, n := range stats.Nodes {
		metrics.NodesEmitted.WithLabelValues(kind).Add(float64(n))
	}
	metrics.DuplicateNodes.Add(float64(stats.DuplicateNodes))

	skips := make([]Skip, 0, len(stats.Skipped))
	for k := range stats.Skipped {
		skips = append(skips, k)
	}
	sort.Slice(skips, func(i, j int) bool {
		if skips[i].Predicate != skips[j].Predicate {
			return skips[i].Predicate < skips[j].Predicate
		}
		return skips[i].Reason < skips[j].Reason
	})
	for _, k := range skips {
		n := stats.Skipped[k]
		metrics.EdgesSkipped.WithLabelValues(k.Predicate, string(k.Reason)).Add(float64(n))
		p.log().WithFields(logrus.Fields{
			"predicate": k.Predicate,
			"reason":    k.Reason,
			"count":     n,
		}).Debug("Skipped edges")
	}
	if stats.DuplicateNodes > 0 {
		p.log().WithField("count", stats.DuplicateNodes).Info("Dropped nodes with repeated IDs")
	}
}
