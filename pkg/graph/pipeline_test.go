package graph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/gencode-kg/pkg/graph/metrics"
	"github.com/athapong/gencode-kg/pkg/gtf"
	"github.com/athapong/gencode-kg/pkg/table"
	"github.com/athapong/gencode-kg/pkg/vocabulary"
)

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.SourceDir = filepath.Join("testdata", "sab_source", "GENCODE")
	opts.OutputDir = t.TempDir()
	opts.VocabularyDir = filepath.Join("testdata", "GENCODE_VS")
	opts.FeatureTypes = []string{gtf.FeatureGene, gtf.FeatureTranscript}
	return opts
}

type memorySink struct {
	graphs []*KnowledgeGraphData
}

func (m *memorySink) StoreGraph(ctx context.Context, g *KnowledgeGraphData) error {
	m.graphs = append(m.graphs, g)
	return nil
}

type failingSink struct{}

func (failingSink) StoreGraph(ctx context.Context, g *KnowledgeGraphData) error {
	return errors.New("disk full")
}

func TestPipelineFetchRun(t *testing.T) {
	opts := testOptions(t)
	opts.Fetch = true
	opts.Workers = 3

	malformed := testutil.ToFloat64(metrics.MalformedRows)
	unresolved := testutil.ToFloat64(metrics.EdgesSkipped.WithLabelValues(PredLocatedIn, string(SkipUnresolved)))

	sink := &memorySink{}
	p := NewPipeline(opts, nil)
	p.AddSink(sink)
	g, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.graphs, 1)
	assert.Same(t, g, sink.graphs[0])
	assert.NotEmpty(t, p.RunID())

	assert.Len(t, g.Edges, 36)
	assert.Len(t, g.Nodes, 11)

	assert.Equal(t, []Edge{
		{"ENSEMBL:ENST00000456328", PredTranscribedFrom, "ENSEMBL:ENSG00000223972"},
		{"ENSEMBL:ENST00000450305", PredTranscribedFrom, "ENSEMBL:ENSG00000223972"},
		{"ENSEMBL:ENST00000641515", PredTranscribedFrom, "ENSEMBL:ENSG00000186092"},
		{"ENSEMBL:ENST00000641515", PredHasGeneProduct, "UNIPROTKB:Q8NH21"},
		{"ENSEMBL:ENST00000641515", PredHasGeneProduct, "UNIPROTKB:A0A2U3U0J3"},
		{"ENSEMBL:ENSG00000223972", PredLocatedIn, "GENCODE_VS:C0000001"},
	}, g.Edges[:6])

	assert.Equal(t, []string{"PGO:0000005", "PGO:0000019"}, edgesFor(g.Edges, "ENSEMBL:ENST00000450305", PredSubClassOf))
	assert.Equal(t, []string{"REFSEQ:NP_999999.1"}, edgesFor(g.Edges, "ENSEMBL:ENST00000450305", PredHasRefSeqID))
	assert.Empty(t, edgesFor(g.Edges, "ENSEMBL:ENSG00000999999", PredLocatedIn))
	assert.Equal(t, []string{"GENCODE_VS:C0000301"}, edgesFor(g.Edges, "ENSEMBL:ENSG00000999999", PredHasDirectionalFormOf))

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{
		"ENSEMBL:ENSG00000223972", "ENSEMBL:ENSG00000186092", "ENSEMBL:ENSG00000999999",
		"ENSEMBL:ENST00000456328", "ENSEMBL:ENST00000450305", "ENSEMBL:ENST00000641515",
		"ENTREZ:100287102", "ENTREZ:79501",
		"REFSEQ:NM_001005484.2",
		"REFSEQ:NP_999999.1", "REFSEQ:NP_001005484.2",
	}, ids)
	assert.Equal(t, Node{
		ID: "ENSEMBL:ENSG00000223972", Kind: KindGene, Namespace: "GENCODE", Label: "DDX11L1",
		DBXrefs: []string{"HGNC:37102"}, Value: "5", Bounds: &Range{Lower: 11869, Upper: 14409},
	}, g.Nodes[0])
	assert.Equal(t, Node{
		ID: "ENTREZ:79501", Kind: KindEntrezGene, Namespace: "GENCODE", Label: "OR4F5",
		DBXrefs: []string{"HGNC:14825"}, Bounds: &Range{Lower: 65419, Upper: 71585},
	}, g.Nodes[7])

	assert.Equal(t, malformed+1, testutil.ToFloat64(metrics.MalformedRows))
	assert.Equal(t, unresolved+1, testutil.ToFloat64(metrics.EdgesSkipped.WithLabelValues(PredLocatedIn, string(SkipUnresolved))))

	// the translated annotation file is written and reused
	ann, err := table.ReadFile(p.AnnotationPath(), table.ReadOptions{Header: true})
	require.NoError(t, err)
	assert.Equal(t, 6, ann.Len())
	assert.True(t, ann.Has(gtf.ColEntrezGeneID))
	assert.False(t, ann.Has(gtf.ColAttributes))

	opts.Fetch = false
	again, err := NewPipeline(opts, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

func TestPipelineRequiresVocabulary(t *testing.T) {
	opts := testOptions(t)
	opts.Fetch = true
	opts.VocabularyDir = t.TempDir()

	_, err := NewPipeline(opts, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, vocabulary.ErrMissingPrerequisite)

	_, statErr := os.Stat(filepath.Join(opts.OutputDir, opts.AnnotationFile))
	assert.True(t, os.IsNotExist(statErr), "nothing is written before the vocabulary loads")
}

func TestPipelineWithoutFetchNeedsAnnotationFile(t *testing.T) {
	opts := testOptions(t)

	_, err := NewPipeline(opts, nil).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, table.ErrFileNotFound)
	assert.Contains(t, err.Error(), "--fetch")
}

func TestPipelineSinkError(t *testing.T) {
	opts := testOptions(t)
	opts.Fetch = true

	p := NewPipeline(opts, nil)
	p.AddSink(failingSink{})
	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestPipelineFeatureTypeAll(t *testing.T) {
	opts := testOptions(t)
	opts.Fetch = true
	opts.FeatureTypes = nil

	g, err := NewPipeline(opts, nil).Build(context.Background())
	require.NoError(t, err)

	// the exon row adds feature-scope edges for its transcript
	assert.Equal(t, []string{"GENCODE_VS:C0000001", "GENCODE_VS:C0000001"},
		edgesFor(g.Edges, "ENSEMBL:ENST00000456328", PredLocatedIn))
	assert.Len(t, g.Nodes, 11)
}

func TestPipelineFetchAndRereadAgreeOnMissingTokens(t *testing.T) {
	opts := testOptions(t)
	src := t.TempDir()
	entries, err := os.ReadDir(opts.SourceDir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(opts.SourceDir, e.Name()))
		require.NoError(t, err)
		if strings.HasSuffix(e.Name(), ".gtf") {
			data = []byte(strings.Replace(string(data),
				`gene_name "DDX11L1"; level 2;`, `gene_name "DDX11L1"; ont "None"; level 2;`, 1))
		}
		require.NoError(t, os.WriteFile(filepath.Join(src, e.Name()), data, 0644))
	}
	opts.SourceDir = src

	opts.Fetch = true
	fetched, err := NewPipeline(opts, nil).Build(context.Background())
	require.NoError(t, err)

	opts.Fetch = false
	reread, err := NewPipeline(opts, nil).Build(context.Background())
	require.NoError(t, err)

	assert.Empty(t, edgesFor(fetched.Edges, "ENSEMBL:ENSG00000223972", PredSubClassOf))
	assert.Len(t, fetched.Edges, 36)
	assert.Equal(t, fetched, reread)
}
