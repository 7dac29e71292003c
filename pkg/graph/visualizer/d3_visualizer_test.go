package visualizer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/gencode-kg/pkg/graph"
)

func TestRender(t *testing.T) {
	g := &graph.KnowledgeGraphData{
		Nodes: []graph.Node{{ID: "ENSEMBL:ENSG1", Label: "<b>G1</b>"}},
		Edges: []graph.Edge{{Subject: "ENSEMBL:ENSG1", Predicate: graph.PredLocatedIn, Object: "GENCODE_VS:C1"}},
	}

	var buf bytes.Buffer
	v := NewD3Visualizer("")
	v.Title = "ENSEMBL:ENSG1"
	require.NoError(t, v.Render(&buf, g))

	html := buf.String()
	assert.Contains(t, html, "<title>ENSEMBL:ENSG1</title>")
	assert.Contains(t, html, "Nodes: 2, Edges: 1")
	assert.Contains(t, html, `"type":"GENCODE_VS"`)
	assert.NotContains(t, html, "<b>G1</b>")
}

func TestBuildView(t *testing.T) {
	vw := buildView(&graph.KnowledgeGraphData{
		Nodes: []graph.Node{{ID: "ENSEMBL:ENST1", Label: "T1"}},
		Edges: []graph.Edge{
			{Subject: "ENSEMBL:ENST1", Predicate: graph.PredSubClassOf, Object: "PGO:0000005"},
			{Subject: "ENSEMBL:ENST1", Predicate: graph.PredSubClassOf, Object: "PGO:0000005"},
		},
	})
	assert.Equal(t, []viewNode{
		{ID: "ENSEMBL:ENST1", Label: "T1", Type: "ENSEMBL"},
		{ID: "PGO:0000005", Type: "PGO"},
	}, vw.Nodes)
	assert.Len(t, vw.Edges, 2)
	assert.Equal(t, "unknown", prefix("bare"))
}

func TestVisualize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "graph.html")
	require.NoError(t, NewD3Visualizer(path).Visualize(&graph.KnowledgeGraphData{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Nodes: 0, Edges: 0")
}
