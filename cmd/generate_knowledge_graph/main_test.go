package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/gencode-kg/pkg/config"
	"github.com/athapong/gencode-kg/pkg/graph"
	"github.com/athapong/gencode-kg/pkg/graph/storage"
	"github.com/athapong/gencode-kg/pkg/gtf"
)

func testdata(t *testing.T, parts ...string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join(append([]string{"..", "..", "pkg", "graph", "testdata"}, parts...)...))
	require.NoError(t, err)
	return abs
}

// writeConfig writes a config pointing at the graph fixtures and returns
// its path and the output directory.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "sab_jkg")
	path := filepath.Join(dir, "gencode.yaml")
	content := fmt.Sprintf(`
directories:
  sab_source_dir: %s
  sab_jkg_dir: %s
  vs_dir: %s
output:
  relations_file: OWLNETS_relations.txt
  json_file: graph.json
  metrics_file: gencode.prom
runtime:
  workers: 2
`, testdata(t, "sab_source"), out, testdata(t, "GENCODE_VS"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, filepath.Join(out, "GENCODE")
}

func execute(args ...string) (string, error) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute("version")
	require.NoError(t, err)
	assert.Equal(t, "generate_knowledge_graph version "+Version+"\n", out)
}

func TestConvertThenVerify(t *testing.T) {
	cfgPath, outDir := writeConfig(t)

	_, err := execute("convert", "gencode", "--fetch", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	for _, name := range []string{
		"GTF_annotation.tsv", storage.EdgesFile, storage.NodesFile,
		"OWLNETS_relations.txt", "graph.json", "gencode.prom",
	} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	edges, err := os.ReadFile(filepath.Join(outDir, storage.EdgesFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(edges), strings.Join(storage.EdgeHeader, "\t")+"\n"))

	out, err := execute("verify", "GENCODE", "-c", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, storage.EdgesFile+": identical")
	assert.Contains(t, out, storage.NodesFile+": identical")

	// a hand-edited edge list no longer matches
	edited := strings.Replace(string(edges), "GENCODE_VS:C0000001", "GENCODE_VS:C0000999", 1)
	require.NoError(t, os.WriteFile(filepath.Join(outDir, storage.EdgesFile), []byte(edited), 0644))

	out, err = execute("verify", "GENCODE", "-c", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 output file(s) differ")
	assert.Contains(t, out, "1 line(s) added, 1 removed")
	assert.Contains(t, out, storage.NodesFile+": identical")
}

func TestConvertWithoutFetchNeedsAnnotation(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := execute("convert", "GENCODE", "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--fetch")
}

func TestRelations(t *testing.T) {
	cfgPath, outDir := writeConfig(t)

	out, err := execute("relations", "GENCODE", "--config", cfgPath)
	require.NoError(t, err)
	path := filepath.Join(outDir, "OWLNETS_relations.txt")
	assert.Equal(t, path+"\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 10, "header plus one line per predicate")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := newLogger("loud")
	assert.Error(t, err)

	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())
}

func TestResolveThroughRegistry(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	dir := filepath.Dir(cfgPath)
	registry := filepath.Join(dir, "sab.json")
	require.NoError(t, os.WriteFile(registry, []byte(`{"sabs": {
		"GENCODE": {"converter": "gencode", "config": "gencode.yaml", "prerequisite": "GENCODE_VS"},
		"UBERON": {"converter": "owl", "config": "uberon.yaml"}
	}}`), 0644))

	cfg, entry, err := resolve(&globalFlags{registry: registry}, "gencode")
	require.NoError(t, err)
	assert.Equal(t, "GENCODE", entry.Name)
	assert.Equal(t, 2, cfg.Runtime.Workers)

	_, _, err = resolve(&globalFlags{registry: registry}, "uberon")
	assert.True(t, errors.Is(err, config.ErrUnsupportedConverter))

	_, _, err = resolve(&globalFlags{registry: registry}, "HGNC")
	assert.True(t, errors.Is(err, config.ErrUnknownSAB))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Filters.FeatureTypes = "gene, transcript"
	cfg.Runtime.Workers = 8

	opts := optionsFromConfig(cfg, config.SABEntry{Name: "GENCODE", Prerequisite: "GENCODE_VS"})
	assert.Equal(t, "GENCODE", opts.SAB)
	assert.Equal(t, "GENCODE_VS", opts.PrerequisiteSAB)
	assert.Equal(t, []string{gtf.FeatureGene, gtf.FeatureTranscript}, opts.FeatureTypes)
	assert.Nil(t, opts.ProjectColumns)
	assert.Equal(t, 8, opts.Workers)
	assert.Equal(t, filepath.Join("sab_source", "GENCODE"), opts.SourceDir)
	assert.Equal(t, filepath.Join("sab_jkg", "GENCODE"), opts.OutputDir)
	assert.Equal(t, "sab_jkg/GENCODE_VS", opts.VocabularyDir)
	assert.Len(t, opts.XRefs, 4)
	assert.False(t, opts.Fetch)
}

func TestOutputStores(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Len(t, outputStores(cfg, "GENCODE"), 1)

	cfg.Output.RelationsFile = storage.RelationsFile
	cfg.Output.JSONFile = "graph.json"
	assert.Len(t, outputStores(cfg, "GENCODE"), 3)
}

func TestInspect(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	_, err := execute("convert", "GENCODE", "-f", "-c", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	page := filepath.Join(outDir, "or4f5.html")
	out, err := execute("inspect", "GENCODE", "ENSEMBL:ENST00000641515", "-c", cfgPath, "--html", page)
	require.NoError(t, err)
	assert.Contains(t, out, "ENSEMBL:ENST00000641515\t"+graph.PredTranscribedFrom+"\tENSEMBL:ENSG00000186092\n")
	assert.Contains(t, out, "ENSEMBL:ENST00000641515\t"+graph.PredHasGeneProduct+"\tUNIPROTKB:Q8NH21\n")
	assert.NotContains(t, out, "ENSG00000223972")
	assert.FileExists(t, page)

	_, err = execute("inspect", "GENCODE", "ENSEMBL:ENSG00000000000", "-c", cfgPath)
	assert.Error(t, err)
}
