package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadOverridesDefaultsAndExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "test.env"), "GENCODE_TEST_VS=vocab/GENCODE_VS\nGENCODE_TEST_PASSWORD=secret\n")
	writeFile(t, filepath.Join(dir, "gencode.yaml"), `
directories:
  sab_source_dir: src
  sab_jkg_dir: /data/jkg
  vs_dir: ${GENCODE_TEST_VS}
filters:
  feature_types: all
runtime:
  workers: 4
neo4j:
  password: ${GENCODE_TEST_PASSWORD}
`)

	cfg, err := Load(filepath.Join(dir, "gencode.yaml"), filepath.Join(dir, "test.env"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Runtime.Workers)
	assert.Equal(t, "all", cfg.Filters.FeatureTypes)
	assert.Equal(t, "all", cfg.Filters.Columns, "unset keys keep defaults")
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Len(t, cfg.XRef, 4)

	assert.Equal(t, filepath.Join(dir, "src", "GENCODE"), cfg.SourceDir("GENCODE"))
	assert.Equal(t, "/data/jkg/GENCODE", cfg.OutputDir("GENCODE"))
	assert.Equal(t, filepath.Join(dir, "vocab", "GENCODE_VS"), cfg.VSDir())
	assert.Equal(t, "/data/jkg/GENCODE/OWLNETS_edgelist.txt", cfg.OutputPath("GENCODE", cfg.Output.EdgesFile))
	assert.Equal(t, "", cfg.OutputPath("GENCODE", cfg.Output.JSONFile))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "gtf:\n  pair_delimiter: \" \"\n")

	_, err := Load(path, "")
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"), "")
	assert.Error(t, err)

	_, err = Load(path, filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}

func TestGetValue(t *testing.T) {
	cfg := DefaultConfig()

	v, err := cfg.GetValue("annotation_file", "filename")
	require.NoError(t, err)
	assert.Equal(t, "GTF_annotation.tsv", v)

	v, err = cfg.GetValue("runtime", "workers")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = cfg.GetValue("directories", "nope")
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = cfg.GetValue("nope", "filename")
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sab.json")
	writeFile(t, path, `{"sabs": {
		"gencode": {"converter": "gencode", "config": "gencode.yaml", "prerequisite": "GENCODE_VS"},
		"PATO": {"converter": "owl", "config": "pato.yaml"}
	}}`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GENCODE", "PATO"}, reg.Names())

	entry, err := reg.Lookup("GENCODE")
	require.NoError(t, err)
	assert.Equal(t, SABEntry{
		Name:         "GENCODE",
		Converter:    ConverterGENCODE,
		Config:       filepath.Join(dir, "gencode.yaml"),
		Prerequisite: "GENCODE_VS",
	}, entry)

	_, err = reg.Lookup("pato")
	assert.True(t, errors.Is(err, ErrUnsupportedConverter))

	_, err = reg.Lookup("UNKNOWN")
	assert.True(t, errors.Is(err, ErrUnknownSAB))
}

func TestLoadRegistryRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"sabs": [`)
	_, err := LoadRegistry(bad)
	assert.Error(t, err)

	noSabs := filepath.Join(dir, "nosabs.json")
	writeFile(t, noSabs, `{"other": {}}`)
	_, err = LoadRegistry(noSabs)
	assert.Error(t, err)
}

func TestLoadKeepsNeo4jDefaultsForUnsetEnv(t *testing.T) {
	t.Setenv("NEO4J_URI", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "gencode.yaml")
	writeFile(t, path, `
neo4j:
  uri: ${NEO4J_URI}
  username: ${GENCODE_TEST_UNSET_USER}
  batch_size: 0
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Neo4j.URI, cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.Username)
	assert.Equal(t, 5000, cfg.Neo4j.BatchSize)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://neo4j:7687")
	t.Setenv("NEO4J_PASSWORD", "pw")

	cfg, err := Load(filepath.Join("..", "..", "gencode.yaml"), "")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.GTF, cfg.GTF)
	assert.Equal(t, def.Filters, cfg.Filters)
	assert.Equal(t, def.XRef, cfg.XRef)
	assert.Equal(t, "bolt://neo4j:7687", cfg.Neo4j.URI)
	assert.Equal(t, 4, cfg.Runtime.Workers)

	reg, err := LoadRegistry(filepath.Join("..", "..", "sab.json"))
	require.NoError(t, err)
	entry, err := reg.Lookup("gencode")
	require.NoError(t, err)
	assert.Equal(t, "GENCODE_VS", entry.Prerequisite)
}
