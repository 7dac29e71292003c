// Package config loads converter configuration: a YAML file with one
// section per concern, environment expansion from an optional .env file,
// and the SAB registry.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/athapong/gencode-kg/pkg/xref"
)

// ErrMissingKey is returned by GetValue for an unknown section or key.
var ErrMissingKey = errors.New("missing configuration key")

// Config is the complete converter configuration.
type Config struct {
	Directories    DirectoriesConfig    `yaml:"directories"`
	GTF            GTFConfig            `yaml:"gtf"`
	Filters        FiltersConfig        `yaml:"filters"`
	AnnotationFile AnnotationFileConfig `yaml:"annotation_file"`
	XRef           []xref.Source        `yaml:"xref"`
	Output         OutputConfig         `yaml:"output"`
	Runtime        RuntimeConfig        `yaml:"runtime"`
	Neo4j          Neo4jConfig          `yaml:"neo4j"`

	// baseDir resolves relative directories; it is the directory of the
	// loaded file.
	baseDir string
}

// DirectoriesConfig locates inputs and outputs. Source and output
// directories get the SAB appended.
type DirectoriesConfig struct {
	// SABSourceDir holds the decompressed source files
	SABSourceDir string `yaml:"sab_source_dir"`
	// SABJKGDir receives the translated annotation and the graph files
	SABJKGDir string `yaml:"sab_jkg_dir"`
	// VSDir holds the node table of the vocabulary ingestion
	VSDir string `yaml:"vs_dir"`
}

// GTFConfig describes the annotation file.
type GTFConfig struct {
	Columns           []string `yaml:"columns"`
	Column9Keys       []string `yaml:"column9_keys"`
	PairDelimiter     string   `yaml:"pair_delimiter"`
	FieldDelimiter    string   `yaml:"field_delimiter"`
	AnnotationPattern string   `yaml:"annotation_pattern"`
}

// FiltersConfig holds comma-separated lists; "all" disables a filter.
type FiltersConfig struct {
	FeatureTypes string `yaml:"feature_types"`
	Columns      string `yaml:"columns"`
}

// AnnotationFileConfig names the translated annotation file.
type AnnotationFileConfig struct {
	Filename string `yaml:"filename"`
}

// OutputConfig names output files. Empty optional entries are skipped.
type OutputConfig struct {
	EdgesFile     string `yaml:"edges_file"`
	NodesFile     string `yaml:"nodes_file"`
	RelationsFile string `yaml:"relations_file"`
	JSONFile      string `yaml:"json_file"`
	MetricsFile   string `yaml:"metrics_file"`
}

// RuntimeConfig tunes execution.
type RuntimeConfig struct {
	Workers int `yaml:"workers"`
}

// Neo4jConfig configures the bulk loader.
type Neo4jConfig struct {
	URI       string `yaml:"uri"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	BatchSize int    `yaml:"batch_size"`
}

// DefaultConfig returns a Config with the GENCODE defaults
func DefaultConfig() *Config {
	return &Config{
		Directories: DirectoriesConfig{
			SABSourceDir: "sab_source",
			SABJKGDir:    "sab_jkg",
			VSDir:        "sab_jkg/GENCODE_VS",
		},
		GTF: GTFConfig{
			Columns: []string{
				"chromosome_name", "annotation_source", "feature_type",
				"genomic_start_location", "genomic_end_location", "score",
				"genomic_strand", "genomic_phase", "column_9",
			},
			Column9Keys: []string{
				"gene_id", "transcript_id", "gene_type", "gene_status", "gene_name",
				"transcript_type", "transcript_status", "transcript_name", "exon_number",
				"exon_id", "level", "tag", "transcript_support_level", "havana_gene",
				"havana_transcript", "hgnc_id", "ont", "protein_id", "ccdsid",
			},
			PairDelimiter:     ";",
			FieldDelimiter:    " ",
			AnnotationPattern: "annotation.gtf",
		},
		Filters: FiltersConfig{
			FeatureTypes: "gene,transcript",
			Columns:      "all",
		},
		AnnotationFile: AnnotationFileConfig{
			Filename: "GTF_annotation.tsv",
		},
		XRef: xref.DefaultSources(),
		Output: OutputConfig{
			EdgesFile: "OWLNETS_edgelist.txt",
			NodesFile: "OWLNETS_node_metadata.txt",
		},
		Runtime: RuntimeConfig{
			Workers: 1,
		},
		Neo4j: Neo4jConfig{
			URI:       "bolt://localhost:7687",
			Username:  "neo4j",
			BatchSize: 5000,
		},
	}
}

// Load reads the YAML file at path over the defaults. Before parsing,
// ${VAR} references are expanded from the environment, after loading
// envFile (or ./.env when envFile is empty and the file exists).
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	} else {
		_ = godotenv.Load()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	// ${VAR} of an unset variable expands to "" and must not clear a default.
	def := DefaultConfig().Neo4j
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = def.URI
	}
	if cfg.Neo4j.Username == "" {
		cfg.Neo4j.Username = def.Username
	}
	if cfg.Neo4j.BatchSize <= 0 {
		cfg.Neo4j.BatchSize = def.BatchSize
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	cfg.baseDir = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Directories.SABJKGDir == "" {
		return errors.New("directories.sab_jkg_dir is required")
	}
	if c.Directories.VSDir == "" {
		return errors.New("directories.vs_dir is required")
	}
	if len(c.GTF.Columns) == 0 {
		return errors.New("gtf.columns is required")
	}
	if c.GTF.PairDelimiter == "" || c.GTF.FieldDelimiter == "" {
		return errors.New("gtf delimiters must not be empty")
	}
	if c.GTF.PairDelimiter == c.GTF.FieldDelimiter {
		return errors.Errorf("gtf.pair_delimiter and gtf.field_delimiter are both %q", c.GTF.PairDelimiter)
	}
	if c.AnnotationFile.Filename == "" {
		return errors.New("annotation_file.filename is required")
	}
	if c.Output.EdgesFile == "" || c.Output.NodesFile == "" {
		return errors.New("output.edges_file and output.nodes_file are required")
	}
	if c.Runtime.Workers < 1 {
		return errors.New("runtime.workers must be at least 1")
	}
	for i, src := range c.XRef {
		if src.Pattern == "" || len(src.Columns) < 2 {
			return errors.Errorf("xref[%d] needs a pattern and at least two columns", i)
		}
	}
	return nil
}

// GetValue returns the value of key in section as a string, using the YAML
// names. List values are rendered with fmt.
func (c *Config) GetValue(section, key string) (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "render config")
	}
	var view map[string]interface{}
	if err := yaml.Unmarshal(data, &view); err != nil {
		return "", errors.Wrap(err, "render config")
	}

	sec, ok := view[section].(map[string]interface{})
	if !ok {
		return "", errors.Wrapf(ErrMissingKey, "section %q", section)
	}
	v, ok := sec[key]
	if !ok {
		return "", errors.Wrapf(ErrMissingKey, "%s.%s", section, key)
	}
	return fmt.Sprint(v), nil
}

// Resolve makes a configured path absolute relative to the config file.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// SourceDir is where the source files of sab live.
func (c *Config) SourceDir(sab string) string {
	return filepath.Join(c.Resolve(c.Directories.SABSourceDir), sab)
}

// OutputDir is where the graph files of sab are written.
func (c *Config) OutputDir(sab string) string {
	return filepath.Join(c.Resolve(c.Directories.SABJKGDir), sab)
}

// VSDir is the vocabulary node table directory.
func (c *Config) VSDir() string {
	return c.Resolve(c.Directories.VSDir)
}

// OutputPath resolves an output file name against OutputDir. Empty names
// stay empty.
func (c *Config) OutputPath(sab, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir(sab), name)
}
