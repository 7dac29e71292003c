// Package xref joins auxiliary cross-reference tables onto the feature
// table by transcript ID.
package xref

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gencode-kg/pkg/gtf"
	"github.com/athapong/gencode-kg/pkg/table"
)

// Source describes one headerless auxiliary table: the file name pattern
// that locates it and the names of its columns. The first column is always
// the join key.
type Source struct {
	Name    string   `yaml:"name" json:"name"`
	Pattern string   `yaml:"pattern" json:"pattern"`
	Columns []string `yaml:"columns" json:"columns"`
}

// DefaultSources lists the GENCODE metadata tables in join order.
func DefaultSources() []Source {
	return []Source{
		{Name: "entrez", Pattern: "EntrezGene", Columns: []string{gtf.ColTranscriptID, gtf.ColEntrezGeneID}},
		{Name: "refseq", Pattern: "RefSeq", Columns: []string{gtf.ColTranscriptID, gtf.ColRefSeqRNAID, gtf.ColRefSeqProteinID}},
		{Name: "swissprot", Pattern: "SwissProt", Columns: []string{gtf.ColTranscriptID, gtf.ColSwissProtAN, gtf.ColSwissProtAN2}},
		{Name: "trembl", Pattern: "TrEMBL", Columns: []string{gtf.ColTranscriptID, gtf.ColTrEMBLAN, gtf.ColTrEMBLAN2}},
	}
}

// Aux is a loaded auxiliary table.
type Aux struct {
	Source Source
	Path   string
	Table  *table.Table
}

// Joiner loads auxiliary tables and left-joins them, in order, onto the
// feature table.
type Joiner struct {
	Key     string
	Sources []Source
	logger  *logrus.Logger
}

// NewJoiner creates a joiner keyed on transcript_id.
func NewJoiner(sources []Source, logger *logrus.Logger) *Joiner {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Joiner{
		Key:     gtf.ColTranscriptID,
		Sources: sources,
		logger:  logger,
	}
}

// Load locates and reads every source table in dir. A source whose file
// cannot be found is an error: a partial join would silently drop edges.
func (j *Joiner) Load(dir string) ([]Aux, error) {
	out := make([]Aux, 0, len(j.Sources))
	for _, src := range j.Sources {
		if len(src.Columns) == 0 || src.Columns[0] != j.Key {
			return nil, errors.Errorf("source %s: first column must be %s", src.Name, j.Key)
		}
		path, err := table.FindFile(dir, src.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "source %s", src.Name)
		}
		t, err := table.ReadFile(path, table.ReadOptions{Columns: src.Columns, Comment: "#"})
		if err != nil {
			return nil, errors.Wrapf(err, "source %s", src.Name)
		}
		j.logger.WithFields(logrus.Fields{
			"source": src.Name,
			"path":   path,
			"rows":   t.Len(),
		}).Info("Loaded cross-reference table")
		out = append(out, Aux{Source: src, Path: path, Table: t})
	}
	return out, nil
}

// Join left-joins every auxiliary table onto features, in the given order.
// The input table is not modified.
func (j *Joiner) Join(features *table.Table, aux []Aux) (*table.Table, error) {
	out := features
	for _, a := range aux {
		before := out.Len()
		joined, err := out.LeftJoin(a.Table, j.Key)
		if err != nil {
			return nil, errors.Wrapf(err, "join %s", a.Source.Name)
		}
		if joined.Len() != before {
			j.logger.WithFields(logrus.Fields{
				"source": a.Source.Name,
				"before": before,
				"after":  joined.Len(),
			}).Warn("Cross-reference join fanned out rows")
		}
		out = joined
	}
	return out, nil
}
