package gtf

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gencode-kg/pkg/table"
)

// DefaultColumns names the nine GTF columns.
var DefaultColumns = []string{
	ColChromosome, "annotation_source", ColFeatureType, ColStart, ColEnd,
	"score", ColStrand, "genomic_phase", ColAttributes,
}

// DefaultKeys are the attribute keys decoded into columns.
var DefaultKeys = []string{
	ColGeneID, ColTranscriptID, ColGeneType, "gene_status", ColGeneName,
	ColTranscriptType, "transcript_status", ColTranscriptName, "exon_number",
	"exon_id", "level", "tag", "transcript_support_level", "havana_gene",
	"havana_transcript", ColHGNCID, ColOnt, "protein_id", "ccdsid",
}

// Annotation turns raw GTF rows into the feature table: rows are filtered
// by feature type, the attribute column is decoded into one column per
// key, and the attribute column itself is dropped.
type Annotation struct {
	AttributeColumn string
	Filter          FeatureFilter
	Decoder         *Decoder
	logger          *logrus.Logger
}

// NewAnnotation creates the annotation stage.
func NewAnnotation(filter FeatureFilter, decoder *Decoder, logger *logrus.Logger) *Annotation {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Annotation{
		AttributeColumn: ColAttributes,
		Filter:          filter,
		Decoder:         decoder,
		logger:          logger,
	}
}

// Build returns the decoded feature table and the attribute table it was
// built from.
func (a *Annotation) Build(ctx context.Context, raw *table.Table) (*table.Table, *AttributeTable, error) {
	filtered := a.Filter.FilterRows(raw)
	a.logger.WithFields(logrus.Fields{
		"rows":          raw.Len(),
		"kept":          filtered.Len(),
		"feature_types": a.Filter.FeatureTypes,
	}).Info("Filtered annotation rows by feature type")

	attrs, err := filtered.Column(a.AttributeColumn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "attribute column")
	}

	decoded, err := a.Decoder.Decode(ctx, attrs)
	if err != nil {
		return nil, nil, err
	}
	if n := len(decoded.Malformed); n > 0 {
		a.logger.WithFields(logrus.Fields{
			"rows":  n,
			"first": decoded.Malformed[0],
		}).Debug("Attribute strings with unparsable key/value pairs")
	}

	out, err := filtered.Drop(decoded.Keys...).AppendColumns(decoded.Keys, decoded.Columns)
	if err != nil {
		return nil, nil, err
	}
	return out.Drop(a.AttributeColumn), decoded, nil
}
