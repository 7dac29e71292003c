package gtf

import (
	"strconv"
	"strings"

	"github.com/athapong/gencode-kg/pkg/table"
)

// AllSentinel disables a feature-type or column filter.
const AllSentinel = "all"

// Feature types that get nodes of their own.
const (
	FeatureGene       = "gene"
	FeatureTranscript = "transcript"
)

// Column names of the translated annotation table.
const (
	ColChromosome      = "chromosome_name"
	ColFeatureType     = "feature_type"
	ColStart           = "genomic_start_location"
	ColEnd             = "genomic_end_location"
	ColStrand          = "genomic_strand"
	ColAttributes      = "column_9"
	ColGeneID          = "gene_id"
	ColTranscriptID    = "transcript_id"
	ColGeneName        = "gene_name"
	ColTranscriptName  = "transcript_name"
	ColGeneType        = "gene_type"
	ColTranscriptType  = "transcript_type"
	ColHGNCID          = "hgnc_id"
	ColOnt             = "ont"
	ColEntrezGeneID    = "Entrez_Gene_id"
	ColRefSeqRNAID     = "RefSeq_RNA_id"
	ColRefSeqProteinID = "RefSeq_protein_id"
	ColSwissProtAN     = "UNIPROTKB_SwissProt_AN"
	ColSwissProtAN2    = "UNIPROTKB_SwissProt_AN2"
	ColTrEMBLAN        = "UNIPROTKB_TrEMBL_AN"
	ColTrEMBLAN2       = "UNIPROTKB_TrEMBL_AN2"
)

// RecordColumns are the columns FeatureRecord reads. A projection that
// drops one of them leaves the matching field empty.
var RecordColumns = []string{
	ColFeatureType, ColChromosome, ColStart, ColEnd, ColStrand,
	ColGeneID, ColTranscriptID, ColGeneName, ColTranscriptName,
	ColGeneType, ColTranscriptType, ColHGNCID, ColOnt,
	ColEntrezGeneID, ColRefSeqRNAID, ColRefSeqProteinID,
	ColSwissProtAN, ColTrEMBLAN,
}

// ParseList splits a comma-separated setting. The AllSentinel, alone,
// yields nil, meaning "no filter".
func ParseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 1 && out[0] == AllSentinel {
		return nil
	}
	return out
}

// FeatureFilter selects feature rows and projects columns. Nil slices
// disable the corresponding filter.
type FeatureFilter struct {
	FeatureTypes []string
	Columns      []string
}

// FilterRows keeps rows whose feature_type is configured, in order.
func (f FeatureFilter) FilterRows(t *table.Table) *table.Table {
	if len(f.FeatureTypes) == 0 {
		return t
	}
	i := t.Index(ColFeatureType)
	if i < 0 {
		return table.New(t.Header, nil)
	}
	wanted := make(map[string]bool, len(f.FeatureTypes))
	for _, ft := range f.FeatureTypes {
		wanted[ft] = true
	}
	return t.Filter(func(row []string) bool {
		return wanted[row[i]]
	})
}

// Project keeps the configured columns.
func (f FeatureFilter) Project(t *table.Table) (*table.Table, error) {
	if len(f.Columns) == 0 {
		return t, nil
	}
	return t.Project(f.Columns)
}

// FeatureRecord is one filtered, decoded and joined feature row.
type FeatureRecord struct {
	Ordinal        int
	FeatureType    string
	Chromosome     string
	Start          int64
	End            int64
	HasBounds      bool
	Strand         string
	GeneID         string
	TranscriptID   string
	GeneName       string
	TranscriptName string
	GeneType       string
	TranscriptType string
	HGNCID         string
	Ont            string

	EntrezGeneID    string
	RefSeqRNAID     string
	RefSeqProteinID string
	SwissProtAN     string
	TrEMBLAN        string
}

// Records converts table rows to feature records, in row order. Rows with
// unparsable coordinates keep HasBounds false.
func Records(t *table.Table) []FeatureRecord {
	col := func(name string) func(row []string) string {
		i := t.Index(name)
		return func(row []string) string {
			if i < 0 {
				return ""
			}
			return row[i]
		}
	}
	var (
		featureType    = col(ColFeatureType)
		chromosome     = col(ColChromosome)
		start          = col(ColStart)
		end            = col(ColEnd)
		strand         = col(ColStrand)
		geneID         = col(ColGeneID)
		transcriptID   = col(ColTranscriptID)
		geneName       = col(ColGeneName)
		transcriptName = col(ColTranscriptName)
		geneType       = col(ColGeneType)
		transcriptType = col(ColTranscriptType)
		hgnc           = col(ColHGNCID)
		ont            = col(ColOnt)
		entrez         = col(ColEntrezGeneID)
		refseqRNA      = col(ColRefSeqRNAID)
		refseqProtein  = col(ColRefSeqProteinID)
		swissProt      = col(ColSwissProtAN)
		trembl         = col(ColTrEMBLAN)
	)

	records := make([]FeatureRecord, len(t.Rows))
	for r, row := range t.Rows {
		rec := FeatureRecord{
			Ordinal:         r,
			FeatureType:     featureType(row),
			Chromosome:      chromosome(row),
			Strand:          strand(row),
			GeneID:          geneID(row),
			TranscriptID:    transcriptID(row),
			GeneName:        geneName(row),
			TranscriptName:  transcriptName(row),
			GeneType:        geneType(row),
			TranscriptType:  transcriptType(row),
			HGNCID:          hgnc(row),
			Ont:             ont(row),
			EntrezGeneID:    entrez(row),
			RefSeqRNAID:     refseqRNA(row),
			RefSeqProteinID: refseqProtein(row),
			SwissProtAN:     swissProt(row),
			TrEMBLAN:        trembl(row),
		}
		s, errS := parseCoordinate(start(row))
		e, errE := parseCoordinate(end(row))
		if errS == nil && errE == nil {
			rec.Start, rec.End, rec.HasBounds = s, e, true
		}
		records[r] = rec
	}
	return records
}

// parseCoordinate accepts integers and integral floats ("11869.0"), which
// appear when an upstream tool typed the column as float.
func parseCoordinate(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, strconv.ErrSyntax
	}
	return int64(f), nil
}

// DistinctBy returns the first record per non-empty key among records of
// the given feature type, in source order. An empty featureType matches
// every record.
func DistinctBy(records []FeatureRecord, featureType string, key func(FeatureRecord) string) []FeatureRecord {
	seen := make(map[string]bool)
	var out []FeatureRecord
	for _, rec := range records {
		if featureType != "" && rec.FeatureType != featureType {
			continue
		}
		k := key(rec)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rec)
	}
	return out
}

// ByGeneID keys records by gene_id.
func ByGeneID(r FeatureRecord) string { return r.GeneID }

// ByTranscriptID keys records by transcript_id.
func ByTranscriptID(r FeatureRecord) string { return r.TranscriptID }
