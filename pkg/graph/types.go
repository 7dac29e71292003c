package graph

import (
	"strings"
)

// OBOPrefix is the IRI prefix of Relation Ontology predicates.
const OBOPrefix = "http://purl.obolibrary.org/obo/"

// Edge predicates. Relation Ontology predicates are full IRIs; the rest are
// plain tokens with no ontology counterpart.
const (
	PredTranscribedFrom      = OBOPrefix + "RO_0002510"
	PredHasGeneProduct       = OBOPrefix + "RO_0002205"
	PredLocatedIn            = OBOPrefix + "RO_0001025"
	PredHasDirectionalFormOf = OBOPrefix + "RO_0004048"
	PredIsFeatureType        = "is_feature_type"
	PredIsGeneBiotype        = "is_gene_biotype"
	PredIsTranscriptBiotype  = "is_transcript_biotype"
	PredSubClassOf           = "subClassOf"
	PredHasRefSeqID          = "has_refSeq_ID"
)

// CURIE prefixes of identifiers minted by the converter.
const (
	PrefixEnsembl   = "ENSEMBL"
	PrefixEntrez    = "ENTREZ"
	PrefixRefSeq    = "REFSEQ"
	PrefixUniProtKB = "UNIPROTKB"
)

// Node kinds.
const (
	KindGene          = "gene"
	KindTranscript    = "transcript"
	KindEntrezGene    = "entrez_gene"
	KindRefSeqRNA     = "refseq_rna"
	KindRefSeqProtein = "refseq_protein"
)

// Edge is one subject-predicate-object assertion.
type Edge struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Range is a closed genomic interval with Lower <= Upper.
type Range struct {
	Lower int64 `json:"lowerbound"`
	Upper int64 `json:"upperbound"`
}

// NewRange orders the bounds. swapped reports whether they arrived
// reversed.
func NewRange(a, b int64) (r Range, swapped bool) {
	if a > b {
		return Range{Lower: b, Upper: a}, true
	}
	return Range{Lower: a, Upper: b}, false
}

// Node is one row of the node table.
type Node struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind,omitempty"`
	Namespace  string   `json:"namespace"`
	Label      string   `json:"label"`
	Definition string   `json:"definition,omitempty"`
	Synonyms   []string `json:"synonyms,omitempty"`
	DBXrefs    []string `json:"dbxrefs,omitempty"`
	Value      string   `json:"value,omitempty"`
	Bounds     *Range   `json:"bounds,omitempty"`
	Unit       string   `json:"unit,omitempty"`
}

// Relation describes one predicate for the relations file.
type Relation struct {
	ID         string `json:"id"`
	Namespace  string `json:"namespace"`
	Label      string `json:"label"`
	Definition string `json:"definition,omitempty"`
}

// Relations lists every predicate the emitter can produce.
func Relations(namespace string) []Relation {
	rel := func(id, label string) Relation {
		return Relation{ID: id, Namespace: namespace, Label: label}
	}
	return []Relation{
		rel(PredTranscribedFrom, "transcribed from"),
		rel(PredHasGeneProduct, "has gene product"),
		rel(PredLocatedIn, "located in"),
		rel(PredIsFeatureType, PredIsFeatureType),
		rel(PredIsGeneBiotype, PredIsGeneBiotype),
		rel(PredIsTranscriptBiotype, PredIsTranscriptBiotype),
		rel(PredHasDirectionalFormOf, "has_directional_form_of"),
		rel(PredSubClassOf, PredSubClassOf),
		rel(PredHasRefSeqID, PredHasRefSeqID),
	}
}

// CURIE joins a prefix and a local code.
func CURIE(prefix, code string) string {
	return prefix + ":" + code
}

// Canonical strips the version suffix from a versioned identifier and
// returns the prefixed ID together with the version:
//
//	Canonical("ENSEMBL", "ENSG00000223972.5") == ("ENSEMBL:ENSG00000223972", "5")
//
// An identifier without a version yields an empty version.
func Canonical(prefix, id string) (curie, version string) {
	id = strings.TrimSpace(id)
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return CURIE(prefix, id[:i]), id[i+1:]
	}
	return CURIE(prefix, id), ""
}
