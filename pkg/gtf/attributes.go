// Package gtf decodes GENCODE annotation (GTF) rows into typed feature
// records.
//
// The ninth GTF column packs key/value pairs into one string, e.g.
//
//	gene_id "ENSG00000223972.5"; transcript_id "ENST00000456328.2"; tag "basic"; tag "CCDS";
//
// Pairs are separated by the pair delimiter (";"), a key and its value by
// the field delimiter (" "). Pairs have no fixed position and a key may
// repeat within a row.
package gtf

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/athapong/gencode-kg/pkg/table"
)

const (
	DefaultPairDelimiter  = ";"
	DefaultFieldDelimiter = " "

	// trimCutset is stripped from both ends of every slot, key and value.
	trimCutset = " \t\""
)

// AttributeRow is one decoded attribute string: the requested keys mapped
// to their consolidated values. Absent keys map to "".
type AttributeRow struct {
	Ordinal int
	Values  map[string]string
}

// AttributeTable is the columnar result of decoding: one column per
// requested key, indexed by row ordinal.
type AttributeTable struct {
	Keys    []string
	Columns [][]string
	// Malformed lists the ordinals of rows with at least one slot that did
	// not split into a key and a value.
	Malformed []int
}

// Len returns the number of decoded rows.
func (t *AttributeTable) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// Column returns the consolidated values for key, or nil for a key that
// was not requested.
func (t *AttributeTable) Column(key string) []string {
	for i, k := range t.Keys {
		if k == key {
			return t.Columns[i]
		}
	}
	return nil
}

// Row materialises one row.
func (t *AttributeTable) Row(ordinal int) AttributeRow {
	values := make(map[string]string, len(t.Keys))
	for i, k := range t.Keys {
		values[k] = t.Columns[i][ordinal]
	}
	return AttributeRow{Ordinal: ordinal, Values: values}
}

// Decoder splits attribute strings into per-key columns.
type Decoder struct {
	PairDelimiter  string
	FieldDelimiter string
	Keys           []string
	// Workers bounds the number of goroutines decoding row shards.
	Workers int
}

// NewDecoder returns a decoder with the GTF delimiters.
func NewDecoder(keys []string, workers int) *Decoder {
	return &Decoder{
		PairDelimiter:  DefaultPairDelimiter,
		FieldDelimiter: DefaultFieldDelimiter,
		Keys:           keys,
		Workers:        workers,
	}
}

// posting is one occurrence of a key: the row it appeared in and its value.
type posting struct {
	row   int
	value string
}

// shardIndex holds the postings of a contiguous range of rows, one list
// per requested key, each in row order.
type shardIndex struct {
	postings  [][]posting
	malformed []int
}

// Decode indexes every slot of every row once, then consolidates the
// postings of each key into a column. Rows are sharded into contiguous
// ordinal ranges; merging shards in range order reproduces the sequential
// result exactly.
func (d *Decoder) Decode(ctx context.Context, attrs []string) (*AttributeTable, error) {
	if d.PairDelimiter == "" || d.FieldDelimiter == "" {
		return nil, errors.New("decoder delimiters must not be empty")
	}
	if d.PairDelimiter == d.FieldDelimiter {
		return nil, errors.Errorf("pair and field delimiter are both %q", d.PairDelimiter)
	}

	keys := uniqueKeys(d.Keys)
	position := make(map[string]int, len(keys))
	for i, k := range keys {
		position[k] = i
	}

	ranges := ShardRanges(len(attrs), d.Workers)
	shards := make([]shardIndex, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.Workers, 1))
	for i, rg := range ranges {
		i, rg := i, rg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shards[i] = d.index(attrs, rg[0], rg[1], position)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "decode attributes")
	}

	out := &AttributeTable{
		Keys:    keys,
		Columns: make([][]string, len(keys)),
	}
	for k := range keys {
		out.Columns[k] = make([]string, len(attrs))
	}
	for _, sh := range shards {
		for k, list := range sh.postings {
			col := out.Columns[k]
			for _, p := range list {
				if col[p.row] == "" {
					col[p.row] = p.value
				} else {
					col[p.row] += "," + p.value
				}
			}
		}
		out.Malformed = append(out.Malformed, sh.malformed...)
	}
	return out, nil
}

// index scans rows [lo, hi) and records a posting for every slot whose key
// was requested.
func (d *Decoder) index(attrs []string, lo, hi int, position map[string]int) shardIndex {
	sh := shardIndex{postings: make([][]posting, len(position))}
	for row := lo; row < hi; row++ {
		bad := false
		for _, slot := range strings.Split(attrs[row], d.PairDelimiter) {
			slot = strings.Trim(slot, trimCutset)
			if slot == "" {
				continue
			}
			key, value, ok := strings.Cut(slot, d.FieldDelimiter)
			key = strings.Trim(key, trimCutset)
			if !ok || key == "" {
				bad = true
				continue
			}
			k, wanted := position[key]
			if !wanted {
				continue
			}
			value = table.Normalize(strings.Trim(value, trimCutset))
			if value == "" {
				continue
			}
			sh.postings[k] = append(sh.postings[k], posting{row: row, value: value})
		}
		if bad {
			sh.malformed = append(sh.malformed, row)
		}
	}
	return sh
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// ShardRanges cuts [0, n) into at most workers contiguous ranges.
func ShardRanges(n, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if n == 0 {
		return nil
	}
	size := (n + workers - 1) / workers
	ranges := make([][2]int, 0, workers)
	for lo := 0; lo < n; lo += size {
		ranges = append(ranges, [2]int{lo, min(lo+size, n)})
	}
	return ranges
}
