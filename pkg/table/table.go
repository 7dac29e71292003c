// Package table holds the in-memory tab-separated tables that flow between
// the converter stages. A Table is never mutated by a stage: filters,
// projections and joins all return new tables.
package table

import (
	"github.com/pkg/errors"
)

// ErrUnknownColumn is returned when a stage asks for a column the table
// does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Table is a header plus rows of string cells. Every row has exactly
// len(Header) cells; the empty string is the only missing-value marker.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// New builds a table, padding short rows with missing values and cutting
// long ones to the header width.
func New(header []string, rows [][]string) *Table {
	t := &Table{
		Header: append([]string(nil), header...),
		Rows:   make([][]string, len(rows)),
	}
	for i, row := range rows {
		t.Rows[i] = fit(row, len(header))
	}
	t.buildIndex()
	return t
}

func fit(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		// first column wins on duplicate names
		if _, exists := t.index[name]; !exists {
			t.index[name] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(col string) int {
	if t.index == nil {
		t.buildIndex()
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Has reports whether the table has the column.
func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// Value returns a cell, or the missing value when the column is absent.
func (t *Table) Value(row int, col string) string {
	i := t.Index(col)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Column copies one column out of the table.
func (t *Table) Column(col string) ([]string, error) {
	i := t.Index(col)
	if i < 0 {
		return nil, errors.Wrapf(ErrUnknownColumn, "column %q", col)
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Filter keeps the rows for which keep returns true, in order.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return New(t.Header, rows)
}

// Project returns a table with only the named columns, in the given order.
func (t *Table) Project(cols []string) (*Table, error) {
	idx := make([]int, len(cols))
	for i, col := range cols {
		idx[i] = t.Index(col)
		if idx[i] < 0 {
			return nil, errors.Wrapf(ErrUnknownColumn, "project %q", col)
		}
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return New(cols, rows), nil
}

// Drop removes columns; unknown names are ignored.
func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	keep := make([]string, 0, len(t.Header))
	for _, h := range t.Header {
		if !drop[h] {
			keep = append(keep, h)
		}
	}
	out, _ := t.Project(keep)
	return out
}

// AppendColumns adds whole columns to the right of the table. Each column
// must have one value per row.
func (t *Table) AppendColumns(names []string, cols [][]string) (*Table, error) {
	if len(names) != len(cols) {
		return nil, errors.Errorf("append columns: %d names for %d columns", len(names), len(cols))
	}
	for i, col := range cols {
		if len(col) != len(t.Rows) {
			return nil, errors.Errorf("append column %q: %d values for %d rows", names[i], len(col), len(t.Rows))
		}
	}
	header := append(append([]string(nil), t.Header...), names...)
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, 0, len(header))
		out = append(out, row...)
		for _, col := range cols {
			out = append(out, col[r])
		}
		rows[r] = out
	}
	return New(header, rows), nil
}

// LeftJoin joins right onto t by the key column. A left row matching k
// right rows yields k rows in right-table order; an unmatched row yields
// one row with missing values in the new columns. Empty keys never match.
// Right columns whose names already exist on the left are dropped.
func (t *Table) LeftJoin(right *Table, key string) (*Table, error) {
	lk := t.Index(key)
	if lk < 0 {
		return nil, errors.Wrapf(ErrUnknownColumn, "left join key %q", key)
	}
	rk := right.Index(key)
	if rk < 0 {
		return nil, errors.Wrapf(ErrUnknownColumn, "right join key %q", key)
	}

	var addIdx []int
	header := append([]string(nil), t.Header...)
	for i, name := range right.Header {
		if i == rk || t.Has(name) {
			continue
		}
		addIdx = append(addIdx, i)
		header = append(header, name)
	}

	matches := make(map[string][]int, right.Len())
	for r, row := range right.Rows {
		k := row[rk]
		if k == "" {
			continue
		}
		matches[k] = append(matches[k], r)
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		hits := matches[row[lk]]
		if row[lk] == "" || len(hits) == 0 {
			out := make([]string, len(header))
			copy(out, row)
			rows = append(rows, out)
			continue
		}
		for _, h := range hits {
			out := make([]string, 0, len(header))
			out = append(out, row...)
			for _, i := range addIdx {
				out = append(out, right.Rows[h][i])
			}
			rows = append(rows, out)
		}
	}
	return New(header, rows), nil
}
