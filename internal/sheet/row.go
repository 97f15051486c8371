// Package sheet reads single-sheet spreadsheets (xlsx or CSV) into rows of
// named text cells, and writes blank import templates.
//
// Row 1 of the sheet is the header row. Header names are matched
// case-insensitively. Data rows keep their 1-based sheet row number so errors
// can point the user at the exact line to correct.
package sheet

import (
	"sort"
	"strings"
)

// Row is one data row of a sheet: its 1-based row number and the non-blank
// cells keyed by header. A Row is immutable once read.
type Row struct {
	Number int
	fields map[string]string
}

// NewRow builds a Row from header -> cell text. Cells are cleaned; blank
// cells and blank headers are dropped.
func NewRow(number int, cells map[string]string) Row {
	fields := make(map[string]string, len(cells))
	for header, value := range cells {
		key := headerKey(header)
		value = CleanCell(value)
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
	}
	return Row{Number: number, fields: fields}
}

// Get returns the cell for column, or "" when the row has no value for it.
func (r Row) Get(column string) string {
	return r.fields[headerKey(column)]
}

// Has reports whether the row carries a non-blank value for column.
func (r Row) Has(column string) bool {
	_, ok := r.fields[headerKey(column)]
	return ok
}

// HasAny reports whether the row carries a value for at least one column.
func (r Row) HasAny(columns ...string) bool {
	for _, c := range columns {
		if r.Has(c) {
			return true
		}
	}
	return false
}

// Len returns the number of non-blank cells.
func (r Row) Len() int {
	return len(r.fields)
}

// Columns returns the lowercased headers that carry values, sorted.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r.fields))
	for k := range r.fields {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func headerKey(h string) string {
	return strings.ToLower(CleanCell(h))
}
