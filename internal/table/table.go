// Package table defines the in-memory tabular data model shared by the
// fetch, transform, and export stages, along with the column spec registry
// and the projection engine that applies specs to a fetched table.
//
// Everything in this package is pure data manipulation: no I/O, no clocks,
// no goroutines. The same inputs always produce the same output.
package table

// Table is a uniform, row-major tabular dataset. Columns holds the ordered
// column names; every row in Rows has exactly len(Columns) cells. Cell
// values are the decoded source values: string, float64, int64, bool, nil,
// or whatever the source driver produced.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumCols returns the number of columns.
func (t Table) NumCols() int { return len(t.Columns) }

// NumRows returns the number of rows.
func (t Table) NumRows() int { return len(t.Rows) }
