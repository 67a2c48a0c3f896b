package table

import (
	"fmt"
	"sort"
)

// TransformErrorKind classifies projection failures.
type TransformErrorKind int

const (
	// ColumnIndexOutOfRange means a spec's resolved source column does not
	// exist in the input table.
	ColumnIndexOutOfRange TransformErrorKind = iota

	// DuplicateTargetOrder means two specs resolved to the same output position.
	DuplicateTargetOrder
)

// TransformError reports a malformed projection. The spec set is rejected as
// a whole; no partial output is produced.
type TransformError struct {
	Kind TransformErrorKind
	Spec ColumnSpec // the spec that triggered the failure
	Msg  string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform spec %q: %s", e.Spec.Name, e.Msg)
}

// RowPredicate decides whether a source row is kept before projection.
// Returning false drops the row.
type RowPredicate func(row []any) bool

// Apply projects tbl through specs: each spec selects one source column,
// renames it, and places it at its resolved target position. Source columns
// not named by any spec are dropped. Row values and row order pass through
// unchanged.
//
// Resolution rules: a nil SourceColumn defaults to the spec's position in
// the list; a nil Order defaults to the spec's resolution order. Resolved
// orders must be unique. Specs are sorted by resolved order ascending,
// stable on ties by registration order.
//
// Apply is a pure function: re-running with the same inputs yields an
// identical output.
func Apply(tbl Table, specs []ColumnSpec) (Table, error) {
	return ApplyWithFilter(tbl, specs, nil)
}

// ApplyWithFilter is Apply with an optional row filter applied before
// projection. A nil predicate keeps every row.
func ApplyWithFilter(tbl Table, specs []ColumnSpec, keep RowPredicate) (Table, error) {
	rows := tbl.Rows
	if keep != nil {
		kept := make([][]any, 0, len(rows))
		for _, row := range rows {
			if keep(row) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	// An empty spec set projects away every column but preserves row count.
	if len(specs) == 0 {
		out := Table{Columns: []string{}, Rows: make([][]any, len(rows))}
		for i := range out.Rows {
			out.Rows[i] = []any{}
		}
		return out, nil
	}

	type resolved struct {
		name  string
		src   int
		order int
	}

	res := make([]resolved, len(specs))
	seen := make(map[int]string, len(specs))
	for i, spec := range specs {
		src := i
		if spec.SourceColumn != nil {
			src = *spec.SourceColumn
		}
		if src < 0 || src >= tbl.NumCols() {
			return Table{}, &TransformError{
				Kind: ColumnIndexOutOfRange,
				Spec: spec,
				Msg:  fmt.Sprintf("source column %d out of range (table has %d columns)", src, tbl.NumCols()),
			}
		}

		order := i
		if spec.Order != nil {
			order = *spec.Order
		}
		if prev, dup := seen[order]; dup {
			return Table{}, &TransformError{
				Kind: DuplicateTargetOrder,
				Spec: spec,
				Msg:  fmt.Sprintf("target order %d already claimed by spec %q", order, prev),
			}
		}
		seen[order] = spec.Name

		res[i] = resolved{name: spec.Name, src: src, order: order}
	}

	sort.SliceStable(res, func(a, b int) bool { return res[a].order < res[b].order })

	out := Table{
		Columns: make([]string, len(res)),
		Rows:    make([][]any, len(rows)),
	}
	for i, r := range res {
		out.Columns[i] = r.name
	}
	for i, row := range rows {
		projected := make([]any, len(res))
		for j, r := range res {
			projected[j] = row[r.src]
		}
		out.Rows[i] = projected
	}
	return out, nil
}
