package table

import (
	"errors"
	"reflect"
	"testing"
)

func TestApplyRenameAndReorder(t *testing.T) {
	// Registry: [{name:"b", column:1, order:0}, {name:"a", column:0, order:1}]
	// Source: columns ["a","b"], one row ["x","y"].
	tbl := Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{"x", "y"}},
	}
	specs := []ColumnSpec{
		{Name: "b", SourceColumn: intPtr(1), Order: intPtr(0)},
		{Name: "a", SourceColumn: intPtr(0), Order: intPtr(1)},
	}

	out, err := Apply(tbl, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(out.Columns, []string{"b", "a"}) {
		t.Errorf("columns = %v, want [b a]", out.Columns)
	}
	if !reflect.DeepEqual(out.Rows, [][]any{{"y", "x"}}) {
		t.Errorf("rows = %v, want [[y x]]", out.Rows)
	}
}

func TestApplyDefaults(t *testing.T) {
	// Unset source column defaults to the spec's position, unset order to
	// its resolution order: the result is a pure in-place rename.
	tbl := Table{
		Columns: []string{"first", "second", "third"},
		Rows:    [][]any{{1, 2, 3}, {4, 5, 6}},
	}
	specs := []ColumnSpec{{Name: "one"}, {Name: "two"}, {Name: "three"}}

	out, err := Apply(tbl, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out.Columns, []string{"one", "two", "three"}) {
		t.Errorf("columns = %v", out.Columns)
	}
	if !reflect.DeepEqual(out.Rows, tbl.Rows) {
		t.Errorf("rows = %v, want unchanged %v", out.Rows, tbl.Rows)
	}
}

func TestApplyDropsUnspecifiedColumns(t *testing.T) {
	tbl := Table{
		Columns: []string{"keep", "drop", "also_drop"},
		Rows:    [][]any{{"k", "d", "a"}},
	}
	specs := []ColumnSpec{{Name: "kept", SourceColumn: intPtr(0)}}

	out, err := Apply(tbl, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out.Columns, []string{"kept"}) {
		t.Errorf("columns = %v, want [kept]", out.Columns)
	}
	if !reflect.DeepEqual(out.Rows, [][]any{{"k"}}) {
		t.Errorf("rows = %v, want [[k]]", out.Rows)
	}
}

func TestApplyEmptySpecs(t *testing.T) {
	tbl := Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{1, 2}, {3, 4}, {5, 6}},
	}

	out, err := Apply(tbl, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NumCols() != 0 {
		t.Errorf("got %d columns, want 0", out.NumCols())
	}
	if out.NumRows() != 3 {
		t.Errorf("got %d rows, want 3", out.NumRows())
	}
}

func TestApplyErrors(t *testing.T) {
	tbl := Table{Columns: []string{"a", "b"}, Rows: [][]any{{1, 2}}}

	tests := []struct {
		name  string
		specs []ColumnSpec
		kind  TransformErrorKind
	}{
		{
			name:  "source column out of range",
			specs: []ColumnSpec{{Name: "x", SourceColumn: intPtr(5)}},
			kind:  ColumnIndexOutOfRange,
		},
		{
			name:  "negative source column",
			specs: []ColumnSpec{{Name: "x", SourceColumn: intPtr(-1)}},
			kind:  ColumnIndexOutOfRange,
		},
		{
			name: "duplicate explicit order",
			specs: []ColumnSpec{
				{Name: "x", SourceColumn: intPtr(0), Order: intPtr(0)},
				{Name: "y", SourceColumn: intPtr(1), Order: intPtr(0)},
			},
			kind: DuplicateTargetOrder,
		},
		{
			name: "explicit order collides with default",
			specs: []ColumnSpec{
				{Name: "x", SourceColumn: intPtr(0)},
				{Name: "y", SourceColumn: intPtr(1), Order: intPtr(0)},
			},
			kind: DuplicateTargetOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tbl, tt.specs)
			var terr *TransformError
			if !errors.As(err, &terr) {
				t.Fatalf("got %v, want TransformError", err)
			}
			if terr.Kind != tt.kind {
				t.Errorf("kind = %d, want %d", terr.Kind, tt.kind)
			}
		})
	}
}

func TestApplyDeterministic(t *testing.T) {
	tbl := Table{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]any{{1, "x", true}, {2, "y", false}},
	}
	specs := []ColumnSpec{
		{Name: "c2", SourceColumn: intPtr(2), Order: intPtr(1)},
		{Name: "a2", SourceColumn: intPtr(0), Order: intPtr(0)},
		{Name: "b2", SourceColumn: intPtr(1), Order: intPtr(2)},
	}

	first, err := Apply(tbl, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Apply(tbl, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated apply differs: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(first.Columns, []string{"a2", "c2", "b2"}) {
		t.Errorf("columns = %v, want [a2 c2 b2]", first.Columns)
	}
}

func TestApplyWithFilter(t *testing.T) {
	tbl := Table{
		Columns: []string{"n", "label"},
		Rows:    [][]any{{1, "one"}, {2, "two"}, {3, "three"}},
	}
	specs := []ColumnSpec{{Name: "label", SourceColumn: intPtr(1)}}

	out, err := ApplyWithFilter(tbl, specs, func(row []any) bool {
		return row[0].(int)%2 == 1
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out.Rows, [][]any{{"one"}, {"three"}}) {
		t.Errorf("rows = %v, want odd labels only", out.Rows)
	}
}
