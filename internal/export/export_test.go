package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/datapull/fetchtozip/internal/table"
	"github.com/xuri/excelize/v2"
)

func sampleTable() table.Table {
	return table.Table{
		Columns: []string{"name", "score", "active"},
		Rows: [][]any{
			{"alice", float64(91.5), true},
			{"bob, jr.", float64(7), false},
			{"carol\nnewline", nil, true},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"JSON", FormatJSON, false},
		{" xlsx ", FormatXLSX, false},
		{"zip", FormatZip, false},
		{"", FormatCSV, false}, // default
		{"parquet", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ParseFormat(%q): got %v, want ErrUnsupportedFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tbl := sampleTable()

	path, err := Write(tbl, FormatCSV, dir, "task1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "task1.csv" {
		t.Errorf("artifact name = %s, want task1.csv", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if !reflect.DeepEqual(records[0], tbl.Columns) {
		t.Errorf("header = %v, want %v", records[0], tbl.Columns)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want header + 3 rows", len(records))
	}
	// Quoting of embedded delimiter and newline survives the round trip.
	if records[2][0] != "bob, jr." {
		t.Errorf("cell = %q, want embedded comma preserved", records[2][0])
	}
	if records[3][0] != "carol\nnewline" {
		t.Errorf("cell = %q, want embedded newline preserved", records[3][0])
	}
	if records[1][1] != "91.5" {
		t.Errorf("numeric cell = %q, want 91.5", records[1][1])
	}
}

func TestJSONKeyOrderAndTypes(t *testing.T) {
	dir := t.TempDir()
	tbl := sampleTable()

	path, err := Write(tbl, FormatJSON, dir, "task2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	// Key order within each object matches column order.
	text := string(data)
	first := text[strings.Index(text, "{") : strings.Index(text, "}")+1]
	iName := strings.Index(first, `"name"`)
	iScore := strings.Index(first, `"score"`)
	iActive := strings.Index(first, `"active"`)
	if iName < 0 || iScore < 0 || iActive < 0 || !(iName < iScore && iScore < iActive) {
		t.Errorf("key order not preserved in %s", first)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0]["score"] != 91.5 {
		t.Errorf("score = %v (%T), want numeric 91.5", rows[0]["score"], rows[0]["score"])
	}
	if rows[0]["active"] != true {
		t.Errorf("active = %v, want true", rows[0]["active"])
	}
	if v, present := rows[2]["score"]; !present || v != nil {
		t.Errorf("nil cell = %v (present=%v), want explicit null", v, present)
	}
}

func TestXLSXWorksheet(t *testing.T) {
	dir := t.TempDir()
	tbl := sampleTable()

	path, err := Write(tbl, FormatXLSX, dir, "task3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d sheet rows, want header + 3", len(rows))
	}
	if !reflect.DeepEqual(rows[0], tbl.Columns) {
		t.Errorf("header row = %v, want %v", rows[0], tbl.Columns)
	}
	if rows[1][0] != "alice" {
		t.Errorf("first data cell = %q, want alice", rows[1][0])
	}
}

func TestZipDefaultBundle(t *testing.T) {
	dir := t.TempDir()
	tbl := table.Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{"1", "2"}, {"3", "4"}},
	}

	path, err := Write(tbl, FormatZip, dir, "task4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 1 {
		t.Fatalf("got %d entries, want exactly 1", len(zr.File))
	}
	if zr.File[0].Name != "task4.csv" {
		t.Errorf("entry name = %q, want task4.csv", zr.File[0].Name)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("parse inner csv: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("inner csv has %d lines, want header + 2 data lines", len(records))
	}
}

func TestZipMultipleInnerFormats(t *testing.T) {
	dir := t.TempDir()
	tbl := sampleTable()

	path, err := WriteZip(tbl, []Format{FormatCSV, FormatJSON}, dir, "task5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"task5.csv", "task5.json"}) {
		t.Errorf("entries = %v, want [task5.csv task5.json]", names)
	}
}

func TestZipDeduplicatesInnerFormats(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteZip(sampleTable(), []Format{FormatCSV, FormatCSV, FormatJSON, FormatCSV}, dir, "task7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"task7.csv", "task7.json"}) {
		t.Errorf("entries = %v, want one entry per distinct format", names)
	}
}

func TestZipRejectsNestedZip(t *testing.T) {
	if _, err := WriteZip(sampleTable(), []Format{FormatZip}, t.TempDir(), "t"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestWriteLeavesNoPartialArtifact(t *testing.T) {
	dir := t.TempDir()

	// A missing destination directory fails the write; neither the artifact
	// nor a stray temp file may remain.
	missing := filepath.Join(dir, "nope")
	if _, err := Write(sampleTable(), FormatCSV, missing, "task6"); err == nil {
		t.Fatal("expected error writing into missing directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("found leftover files: %v", entries)
	}
}
