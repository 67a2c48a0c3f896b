package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/datapull/fetchtozip/internal/table"
	"github.com/xuri/excelize/v2"
)

// encoder serializes a table to a stream in one concrete format.
type encoder func(table.Table, io.Writer) error

func encoderFor(format Format) (encoder, error) {
	switch format {
	case FormatCSV:
		return encodeCSV, nil
	case FormatJSON:
		return encodeJSON, nil
	case FormatXLSX:
		return encodeXLSX, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// encodeCSV writes UTF-8 comma-delimited output: a header row of column
// names followed by one record per row. encoding/csv handles quoting of
// values containing delimiters or newlines.
func encodeCSV(tbl table.Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Columns); err != nil {
		return err
	}
	record := make([]string, tbl.NumCols())
	for _, row := range tbl.Rows {
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeJSON writes an array of objects, one per row. Key order within each
// object matches the table's column order, which json.Marshal on a map
// cannot guarantee, so objects are assembled by hand from marshalled parts.
func encodeJSON(tbl table.Table, w io.Writer) error {
	write := func(b []byte) error {
		_, err := w.Write(b)
		return err
	}

	if err := write([]byte("[")); err != nil {
		return err
	}
	keys := make([][]byte, tbl.NumCols())
	for i, col := range tbl.Columns {
		k, err := json.Marshal(col)
		if err != nil {
			return err
		}
		keys[i] = k
	}
	for i, row := range tbl.Rows {
		if i > 0 {
			if err := write([]byte(",")); err != nil {
				return err
			}
		}
		if err := write([]byte("{")); err != nil {
			return err
		}
		for j, cell := range row {
			if j > 0 {
				if err := write([]byte(",")); err != nil {
					return err
				}
			}
			v, err := json.Marshal(cell)
			if err != nil {
				return err
			}
			if err := write(keys[j]); err != nil {
				return err
			}
			if err := write([]byte(":")); err != nil {
				return err
			}
			if err := write(v); err != nil {
				return err
			}
		}
		if err := write([]byte("}")); err != nil {
			return err
		}
	}
	if err := write([]byte("]\n")); err != nil {
		return err
	}
	return nil
}

// encodeXLSX writes a single-worksheet workbook: header row plus data rows,
// column order preserved.
func encodeXLSX(tbl table.Table, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	header := make([]any, tbl.NumCols())
	for i, col := range tbl.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range tbl.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// cellString renders a cell for textual formats. nil becomes the empty
// string; floats use the shortest round-trippable representation.
func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case int:
		return strconv.Itoa(c)
	case int32:
		return strconv.FormatInt(int64(c), 10)
	case int64:
		return strconv.FormatInt(c, 10)
	case bool:
		return strconv.FormatBool(c)
	case time.Time:
		return c.Format(time.RFC3339)
	case []byte:
		return string(c)
	default:
		return fmt.Sprint(c)
	}
}
