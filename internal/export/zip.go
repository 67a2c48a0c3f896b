package export

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"

	"github.com/datapull/fetchtozip/internal/table"
)

// WriteZip bundles one serialized copy of tbl per inner format into
// <taskID>.zip inside dir and returns the archive path. Entry names are
// deterministic: <taskID>.<ext>, so repeated inner formats collapse to one
// entry. A nil or empty inner list defaults to a single csv entry.
// FormatZip itself is not a valid inner format.
func WriteZip(tbl table.Table, inner []Format, dir, taskID string) (string, error) {
	if len(inner) == 0 {
		inner = []Format{FormatCSV}
	}

	seen := make(map[Format]bool, len(inner))
	formats := make([]Format, 0, len(inner))
	encoders := make([]encoder, 0, len(inner))
	for _, format := range inner {
		if format == FormatZip {
			return "", fmt.Errorf("%w: zip archives cannot nest", ErrUnsupportedFormat)
		}
		if seen[format] {
			continue
		}
		seen[format] = true
		enc, err := encoderFor(format)
		if err != nil {
			return "", err
		}
		formats = append(formats, format)
		encoders = append(encoders, enc)
	}

	path := filepath.Join(dir, taskID+".zip")
	err := atomicWrite(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for i, format := range formats {
			entry, err := zw.Create(taskID + "." + format.Ext())
			if err != nil {
				return err
			}
			if err := encoders[i](tbl, entry); err != nil {
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		return "", fmt.Errorf("write zip artifact: %w", err)
	}
	return path, nil
}
