// Package export serializes a transformed table into one of the supported
// artifact formats (csv, json, xlsx) or bundles serialized outputs into a
// zip archive.
//
// All writes are atomic from the caller's perspective: data is written to a
// temporary name inside the destination directory and renamed into place
// only after a fully successful serialization, so a partially written file
// is never observable under the artifact name.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datapull/fetchtozip/internal/table"
)

// Format identifies an artifact serialization format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatZip  Format = "zip"
)

// ErrUnsupportedFormat is returned for format names outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat normalizes a format name. The empty string defaults to csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return FormatCSV, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatZip:
		return FormatZip, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Ext returns the file extension for the format, without a dot.
func (f Format) Ext() string { return string(f) }

// Write serializes tbl into dir as <taskID>.<ext> and returns the artifact
// path. For FormatZip the archive bundles a single csv entry; use WriteZip
// to bundle other inner formats.
func Write(tbl table.Table, format Format, dir, taskID string) (string, error) {
	switch format {
	case FormatCSV, FormatJSON, FormatXLSX:
		return writeFile(tbl, format, dir, taskID)
	case FormatZip:
		return WriteZip(tbl, nil, dir, taskID)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// writeFile serializes one flat (non-zip) artifact atomically.
func writeFile(tbl table.Table, format Format, dir, taskID string) (string, error) {
	enc, err := encoderFor(format)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, taskID+"."+format.Ext())
	if err := atomicWrite(path, func(w io.Writer) error { return enc(tbl, w) }); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", format, err)
	}
	return path, nil
}

// atomicWrite writes via fn to path+".tmp" and renames into place on
// success. On any failure the temporary file is removed and path is left
// untouched.
func atomicWrite(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
