// Package ingest decodes uploaded tabular bytes into a raw cell grid.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// Format is a declared upload format.
type Format string

const (
	FormatAuto    Format = ""
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ErrUnsupportedFormat indicates a format that cannot be decoded.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Options controls decoding.
type Options struct {
	// Format overrides extension-based detection.
	Format Format
	// Delimiter for delimited text. If 0, sniffed from the header line.
	Delimiter rune
	// SheetName selects an XLSX sheet by name (case-insensitive).
	SheetName string
	// SheetIndex is the 1-based XLSX sheet index used when SheetName is empty.
	SheetIndex int
}

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "csv", "txt":
		return FormatCSV, nil
	case "tsv", "tab":
		return FormatTSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "parquet", "pq":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// Detect picks a format from the file name extension.
func Detect(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q (use .csv, .tsv, .xlsx or .parquet)", ErrUnsupportedFormat, filepath.Base(name))
	}
}

// Read decodes data according to the declared or detected format.
func Read(name string, data []byte, opt Options) (table.Grid, error) {
	f := opt.Format
	if f == FormatAuto {
		d, err := Detect(name)
		if err != nil {
			return table.Grid{}, err
		}
		f = d
	}
	switch f {
	case FormatCSV:
		return ReadDelimited(data, opt.Delimiter)
	case FormatTSV:
		delim := opt.Delimiter
		if delim == 0 {
			delim = '\t'
		}
		return ReadDelimited(data, delim)
	case FormatXLSX:
		return ReadXLSX(data, opt.SheetName, opt.SheetIndex)
	case FormatParquet:
		return ReadParquet(data)
	default:
		return table.Grid{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}
