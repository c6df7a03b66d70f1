package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// candidate delimiters, in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

// ReadDelimited decodes delimited text. A zero delim is sniffed from the header line.
func ReadDelimited(data []byte, delim rune) (table.Grid, error) {
	text, err := decodeText(data)
	if err != nil {
		return table.Grid{}, fmt.Errorf("decode csv: %w", err)
	}
	if delim == 0 {
		delim = sniffDelimiter(text)
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.Grid{}, nil
		}
		return table.Grid{}, fmt.Errorf("read csv header: %w", err)
	}
	g := table.Grid{Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.Grid{}, fmt.Errorf("read csv: %w", err)
		}
		g.Rows = append(g.Rows, rec)
	}
	return g, nil
}

// decodeText returns UTF-8 bytes. A UTF-8 or UTF-16 BOM selects the encoding;
// otherwise invalid UTF-8 is treated as Windows-1252.
func decodeText(data []byte) ([]byte, error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return out, err
	}
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	return out, err
}

func hasBOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(b, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(b, []byte{0xFE, 0xFF})
}

// sniffDelimiter counts candidates outside quotes on the first non-empty line.
func sniffDelimiter(text []byte) rune {
	line := firstLine(text)
	counts := make(map[rune]int, len(delimiters))
	inQuote := false
	for _, c := range string(line) {
		if c == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			counts[c]++
		}
	}
	best, bestN := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}

func firstLine(text []byte) []byte {
	for len(text) > 0 {
		i := bytes.IndexByte(text, '\n')
		var line []byte
		if i < 0 {
			line, text = text, nil
		} else {
			line, text = text[:i], text[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line
		}
	}
	return nil
}
