package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Infer types a raw grid: it cleans names, drops empty rows and columns,
// coerces messy numbers, and tags each column Numeric or Categorical.
// It is deterministic and never mutates g.
func Infer(g Grid) (*Table, error) {
	names, err := normalizeHeader(g.Header)
	if err != nil {
		return nil, err
	}
	ncol := len(names)

	// Trim cells and drop rows where every cell is missing.
	rows := make([][]string, 0, len(g.Rows))
	for _, rec := range g.Rows {
		clean := make([]string, ncol)
		empty := true
		for j := 0; j < ncol && j < len(rec); j++ {
			clean[j] = trimCell(rec[j])
			if clean[j] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, clean)
		}
	}

	cols := make([]Column, 0, ncol)
	for j, name := range names {
		raw := make([]string, len(rows))
		present := 0
		for i, rec := range rows {
			raw[i] = rec[j]
			if rec[j] != "" {
				present++
			}
		}
		// With zero rows left the column stays, as an empty categorical domain.
		if len(rows) > 0 && present == 0 {
			continue
		}
		cols = append(cols, classify(name, raw))
	}
	t := New(cols)
	t.nrows = len(rows)
	return t, nil
}

// classify coerces a column's cells and decides its role.
func classify(name string, raw []string) Column {
	nums := make([]Cell, len(raw))
	parsed, residue := 0, 0
	for i, v := range raw {
		if v == "" {
			nums[i] = Missing()
			continue
		}
		if x, ok := ParseNumber(v); ok {
			nums[i] = Number(x)
			parsed++
			continue
		}
		nums[i] = Missing()
		residue++
	}
	if parsed > 0 && residue == 0 {
		return Column{Name: name, Role: RoleNumeric, Values: nums}
	}
	texts := make([]Cell, len(raw))
	for i, v := range raw {
		if v == "" {
			texts[i] = Missing()
			continue
		}
		texts[i] = Text(v)
	}
	return Column{Name: name, Role: RoleCategorical, Values: texts}
}

// ParseNumber parses a cell as a float after stripping thousands separators
// (commas) and surrounding whitespace. Non-finite results are rejected.
func ParseNumber(s string) (float64, bool) {
	raw := strings.ReplaceAll(s, ",", "")
	raw = trimCell(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func trimCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
}

// normalizeHeader trims and NFC-normalizes names, names blank headers the
// way dataframe loaders do, and rejects duplicates.
func normalizeHeader(header []string) ([]string, error) {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		n := norm.NFC.String(trimCell(h))
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		if prev, dup := seen[n]; dup {
			return nil, &SchemaError{Reason: DuplicateColumn, Column: n, Positions: []int{prev, i}}
		}
		seen[n] = i
		names[i] = n
	}
	return names, nil
}
