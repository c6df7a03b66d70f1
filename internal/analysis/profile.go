package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// Profile is a markdown-friendly summary of a typed table.
type Profile struct {
	Name string
	Rows int
	Cols []ColumnSummary
	Corr []PairCorr
}

// ColumnSummary captures role and statistics per column.
type ColumnSummary struct {
	Name    string
	Role    table.Role
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Categorical top values
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

const (
	maxTopValues = 8
	maxCorrPairs = 10
)

// Summarize computes per-column statistics and the strongest correlations.
func Summarize(name string, t *table.Table) *Profile {
	p := &Profile{Name: name, Rows: t.NumRows()}
	for _, c := range t.Columns() {
		s := ColumnSummary{Name: c.Name, Role: c.Role}
		if c.Role == table.RoleNumeric {
			summarizeNumeric(&s, c.Values)
		} else {
			summarizeCategorical(&s, c.Values)
		}
		p.Cols = append(p.Cols, s)
	}
	p.Corr = topPairs(t)
	return p
}

// summarizeNumeric uses Welford's online mean/variance.
func summarizeNumeric(s *ColumnSummary, vals []table.Cell) {
	var n int
	var mean, m2 float64
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if !v.IsNumber() {
			s.Missing++
			continue
		}
		x := v.Num
		n++
		if x < s.Min {
			s.Min = x
		}
		if x > s.Max {
			s.Max = x
		}
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	s.NonNull = n
	s.Mean = mean
	if n > 1 {
		s.Std = math.Sqrt(m2 / float64(n-1))
	}
	if n == 0 {
		s.Min, s.Max = 0, 0
	}
}

func summarizeCategorical(s *ColumnSummary, vals []table.Cell) {
	cats := map[string]int{}
	for _, v := range vals {
		if v.IsMissing() {
			s.Missing++
			continue
		}
		s.NonNull++
		cats[v.Text]++
	}
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > maxTopValues {
		tops = tops[:maxTopValues]
	}
	s.TopValues = tops
	s.Unique = len(cats)
}

// topPairs ranks numeric column pairs by |r| using the heatmap correlation figure.
func topPairs(t *table.Table) []PairCorr {
	plan, err := chart.Resolve(t, chart.Request{Kind: chart.KindHeatmap})
	if err != nil {
		return nil
	}
	fig, err := chart.Build(t, plan)
	if err != nil || fig.Matrix == nil {
		return nil
	}
	m := fig.Matrix
	var pairs []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			if r := m.Values[i][j]; r != nil {
				pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: *r})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if len(pairs) > maxCorrPairs {
		pairs = pairs[:maxCorrPairs]
	}
	return pairs
}

// Markdown renders a compact summary suitable for prompts or standalone docs.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Role, c.NonNull, missPct))
		switch c.Role {
		case table.RoleNumeric:
			if c.NonNull > 0 {
				b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			}
		case table.RoleCategorical:
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(p.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, pc := range p.Corr {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", pc.A, pc.B, pc.R))
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
