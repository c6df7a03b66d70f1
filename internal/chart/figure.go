package chart

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// Series is one referenced column in row order. Values are float64, string or nil.
type Series struct {
	Name   string `json:"name"`
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

// Matrix is a labelled 2-D grid. Undefined cells are nil.
type Matrix struct {
	Rows    []string     `json:"rows"`
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// Slice is one pie segment.
type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Figure is everything an external renderer needs to draw a plan.
type Figure struct {
	Plan   *Plan    `json:"plan"`
	Rows   int      `json:"rows"`
	Series []Series `json:"series,omitempty"`
	Matrix *Matrix  `json:"matrix,omitempty"`
	Slices []Slice  `json:"slices,omitempty"`
}

// Build materializes the data for a resolved plan.
func Build(t *table.Table, plan *Plan) (*Figure, error) {
	if plan == nil {
		return nil, fmt.Errorf("build figure: nil plan")
	}
	fig := &Figure{Plan: plan, Rows: t.NumRows()}
	switch {
	case plan.Kind == KindHeatmap && plan.HeatmapMode == HeatmapCorrelation:
		m, err := correlation(t, plan.Dimensions)
		if err != nil {
			return nil, err
		}
		fig.Matrix = m
	case plan.Kind == KindHeatmap:
		m, err := pivotSum(t, plan.RowAxis, plan.ColumnAxis, plan.Values)
		if err != nil {
			return nil, err
		}
		fig.Matrix = m
	case plan.Kind == KindPie:
		s, err := pieSlices(t, plan.Names, plan.Values)
		if err != nil {
			return nil, err
		}
		fig.Slices = s
	default:
		s, err := series(t, plan)
		if err != nil {
			return nil, err
		}
		fig.Series = s
	}
	return fig, nil
}

func column(t *table.Table, name string) (table.Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return table.Column{}, fmt.Errorf("build figure: column %q not in table", name)
	}
	return c, nil
}

func series(t *table.Table, plan *Plan) ([]Series, error) {
	type ref struct{ field, name string }
	var refs []ref
	add := func(field string, names ...string) {
		for _, n := range names {
			if n != "" {
				refs = append(refs, ref{field, n})
			}
		}
	}
	add(fieldX, plan.X)
	add(fieldY, plan.Y...)
	add(fieldPath, plan.Path...)
	add(fieldDimensions, plan.Dimensions...)
	add(fieldSize, plan.Size)
	add(fieldValues, plan.Values)
	add(fieldColor, plan.Color)

	out := make([]Series, 0, len(refs))
	for _, r := range refs {
		c, err := column(t, r.name)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(c.Values))
		for i, cell := range c.Values {
			vals[i] = cell.Value()
		}
		out = append(out, Series{Name: r.name, Field: r.field, Values: vals})
	}
	return out, nil
}

// pairAcc accumulates sums for an exact pairwise-complete Pearson r.
type pairAcc struct {
	n, sumX, sumY, sumXX, sumYY, sumXY float64
}

func (p *pairAcc) add(x, y float64) {
	p.n++
	p.sumX += x
	p.sumY += y
	p.sumXX += x * x
	p.sumYY += y * y
	p.sumXY += x * y
}

// r returns the coefficient, or false when it is undefined.
func (p *pairAcc) r() (float64, bool) {
	if p.n < 2 {
		return 0, false
	}
	denom := math.Sqrt((p.n*p.sumXX - p.sumX*p.sumX) * (p.n*p.sumYY - p.sumY*p.sumY))
	if denom == 0 || math.IsNaN(denom) {
		return 0, false
	}
	r := (p.n*p.sumXY - p.sumX*p.sumY) / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

func correlation(t *table.Table, names []string) (*Matrix, error) {
	cols := make([]table.Column, len(names))
	for i, n := range names {
		c, err := column(t, n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	k := len(cols)
	m := &Matrix{Rows: names, Columns: names, Values: make([][]*float64, k)}
	for i := range m.Values {
		m.Values[i] = make([]*float64, k)
	}
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			var acc pairAcc
			for i := 0; i < t.NumRows(); i++ {
				x, y := cols[a].Values[i], cols[b].Values[i]
				if x.IsNumber() && y.IsNumber() {
					acc.add(x.Num, y.Num)
				}
			}
			if r, ok := acc.r(); ok {
				ra, rb := r, r
				m.Values[a][b] = &ra
				m.Values[b][a] = &rb
			}
		}
	}
	return m, nil
}

// pivotSum sums values per (row, column) category pair. Rows with a missing
// axis value are skipped; labels keep first-seen order.
func pivotSum(t *table.Table, rowAxis, colAxis, values string) (*Matrix, error) {
	rc, err := column(t, rowAxis)
	if err != nil {
		return nil, err
	}
	cc, err := column(t, colAxis)
	if err != nil {
		return nil, err
	}
	vc, err := column(t, values)
	if err != nil {
		return nil, err
	}
	rowIdx, colIdx := map[string]int{}, map[string]int{}
	m := &Matrix{Rows: []string{}, Columns: []string{}}
	type key struct{ r, c int }
	sums := map[key]float64{}
	for i := 0; i < t.NumRows(); i++ {
		rv, cv, v := rc.Values[i], cc.Values[i], vc.Values[i]
		if rv.IsMissing() || cv.IsMissing() {
			continue
		}
		ri, ok := rowIdx[rv.String()]
		if !ok {
			ri = len(m.Rows)
			rowIdx[rv.String()] = ri
			m.Rows = append(m.Rows, rv.String())
		}
		ci, ok := colIdx[cv.String()]
		if !ok {
			ci = len(m.Columns)
			colIdx[cv.String()] = ci
			m.Columns = append(m.Columns, cv.String())
		}
		if v.IsNumber() {
			sums[key{ri, ci}] += v.Num
		}
	}
	m.Values = make([][]*float64, len(m.Rows))
	for r := range m.Values {
		m.Values[r] = make([]*float64, len(m.Columns))
		for c := range m.Values[r] {
			if s, ok := sums[key{r, c}]; ok {
				v := s
				m.Values[r][c] = &v
			}
		}
	}
	return m, nil
}

// pieSlices aggregates per name: the sum of values, or the row count when
// values is empty. Missing names are skipped.
func pieSlices(t *table.Table, names, values string) ([]Slice, error) {
	nc, err := column(t, names)
	if err != nil {
		return nil, err
	}
	var vc table.Column
	if values != "" {
		if vc, err = column(t, values); err != nil {
			return nil, err
		}
	}
	idx := map[string]int{}
	out := []Slice{}
	for i := 0; i < t.NumRows(); i++ {
		name := nc.Values[i]
		if name.IsMissing() {
			continue
		}
		j, ok := idx[name.String()]
		if !ok {
			j = len(out)
			idx[name.String()] = j
			out = append(out, Slice{Name: name.String()})
		}
		if values == "" {
			out[j].Value++
			continue
		}
		if v := vc.Values[i]; v.IsNumber() {
			out[j].Value += v.Num
		}
	}
	return out, nil
}
