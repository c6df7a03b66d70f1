// Package chart validates chart requests against a typed table and builds the
// data series a renderer needs.
package chart

import (
	"sort"
	"strings"
)

// Kind names a chart type.
type Kind string

const (
	KindBar            Kind = "bar"
	KindLine           Kind = "line"
	KindArea           Kind = "area"
	KindBox            Kind = "box"
	KindPie            Kind = "pie"
	KindScatter        Kind = "scatter"
	KindBubble         Kind = "bubble"
	KindHistogram      Kind = "histogram"
	KindHeatmap        Kind = "heatmap"
	KindTreemap        Kind = "treemap"
	KindSunburst       Kind = "sunburst"
	KindScatterMatrix  Kind = "scatter_matrix"
	KindDensityContour Kind = "density_contour"
)

var kindAliases = map[string]Kind{
	"boxplot":        KindBox,
	"scattermatrix":  KindScatterMatrix,
	"splom":          KindScatterMatrix,
	"contour":        KindDensityContour,
	"densitycontour": KindDensityContour,
}

// ParseKind normalizes user input such as "Scatter Matrix" or "BoxPlot".
// Unrecognized names are returned as-is and fail in Resolve.
func ParseKind(s string) Kind {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if a, ok := kindAliases[strings.ReplaceAll(k, "_", "")]; ok {
		return a
	}
	return Kind(k)
}

// Kinds lists every supported chart kind in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(rules)+1)
	for k := range rules {
		out = append(out, string(k))
	}
	out = append(out, string(KindHeatmap))
	sort.Strings(out)
	return out
}

// Request is a user's chart selection. Not every field applies to every kind.
type Request struct {
	Kind       Kind     `yaml:"kind" json:"kind"`
	X          string   `yaml:"x,omitempty" json:"x,omitempty"`
	Y          []string `yaml:"y,omitempty" json:"y,omitempty"`
	Color      string   `yaml:"color,omitempty" json:"color,omitempty"`
	Size       string   `yaml:"size,omitempty" json:"size,omitempty"`
	Names      string   `yaml:"names,omitempty" json:"names,omitempty"`
	Values     string   `yaml:"values,omitempty" json:"values,omitempty"`
	Path       []string `yaml:"path,omitempty" json:"path,omitempty"`
	Dimensions []string `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	RowAxis    string   `yaml:"row_axis,omitempty" json:"row_axis,omitempty"`
	ColumnAxis string   `yaml:"column_axis,omitempty" json:"column_axis,omitempty"`
}

// HeatmapMode selects how a heatmap is computed.
type HeatmapMode string

const (
	HeatmapCorrelation HeatmapMode = "correlation"
	HeatmapPivot       HeatmapMode = "pivot"
)

// Aggregate is the reduction applied to grouped values.
type Aggregate string

const (
	AggregateSum   Aggregate = "sum"
	AggregateCount Aggregate = "count"
)

// Plan is a validated request: every referenced column exists with the
// required role, and fields the kind does not use are cleared.
type Plan struct {
	Kind        Kind        `yaml:"kind" json:"kind"`
	X           string      `yaml:"x,omitempty" json:"x,omitempty"`
	Y           []string    `yaml:"y,omitempty" json:"y,omitempty"`
	Color       string      `yaml:"color,omitempty" json:"color,omitempty"`
	Size        string      `yaml:"size,omitempty" json:"size,omitempty"`
	Names       string      `yaml:"names,omitempty" json:"names,omitempty"`
	Values      string      `yaml:"values,omitempty" json:"values,omitempty"`
	Path        []string    `yaml:"path,omitempty" json:"path,omitempty"`
	Dimensions  []string    `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	RowAxis     string      `yaml:"row_axis,omitempty" json:"row_axis,omitempty"`
	ColumnAxis  string      `yaml:"column_axis,omitempty" json:"column_axis,omitempty"`
	HeatmapMode HeatmapMode `yaml:"heatmap_mode,omitempty" json:"heatmap_mode,omitempty"`
	Aggregate   Aggregate   `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
}

// field names as they appear in requests and errors
const (
	fieldX          = "x"
	fieldY          = "y"
	fieldColor      = "color"
	fieldSize       = "size"
	fieldNames      = "names"
	fieldValues     = "values"
	fieldPath       = "path"
	fieldDimensions = "dimensions"
	fieldRowAxis    = "row_axis"
	fieldColumnAxis = "column_axis"
)

func one(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{s}
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// columns returns the columns a request names for field.
func (r Request) columns(field string) []string {
	switch field {
	case fieldX:
		return one(r.X)
	case fieldY:
		return nonEmpty(r.Y)
	case fieldColor:
		return one(r.Color)
	case fieldSize:
		return one(r.Size)
	case fieldNames:
		return one(r.Names)
	case fieldValues:
		return one(r.Values)
	case fieldPath:
		return nonEmpty(r.Path)
	case fieldDimensions:
		return nonEmpty(r.Dimensions)
	case fieldRowAxis:
		return one(r.RowAxis)
	case fieldColumnAxis:
		return one(r.ColumnAxis)
	}
	return nil
}

func (p *Plan) set(field string, cols []string) {
	switch field {
	case fieldX:
		p.X = cols[0]
	case fieldY:
		p.Y = cols
	case fieldColor:
		p.Color = cols[0]
	case fieldSize:
		p.Size = cols[0]
	case fieldNames:
		p.Names = cols[0]
	case fieldValues:
		p.Values = cols[0]
	case fieldPath:
		p.Path = cols
	case fieldDimensions:
		p.Dimensions = cols
	case fieldRowAxis:
		p.RowAxis = cols[0]
	case fieldColumnAxis:
		p.ColumnAxis = cols[0]
	}
}
