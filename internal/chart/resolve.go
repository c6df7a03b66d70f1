package chart

import (
	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// anyRole accepts Numeric and Categorical columns.
const anyRole table.Role = 0

// fieldRule constrains one request field for a kind.
type fieldRule struct {
	field    string
	role     table.Role
	required bool
	// multi allows more than one column; min is the least accepted count.
	multi bool
	min   int
}

var (
	xAny     = fieldRule{field: fieldX, role: anyRole, required: true}
	xNum     = fieldRule{field: fieldX, role: table.RoleNumeric, required: true}
	ySeries  = fieldRule{field: fieldY, role: table.RoleNumeric, required: true, multi: true, min: 1}
	ySingle  = fieldRule{field: fieldY, role: table.RoleNumeric, required: true}
	colorCat = fieldRule{field: fieldColor, role: table.RoleCategorical}
	sizeNum  = fieldRule{field: fieldSize, role: table.RoleNumeric, required: true}
	namesAny = fieldRule{field: fieldNames, role: anyRole, required: true}
	valNum   = fieldRule{field: fieldValues, role: table.RoleNumeric, required: true}
	valOpt   = fieldRule{field: fieldValues, role: table.RoleNumeric}
	pathCat  = fieldRule{field: fieldPath, role: table.RoleCategorical, required: true, multi: true, min: 1}
	dimsNum  = fieldRule{field: fieldDimensions, role: table.RoleNumeric, required: true, multi: true, min: 2}
	rowCat   = fieldRule{field: fieldRowAxis, role: table.RoleCategorical, required: true}
	colCat   = fieldRule{field: fieldColumnAxis, role: table.RoleCategorical, required: true}
)

// rules is the per-kind field table. Heatmap is resolved separately because
// its mode depends on which fields are present.
var rules = map[Kind][]fieldRule{
	KindBar:            {xAny, ySeries, colorCat},
	KindLine:           {xAny, ySeries, colorCat},
	KindArea:           {xAny, ySeries, colorCat},
	KindBox:            {xAny, ySeries, colorCat},
	KindPie:            {namesAny, valOpt},
	KindScatter:        {xAny, ySingle, colorCat},
	KindBubble:         {xAny, ySingle, sizeNum, colorCat},
	KindHistogram:      {xAny, colorCat},
	KindTreemap:        {pathCat, valNum},
	KindSunburst:       {pathCat, valNum},
	KindScatterMatrix:  {dimsNum, colorCat},
	KindDensityContour: {xNum, ySingle, colorCat},
}

var pivotRules = []fieldRule{rowCat, colCat, valNum}

// Resolve validates req against t and returns a normalized plan.
// It never substitutes columns: any mismatch is a *ChartError.
func Resolve(t *table.Table, req Request) (*Plan, error) {
	kind := ParseKind(string(req.Kind))
	if kind == KindHeatmap {
		return resolveHeatmap(t, req)
	}
	fields, ok := rules[kind]
	if !ok {
		return nil, &ChartError{Code: UnknownKind, Kind: kind}
	}
	plan := &Plan{Kind: kind}
	if err := applyRules(t, kind, req, fields, plan); err != nil {
		return nil, err
	}
	switch kind {
	case KindPie:
		plan.Aggregate = AggregateSum
		if plan.Values == "" {
			plan.Aggregate = AggregateCount
		}
	case KindTreemap, KindSunburst:
		plan.Aggregate = AggregateSum
	}
	return plan, nil
}

func resolveHeatmap(t *table.Table, req Request) (*Plan, error) {
	plan := &Plan{Kind: KindHeatmap}
	if len(req.columns(fieldRowAxis)) == 0 && len(req.columns(fieldColumnAxis)) == 0 {
		nums := t.NumericColumns()
		if len(nums) < 2 {
			return nil, &ChartError{Code: InsufficientNumericColumns, Kind: KindHeatmap, Need: 2}
		}
		plan.HeatmapMode = HeatmapCorrelation
		plan.Dimensions = nums
		return plan, nil
	}
	if err := applyRules(t, KindHeatmap, req, pivotRules, plan); err != nil {
		return nil, err
	}
	plan.HeatmapMode = HeatmapPivot
	plan.Aggregate = AggregateSum
	return plan, nil
}

func applyRules(t *table.Table, kind Kind, req Request, fields []fieldRule, plan *Plan) error {
	for _, fr := range fields {
		cols := req.columns(fr.field)
		if len(cols) == 0 {
			if fr.required {
				return &ChartError{Code: MissingField, Kind: kind, Field: fr.field}
			}
			continue
		}
		if !fr.multi && len(cols) > 1 {
			return &ChartError{Code: TooManyColumns, Kind: kind, Field: fr.field}
		}
		for _, name := range cols {
			role, ok := t.RoleOf(name)
			if !ok || (fr.role != anyRole && role != fr.role) {
				return &ChartError{Code: InvalidColumnForChart, Kind: kind, Field: fr.field, Column: name, RequiredRole: fr.role}
			}
		}
		if len(cols) < fr.min {
			return &ChartError{Code: InsufficientNumericColumns, Kind: kind, Field: fr.field, Need: fr.min}
		}
		plan.set(fr.field, append([]string(nil), cols...))
	}
	return nil
}
