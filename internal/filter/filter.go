// Package filter narrows a table by multi-value category predicates.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// ErrFilter is the category of all filter failures.
var ErrFilter = errors.New("filter error")

// Filter failure reasons.
const (
	UnknownColumn = "unknown_column"
)

// FilterError reports a filter that cannot be applied to the table.
type FilterError struct {
	Reason string
	Column string
}

func (e *FilterError) Error() string {
	if e.Reason == UnknownColumn {
		return fmt.Sprintf("filter error: %q is not a categorical column", e.Column)
	}
	return fmt.Sprintf("filter error: %s (column %q)", e.Reason, e.Column)
}

func (e *FilterError) Is(target error) bool { return target == ErrFilter }

// Filter keeps rows whose value in Column is one of Allowed.
// A nil or empty Allowed keeps no rows.
type Filter struct {
	Column  string   `yaml:"column" json:"column"`
	Allowed []string `yaml:"allowed" json:"allowed"`
}

// Apply returns a new table holding the rows that satisfy every filter.
// Missing cells match the empty string.
func Apply(t *table.Table, filters []Filter) (*table.Table, error) {
	type pred struct {
		values []table.Cell
		allow  map[string]struct{}
	}
	preds := make([]pred, 0, len(filters))
	for _, f := range filters {
		col, ok := t.Column(f.Column)
		if !ok || col.Role != table.RoleCategorical {
			return nil, &FilterError{Reason: UnknownColumn, Column: f.Column}
		}
		allow := make(map[string]struct{}, len(f.Allowed))
		for _, v := range f.Allowed {
			allow[v] = struct{}{}
		}
		preds = append(preds, pred{values: col.Values, allow: allow})
	}

	keep := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		ok := true
		for _, p := range preds {
			if _, hit := p.allow[p.values[i].Text]; !hit {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return t.Select(keep), nil
}

// Distinct returns the distinct values of a categorical column in first-seen
// order. Missing cells contribute "".
func Distinct(t *table.Table, column string) ([]string, error) {
	col, ok := t.Column(column)
	if !ok || col.Role != table.RoleCategorical {
		return nil, &FilterError{Reason: UnknownColumn, Column: column}
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range col.Values {
		if _, dup := seen[c.Text]; dup {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c.Text)
	}
	return out, nil
}

// Defaults returns one filter per categorical column allowing every observed
// value. Applying it returns the table unchanged.
func Defaults(t *table.Table) []Filter {
	names := t.CategoricalColumns()
	out := make([]Filter, 0, len(names))
	for _, name := range names {
		vals, _ := Distinct(t, name)
		out = append(out, Filter{Column: name, Allowed: vals})
	}
	return out
}

// Parse reads a "Column=a,b" flag value. "Column=" allows nothing.
func Parse(s string) (Filter, error) {
	col, rest, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(col) == "" {
		return Filter{}, fmt.Errorf("invalid filter %q (want Column=value1,value2)", s)
	}
	f := Filter{Column: strings.TrimSpace(col), Allowed: []string{}}
	if rest != "" {
		f.Allowed = strings.Split(rest, ",")
	}
	return f, nil
}
