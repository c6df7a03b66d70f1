package chart

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// ErrChart is the category of all chart request failures.
var ErrChart = errors.New("chart error")

// Chart error codes.
const (
	MissingField               = "missing_field"
	InvalidColumnForChart      = "invalid_column_for_chart"
	TooManyColumns             = "too_many_columns"
	InsufficientNumericColumns = "insufficient_numeric_columns"
	UnknownKind                = "unknown_kind"
)

// ChartError reports a request that does not fit the table's columns.
type ChartError struct {
	Code   string
	Kind   Kind
	Field  string
	Column string
	// RequiredRole is zero when any role is accepted.
	RequiredRole table.Role
	// Need is the minimum column count for InsufficientNumericColumns.
	Need int
}

func (e *ChartError) Error() string {
	switch e.Code {
	case MissingField:
		return fmt.Sprintf("chart error: %s requires field %q", e.Kind, e.Field)
	case InvalidColumnForChart:
		if e.RequiredRole == 0 {
			return fmt.Sprintf("chart error: column %q (field %q) does not exist", e.Column, e.Field)
		}
		return fmt.Sprintf("chart error: column %q (field %q) must be an existing %s column", e.Column, e.Field, e.RequiredRole)
	case TooManyColumns:
		return fmt.Sprintf("chart error: %s accepts a single column for field %q", e.Kind, e.Field)
	case InsufficientNumericColumns:
		return fmt.Sprintf("chart error: %s needs at least %d numeric columns", e.Kind, e.Need)
	case UnknownKind:
		return fmt.Sprintf("chart error: unknown chart kind %q", e.Kind)
	default:
		return "chart error: " + e.Code
	}
}

func (e *ChartError) Is(target error) bool { return target == ErrChart }
