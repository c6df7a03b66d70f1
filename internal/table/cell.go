package table

import (
	"fmt"
	"strconv"
)

// CellKind tags the value held by a Cell.
type CellKind int

const (
	CellMissing CellKind = iota
	CellNumber
	CellText
)

// Cell is a typed table value: missing, a number, or text.
type Cell struct {
	Kind CellKind
	Num  float64
	Text string
}

func Missing() Cell { return Cell{Kind: CellMissing} }
func Number(f float64) Cell { return Cell{Kind: CellNumber, Num: f} }
func Text(s string) Cell { return Cell{Kind: CellText, Text: s} }
func (c Cell) IsMissing() bool { return c.Kind == CellMissing }
func (c Cell) IsNumber() bool { return c.Kind == CellNumber }

// String renders the cell the way it was read. Missing cells render empty.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// Value returns a JSON-friendly value: float64, string, or nil.
func (c Cell) Value() any {
	switch c.Kind {
	case CellNumber:
		return c.Num
	case CellText:
		return c.Text
	default:
		return nil
	}
}

// Role is the semantic role of a column, computed once at inference.
type Role int

const (
	RoleNumeric Role = iota + 1
	RoleCategorical
)

func (r Role) String() string {
	switch r {
	case RoleNumeric:
		return "numeric"
	case RoleCategorical:
		return "categorical"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}
