package table

import (
	"errors"
	"fmt"
)

// ErrSchema is the category of all malformed or ambiguous input tables.
var ErrSchema = errors.New("schema error")

// Schema error reasons.
const (
	DuplicateColumn = "duplicate_column"
)

// SchemaError reports an input table that cannot be typed.
type SchemaError struct {
	Reason string
	Column string
	// Positions holds the 0-based header positions involved.
	Positions []int
}

func (e *SchemaError) Error() string {
	if e.Reason == DuplicateColumn {
		return fmt.Sprintf("schema error: duplicate column %q at positions %v", e.Column, e.Positions)
	}
	return fmt.Sprintf("schema error: %s (column %q)", e.Reason, e.Column)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
