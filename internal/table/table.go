package table

// Grid is a decoded 2-D cell grid with a header row. Missing cells are empty strings.
type Grid struct {
	Header []string
	Rows   [][]string
}

// Column is a named, role-tagged sequence of cells.
type Column struct {
	Name   string
	Role   Role
	Values []Cell
}

// Row maps column names to the row's cells.
type Row map[string]Cell

// Table is an immutable typed table. Every derived table (filtered, sampled)
// is a new value; callers never observe in-place mutation.
type Table struct {
	cols  []Column
	index map[string]int
	nrows int
}

// New builds a table from columns that all have the same length.
func New(cols []Column) *Table {
	t := &Table{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		t.index[c.Name] = i
		if i == 0 {
			t.nrows = len(c.Values)
		}
	}
	return t
}

func (t *Table) NumRows() int { return t.nrows }
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the columns in original order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Names returns all column names in original order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// RoleOf reports the role of the named column.
func (t *Table) RoleOf(name string) (Role, bool) {
	c, ok := t.Column(name)
	if !ok {
		return 0, false
	}
	return c.Role, true
}

// NumericColumns lists Numeric column names in original order.
func (t *Table) NumericColumns() []string { return t.namesWithRole(RoleNumeric) }

// CategoricalColumns lists Categorical column names in original order.
func (t *Table) CategoricalColumns() []string { return t.namesWithRole(RoleCategorical) }

func (t *Table) namesWithRole(r Role) []string {
	out := []string{}
	for _, c := range t.cols {
		if c.Role == r {
			out = append(out, c.Name)
		}
	}
	return out
}

// Row returns row i as a name->cell map.
func (t *Table) Row(i int) Row {
	r := make(Row, len(t.cols))
	for _, c := range t.cols {
		r[c.Name] = c.Values[i]
	}
	return r
}

// Rows returns all rows in table order.
func (t *Table) Rows() []Row {
	out := make([]Row, t.nrows)
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Select returns a new table holding only the given row indexes, in the given order.
func (t *Table) Select(rows []int) *Table {
	cols := make([]Column, len(t.cols))
	for j, c := range t.cols {
		vals := make([]Cell, len(rows))
		for k, i := range rows {
			vals[k] = c.Values[i]
		}
		cols[j] = Column{Name: c.Name, Role: c.Role, Values: vals}
	}
	out := New(cols)
	out.nrows = len(rows)
	return out
}

// Head returns the first n rows (or all rows when the table is shorter).
func (t *Table) Head(n int) *Table {
	if n > t.nrows {
		n = t.nrows
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Select(idx)
}

// Grid renders the table back to a raw string grid.
func (t *Table) Grid() Grid {
	g := Grid{Header: t.Names(), Rows: make([][]string, t.nrows)}
	for i := 0; i < t.nrows; i++ {
		rec := make([]string, len(t.cols))
		for j, c := range t.cols {
			rec[j] = c.Values[i].String()
		}
		g.Rows[i] = rec
	}
	return g
}
