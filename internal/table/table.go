package table

import (
	"fmt"

	"github.com/spf13/cast"
)

// Table is an in-memory dataset with named columns of equal length.
// Values are kept as their CSV cell representation.
type Table struct {
	columns []string
	index   map[string]int
	values  [][]string
}

// New creates an empty table with the given columns in order.
func New(columns ...string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// addColumn appends a column padded to the current row count. Duplicate
// names are kept so Validate can report them.
func (t *Table) addColumn(name string) {
	if _, exists := t.index[name]; !exists {
		t.index[name] = len(t.columns)
	}
	t.columns = append(t.columns, name)
	t.values = append(t.values, make([]string, t.Len()))
}

// AppendRow adds one row. The number of values must match the number of columns.
func (t *Table) AppendRow(values ...string) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	for i, v := range values {
		t.values[i] = append(t.values[i], v)
	}
	return nil
}

// Len returns the number of rows (the length of the first column).
func (t *Table) Len() int {
	if t == nil || len(t.values) == 0 {
		return 0
	}
	return len(t.values[0])
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Column returns the values of the named column and whether it exists.
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.values[i], true
}

// Row returns the i-th row in column order.
func (t *Table) Row(i int) []string {
	row := make([]string, len(t.columns))
	for c := range t.columns {
		row[c] = t.values[c][i]
	}
	return row
}

// Validate checks that column names are unique and every column has the same length.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("nil table")
	}
	seen := make(map[string]struct{}, len(t.columns))
	for _, c := range t.columns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	rows := t.Len()
	for i, c := range t.columns {
		if len(t.values[i]) != rows {
			return fmt.Errorf("column %q has %d values, expected %d", c, len(t.values[i]), rows)
		}
	}
	return nil
}

// WithConstant sets the named column to value on every row, adding the
// column if it does not exist yet. It returns the table for chaining.
func (t *Table) WithConstant(name, value string) *Table {
	i, ok := t.index[name]
	if !ok {
		t.addColumn(name)
		i = len(t.columns) - 1
	}
	for r := range t.values[i] {
		t.values[i][r] = value
	}
	return t
}

// Concat stacks tables row-wise. The result holds the union of all columns
// in first-seen order; cells a table has no column for are left empty.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			if _, ok := out.index[c]; !ok {
				out.addColumn(c)
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		rows := t.Len()
		for oc, name := range out.columns {
			src, ok := t.Column(name)
			if !ok {
				out.values[oc] = append(out.values[oc], make([]string, rows)...)
				continue
			}
			out.values[oc] = append(out.values[oc], src...)
		}
	}
	return out
}

// Cell formats a decoded JSON scalar as a CSV cell. Nil values and nil
// pointers become empty cells.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *float64:
		if x == nil {
			return ""
		}
		return cast.ToString(*x)
	case *int64:
		if x == nil {
			return ""
		}
		return cast.ToString(*x)
	case *string:
		if x == nil {
			return ""
		}
		return *x
	}
	return cast.ToString(v)
}
