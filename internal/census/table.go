package census

import (
	"math"
	"strconv"

	"github.com/google/uuid"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Column is one named, typed column of a Table.
// Only the slice matching Kind is populated.
type Column struct {
	Name string
	Kind Kind

	ints   []int64
	floats []float64
	strs   []string
	null   []bool // KindString only
}

// Len returns the number of cells.
func (c *Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.ints)
	case KindFloat:
		return len(c.floats)
	default:
		return len(c.strs)
	}
}

// IsNull reports whether cell i was missing in the source.
func (c *Column) IsNull(i int) bool {
	switch c.Kind {
	case KindInt:
		return false
	case KindFloat:
		return math.IsNaN(c.floats[i])
	default:
		return c.null[i]
	}
}

// Int returns cell i of an int column.
func (c *Column) Int(i int) (int64, bool) {
	if c.Kind != KindInt {
		return 0, false
	}
	return c.ints[i], true
}

// Float returns cell i of a numeric column. Missing cells report false.
func (c *Column) Float(i int) (float64, bool) {
	switch c.Kind {
	case KindInt:
		return float64(c.ints[i]), true
	case KindFloat:
		v := c.floats[i]
		return v, !math.IsNaN(v)
	default:
		return 0, false
	}
}

// Text formats cell i. Missing cells format as "".
func (c *Column) Text(i int) string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.ints[i], 10)
	case KindFloat:
		if math.IsNaN(c.floats[i]) {
			return ""
		}
		return strconv.FormatFloat(c.floats[i], 'g', -1, 64)
	default:
		return c.strs[i]
	}
}

// Value returns cell i as int64, float64 or string, or nil when missing.
// Infinite floats are returned as is; callers encoding JSON must handle them.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Kind {
	case KindInt:
		return c.ints[i]
	case KindFloat:
		return c.floats[i]
	default:
		return c.strs[i]
	}
}

// Texts formats every cell of the column.
func (c *Column) Texts() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Text(i)
	}
	return out
}

// Table is an immutable, column-oriented view of a CSV file.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
	loadID  uuid.UUID
}

// LoadID identifies the load that produced the table. It is uuid.Nil for
// tables built directly with ReadTable.
func (t *Table) LoadID() uuid.UUID { return t.loadID }

// WithLoadID returns a copy of t tagged with id. Column data is shared.
func (t *Table) WithLoadID(id uuid.UUID) *Table {
	c := *t
	c.loadID = id
	return &c
}

// Len returns the number of data rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column. Names match exactly.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns row i as values in column order; see Column.Value.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Value(i)
	}
	return row
}
