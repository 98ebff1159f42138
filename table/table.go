// Package table is a small columnar table with nullable typed cells.
package table

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrLengthMismatch is returned when columns of one table differ in length.
	ErrLengthMismatch = errors.New("table: column length mismatch")
	// ErrDuplicateColumn is returned when a column name is used twice.
	ErrDuplicateColumn = errors.New("table: duplicate column")
	// ErrSchemaMismatch is returned when two tables disagree on a column's type.
	ErrSchemaMismatch = errors.New("table: schema mismatch")
	// ErrUnsupportedType is returned for cell values of an unknown Go type.
	ErrUnsupportedType = errors.New("table: unsupported value type")
)

// Kind is the element type of a column.
type Kind int

const (
	String Kind = iota
	Float32
	Int32
	Uint32
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// KindOf reports the column kind a Go value belongs to.
func KindOf(v any) (Kind, error) {
	switch v.(type) {
	case string:
		return String, nil
	case float32:
		return Float32, nil
	case int32:
		return Int32, nil
	case uint32:
		return Uint32, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// Column is a named, typed sequence of cells. A nil cell is null.
type Column struct {
	Name   string
	Kind   Kind
	values []any
}

// NewStringColumn builds a string column.
func NewStringColumn(name string, values []string) *Column {
	c := &Column{Name: name, Kind: String, values: make([]any, len(values))}
	for i, v := range values {
		c.values[i] = v
	}
	return c
}

// NewFloat32Column builds a float32 column.
func NewFloat32Column(name string, values []float32) *Column {
	c := &Column{Name: name, Kind: Float32, values: make([]any, len(values))}
	for i, v := range values {
		c.values[i] = v
	}
	return c
}

// NewInt32Column builds an int32 column.
func NewInt32Column(name string, values []int32) *Column {
	c := &Column{Name: name, Kind: Int32, values: make([]any, len(values))}
	for i, v := range values {
		c.values[i] = v
	}
	return c
}

// NewUint32Column builds a uint32 column.
func NewUint32Column(name string, values []uint32) *Column {
	c := &Column{Name: name, Kind: Uint32, values: make([]any, len(values))}
	for i, v := range values {
		c.values[i] = v
	}
	return c
}

// Len is the number of cells.
func (c *Column) Len() int {
	return len(c.values)
}

// Value returns the cell at i; nil means null.
func (c *Column) Value(i int) any {
	return c.values[i]
}

// IsNull reports whether the cell at i is null.
func (c *Column) IsNull(i int) bool {
	return c.values[i] == nil
}

// Table is an ordered set of equal-length columns.
type Table struct {
	columns []*Column
	index   map[string]int
	height  int
}

// New assembles a table from columns of equal length.
func New(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("table: column %d is nil", i)
		}
		if i == 0 {
			t.height = c.Len()
		} else if c.Len() != t.height {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), t.height)
		}
		if _, ok := t.index[c.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		t.index[c.Name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// Height is the number of rows.
func (t *Table) Height() int {
	return t.height
}

// Width is the number of columns.
func (t *Table) Width() int {
	return len(t.columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.values[i]
	}
	return row
}

// WithConstant appends a column holding value on every row.
func (t *Table) WithConstant(name string, value any) error {
	kind, err := KindOf(value)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	if _, ok := t.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	c := &Column{Name: name, Kind: kind, values: make([]any, t.height)}
	for i := range c.values {
		c.values[i] = value
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// Records renders every row as strings, with nulls as empty cells.
func (t *Table) Records() [][]string {
	records := make([][]string, t.height)
	for i := 0; i < t.height; i++ {
		record := make([]string, len(t.columns))
		for j, c := range t.columns {
			record[j] = FormatValue(c.values[i])
		}
		records[i] = record
	}
	return records
}

// FormatValue renders a cell the way the CSV output shows it.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	default:
		return fmt.Sprint(val)
	}
}
