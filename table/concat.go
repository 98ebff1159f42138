package table

import "fmt"

// ConcatDiagonal stacks tables whose column sets may differ. The result holds the
// union of columns in first-seen order; rows from a table lacking a column are null there.
func ConcatDiagonal(tables ...*Table) (*Table, error) {
	var (
		order  []string
		kinds  = make(map[string]Kind)
		height int
	)
	for i, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("table: concat input %d is nil", i)
		}
		for _, c := range t.columns {
			kind, seen := kinds[c.Name]
			if !seen {
				kinds[c.Name] = c.Kind
				order = append(order, c.Name)
				continue
			}
			if kind != c.Kind {
				return nil, fmt.Errorf("%w: column %q is %s in input %d, %s earlier", ErrSchemaMismatch, c.Name, c.Kind, i, kind)
			}
		}
		height += t.height
	}

	columns := make([]*Column, len(order))
	for j, name := range order {
		values := make([]any, 0, height)
		for _, t := range tables {
			if c, ok := t.Column(name); ok {
				values = append(values, c.values...)
				continue
			}
			values = append(values, make([]any, t.height)...)
		}
		columns[j] = &Column{Name: name, Kind: kinds[name], values: values}
	}
	return New(columns...)
}
