package geopackage

import (
	"slices"
	"strings"
)

// Table is an immutable user table descriptor. It is shared by pointer
// between the table creator and any DAO bound to the table.
type Table struct {
	name     string
	columns  []Column
	byName   map[string]int
	pk       int
	geometry int
	unique   [][]string
}

// NewTable validates columns and returns the descriptor. Columns may be
// given in any order; they are sorted by Index, which must run from 0
// without gaps. Exactly one column must be the primary key, at most one may
// be a geometry column, and names must be unique ignoring case.
func NewTable(name string, columns []Column) (*Table, error) {
	if name == "" {
		return nil, tableErrf(ErrValidation, "", "", nil, "table name is required")
	}
	if len(columns) == 0 {
		return nil, tableErrf(ErrValidation, name, "", nil, "no columns")
	}
	cols := slices.Clone(columns)
	slices.SortFunc(cols, func(a, b Column) int { return a.Index - b.Index })

	t := &Table{name: name, columns: cols, byName: make(map[string]int, len(cols)), pk: -1, geometry: -1}
	for i, c := range cols {
		if err := c.validate(name); err != nil {
			return nil, err
		}
		if !c.Default.IsNull() {
			cols[i].Default, _ = c.coerce(name, c.Default)
		}
		if c.Index != i {
			return nil, tableErrf(ErrValidation, name, c.Name, nil, "column indices must be contiguous from 0, found %d at position %d", c.Index, i)
		}
		key := strings.ToLower(c.Name)
		if _, dup := t.byName[key]; dup {
			return nil, tableErrf(ErrValidation, name, c.Name, nil, "duplicate column name")
		}
		t.byName[key] = i
		if c.PrimaryKey {
			if t.pk >= 0 {
				return nil, tableErrf(ErrValidation, name, c.Name, nil, "second primary key, %q already declared", cols[t.pk].Name)
			}
			t.pk = i
		}
		if c.IsGeometry() {
			if t.geometry >= 0 {
				return nil, tableErrf(ErrValidation, name, c.Name, nil, "second geometry column, %q already declared", cols[t.geometry].Name)
			}
			t.geometry = i
		}
	}
	if t.pk < 0 {
		return nil, tableErrf(ErrValidation, name, "", nil, "no primary key column")
	}
	return t, nil
}

// NewFeatureTable is NewTable requiring exactly one geometry column.
func NewFeatureTable(name string, columns []Column) (*Table, error) {
	t, err := NewTable(name, columns)
	if err != nil {
		return nil, err
	}
	if t.geometry < 0 {
		return nil, tableErrf(ErrValidation, name, "", nil, "feature table needs a geometry column")
	}
	return t, nil
}

func (t *Table) Name() string { return t.name }

// Columns returns a copy of the columns in index order.
func (t *Table) Columns() []Column { return slices.Clone(t.columns) }

func (t *Table) ColumnCount() int { return len(t.columns) }

// ColumnAt returns the column with the given index.
func (t *Table) ColumnAt(i int) Column { return t.columns[i] }

// Column looks a column up by name, ignoring case.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[strings.ToLower(name)]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// ColumnIndex returns the index of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.byName[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) PrimaryKey() Column { return t.columns[t.pk] }

// GeometryColumn returns the geometry column, if there is one.
func (t *Table) GeometryColumn() (Column, bool) {
	if t.geometry < 0 {
		return Column{}, false
	}
	return t.columns[t.geometry], true
}

// UniqueConstraints returns the multi-column UNIQUE constraints.
func (t *Table) UniqueConstraints() [][]string {
	out := make([][]string, len(t.unique))
	for i, u := range t.unique {
		out[i] = slices.Clone(u)
	}
	return out
}

// withUnique returns a copy of t carrying an extra UNIQUE constraint.
func (t *Table) withUnique(cols ...string) (*Table, error) {
	for _, c := range cols {
		if t.ColumnIndex(c) < 0 {
			return nil, tableErrf(ErrValidation, t.name, c, nil, "unique constraint on unknown column")
		}
	}
	cp := *t
	cp.unique = append(slices.Clone(t.unique), slices.Clone(cols))
	return &cp, nil
}
