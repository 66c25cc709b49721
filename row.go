package geopackage

import "fmt"

// Row is one record of a user table: a value per column, in column order.
type Row struct {
	table  *Table
	values []Value
	// key is the primary key the row was read or created with; Update
	// refuses to move a row to another key.
	key *int64
}

func newRow(t *Table) *Row {
	return &Row{table: t, values: make([]Value, t.ColumnCount())}
}

func (r *Row) Table() *Table { return r.table }

// Value returns the value of the named column; unknown names are null.
func (r *Row) Value(column string) Value {
	i := r.table.ColumnIndex(column)
	if i < 0 {
		return Value{}
	}
	return r.values[i]
}

// ValueAt returns the value of the column with index i.
func (r *Row) ValueAt(i int) Value { return r.values[i] }

// Values returns a copy of all values in column order.
func (r *Row) Values() []Value {
	return append([]Value(nil), r.values...)
}

// Set assigns v to the named column after checking it fits the column's
// type.
func (r *Row) Set(column string, v Value) error {
	i := r.table.ColumnIndex(column)
	if i < 0 {
		return tableErrf(ErrValidation, r.table.Name(), column, nil, "no such column")
	}
	return r.SetAt(i, v)
}

// SetAt is Set by column index.
func (r *Row) SetAt(i int, v Value) error {
	c := r.table.columns[i]
	cv, err := c.coerce(r.table.Name(), v)
	if err != nil {
		return err
	}
	r.values[i] = cv
	return nil
}

// SetAny converts x with ValueOf and sets it.
func (r *Row) SetAny(column string, x any) error {
	v, err := ValueOf(x)
	if err != nil {
		return tableErrf(ErrType, r.table.Name(), column, err, "")
	}
	return r.Set(column, v)
}

// ID returns the primary key value, if set.
func (r *Row) ID() (int64, bool) {
	return r.values[r.table.pk].Int()
}

// SetID sets the primary key value.
func (r *Row) SetID(id int64) {
	r.values[r.table.pk] = IntValue(id)
}

func (r *Row) String() string {
	return fmt.Sprintf("%s%v", r.table.Name(), r.values)
}
