package geopackage

import "fmt"

// Column describes one column of a user table. Geometry columns also carry
// a declared GeometryType and z/m rules.
type Column struct {
	Index      int
	Name       string
	Type       DataType
	NotNull    bool
	Default    Value
	PrimaryKey bool
	Max        int // length limit for TEXT and BLOB; 0 means none

	GeometryType GeometryType
	Z, M         Dimension
}

// NewPrimaryKeyColumn returns an INTEGER PRIMARY KEY AUTOINCREMENT column.
func NewPrimaryKeyColumn(index int, name string) Column {
	return Column{Index: index, Name: name, Type: DataTypeInteger, NotNull: true, PrimaryKey: true}
}

// NewColumn returns a plain column. def may be nil or any value accepted by
// ValueOf; it panics otherwise, as column declarations are programmer input.
func NewColumn(index int, name string, typ DataType, notNull bool, def any) Column {
	return Column{Index: index, Name: name, Type: typ, NotNull: notNull, Default: mustValue(def)}
}

// NewColumnWithMax is NewColumn with a TEXT or BLOB length limit.
func NewColumnWithMax(index int, name string, typ DataType, max int, notNull bool, def any) Column {
	c := NewColumn(index, name, typ, notNull, def)
	c.Max = max
	return c
}

// NewGeometryColumn returns a geometry column with z and m prohibited.
func NewGeometryColumn(index int, name string, geomType GeometryType, notNull bool, def *GeometryData) Column {
	return Column{
		Index:        index,
		Name:         name,
		Type:         DataTypeGeometry,
		NotNull:      notNull,
		Default:      GeometryValue(def),
		GeometryType: geomType,
	}
}

// IsGeometry reports whether c holds geometries.
func (c Column) IsGeometry() bool { return c.Type == DataTypeGeometry }

// SQLType is the type name used in DDL: the geometry type name for geometry
// columns, otherwise the data type with an optional length.
func (c Column) SQLType() string {
	switch {
	case c.IsGeometry():
		return c.GeometryType.String()
	case c.Max > 0:
		return fmt.Sprintf("%s(%d)", c.Type, c.Max)
	default:
		return c.Type.String()
	}
}

func (c Column) validate(table string) error {
	if c.Name == "" {
		return tableErrf(ErrValidation, table, "", nil, "column %d has no name", c.Index)
	}
	if c.Index < 0 {
		return tableErrf(ErrValidation, table, c.Name, nil, "negative index %d", c.Index)
	}
	if c.Type < DataTypeBoolean || c.Type > DataTypeGeometry {
		return tableErrf(ErrValidation, table, c.Name, nil, "unknown data type %d", int(c.Type))
	}
	if c.PrimaryKey && c.Type != DataTypeInteger {
		return tableErrf(ErrValidation, table, c.Name, nil, "primary key must be INTEGER, not %s", c.Type)
	}
	if c.Max < 0 {
		return tableErrf(ErrValidation, table, c.Name, nil, "negative max %d", c.Max)
	}
	if c.Max > 0 && c.Type != DataTypeText && c.Type != DataTypeBlob {
		return tableErrf(ErrValidation, table, c.Name, nil, "max is only allowed on TEXT and BLOB, not %s", c.Type)
	}
	if c.IsGeometry() {
		if c.GeometryType < GeometryTypeGeometry || c.GeometryType > GeometryTypeGeometryCollection {
			return tableErrf(ErrValidation, table, c.Name, nil, "unknown geometry type %d", int(c.GeometryType))
		}
		if !c.Z.valid() || !c.M.valid() {
			return tableErrf(ErrValidation, table, c.Name, nil, "invalid z/m values %d/%d", c.Z, c.M)
		}
	}
	if !c.Default.IsNull() {
		if _, err := c.coerce(table, c.Default); err != nil {
			return tableErrf(ErrValidation, table, c.Name, err, "bad default")
		}
	}
	return nil
}

func mustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}
