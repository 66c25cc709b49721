package flatgeobuf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	geopackage "github.com/tingold/orb-geopackage"
)

// propertyColumn is a table column exported as a FlatGeobuf property.
type propertyColumn struct {
	name    string
	index   int // position in the table row
	typ     flattypes.ColumnType
	notNull bool
}

// columnType maps a GeoPackage data type to the FlatGeobuf column type
// with the same range.
func columnType(dt geopackage.DataType) flattypes.ColumnType {
	switch dt {
	case geopackage.DataTypeBoolean:
		return flattypes.ColumnTypeBool
	case geopackage.DataTypeTinyInt:
		return flattypes.ColumnTypeByte
	case geopackage.DataTypeSmallInt:
		return flattypes.ColumnTypeShort
	case geopackage.DataTypeMediumInt:
		return flattypes.ColumnTypeInt
	case geopackage.DataTypeInteger:
		return flattypes.ColumnTypeLong
	case geopackage.DataTypeFloat:
		return flattypes.ColumnTypeFloat
	case geopackage.DataTypeDouble, geopackage.DataTypeReal:
		return flattypes.ColumnTypeDouble
	case geopackage.DataTypeDate, geopackage.DataTypeDateTime:
		return flattypes.ColumnTypeDateTime
	case geopackage.DataTypeBlob:
		return flattypes.ColumnTypeBinary
	default:
		return flattypes.ColumnTypeString
	}
}

// propertyColumns lists every column except the primary key and the
// geometry column.
func propertyColumns(t *geopackage.Table) []propertyColumn {
	var cols []propertyColumn
	for _, c := range t.Columns() {
		if c.PrimaryKey || c.IsGeometry() {
			continue
		}
		cols = append(cols, propertyColumn{name: c.Name, index: c.Index, typ: columnType(c.Type), notNull: c.NotNull})
	}
	return cols
}

func headerColumns(cols []propertyColumn, builder *flatbuffers.Builder) []*writer.Column {
	out := make([]*writer.Column, len(cols))
	for i, c := range cols {
		col := writer.NewColumn(builder)
		col.SetName(c.name)
		col.SetTitle(c.name)
		col.SetType(c.typ)
		col.SetNullable(!c.notNull)
		out[i] = col
	}
	return out
}

// encodeProperties writes the non-null values of row as FlatGeobuf
// properties: a little-endian uint16 column index followed by the value.
// Strings, JSON, date-times and binaries are prefixed with their uint32
// byte length.
func encodeProperties(row *geopackage.Row, cols []propertyColumn) []byte {
	var buf []byte
	le := binary.LittleEndian
	for i, c := range cols {
		v := row.ValueAt(c.index)
		if v.IsNull() {
			continue
		}
		buf = le.AppendUint16(buf, uint16(i))
		switch c.typ {
		case flattypes.ColumnTypeBool:
			b, _ := v.Bool()
			if b {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case flattypes.ColumnTypeByte:
			n, _ := v.Int()
			buf = append(buf, byte(int8(n)))
		case flattypes.ColumnTypeShort:
			n, _ := v.Int()
			buf = le.AppendUint16(buf, uint16(int16(n)))
		case flattypes.ColumnTypeInt:
			n, _ := v.Int()
			buf = le.AppendUint32(buf, uint32(int32(n)))
		case flattypes.ColumnTypeLong:
			n, _ := v.Int()
			buf = le.AppendUint64(buf, uint64(n))
		case flattypes.ColumnTypeFloat:
			f, _ := v.Real()
			buf = le.AppendUint32(buf, math.Float32bits(float32(f)))
		case flattypes.ColumnTypeDouble:
			f, _ := v.Real()
			buf = le.AppendUint64(buf, math.Float64bits(f))
		case flattypes.ColumnTypeBinary:
			b, _ := v.Blob()
			buf = le.AppendUint32(buf, uint32(len(b)))
			buf = append(buf, b...)
		default:
			s, _ := v.Text()
			buf = le.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		}
	}
	return buf
}

// decodeProperties reads the properties of one feature. Integers come back
// as the Go type of their FlatGeobuf width; text types as string.
func decodeProperties(data []byte, header *flattypes.Header) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	le := binary.LittleEndian
	props := make(map[string]any)
	var col flattypes.Column
	for off := 0; off < len(data); {
		if len(data)-off < 2 {
			return nil, fmt.Errorf("%w: truncated column index at %d", ErrInvalidData, off)
		}
		idx := int(le.Uint16(data[off:]))
		off += 2
		if idx >= header.ColumnsLength() || !header.Columns(&col, idx) {
			return nil, fmt.Errorf("%w: column index %d out of range", ErrInvalidData, idx)
		}
		v, n, err := readValue(data[off:], col.Type())
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", ErrInvalidData, col.Name(), err)
		}
		props[string(col.Name())] = v
		off += n
	}
	return props, nil
}

// readValue decodes one value and returns the number of bytes consumed.
func readValue(data []byte, typ flattypes.ColumnType) (any, int, error) {
	le := binary.LittleEndian
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("need %d bytes, have %d", n, len(data))
		}
		return nil
	}
	switch typ {
	case flattypes.ColumnTypeBool, flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		switch typ {
		case flattypes.ColumnTypeBool:
			return data[0] != 0, 1, nil
		case flattypes.ColumnTypeByte:
			return int8(data[0]), 1, nil
		}
		return data[0], 1, nil
	case flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		if typ == flattypes.ColumnTypeShort {
			return int16(le.Uint16(data)), 2, nil
		}
		return le.Uint16(data), 2, nil
	case flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt, flattypes.ColumnTypeFloat:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		u := le.Uint32(data)
		switch typ {
		case flattypes.ColumnTypeInt:
			return int32(u), 4, nil
		case flattypes.ColumnTypeFloat:
			return math.Float32frombits(u), 4, nil
		}
		return u, 4, nil
	case flattypes.ColumnTypeLong, flattypes.ColumnTypeULong, flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		u := le.Uint64(data)
		switch typ {
		case flattypes.ColumnTypeLong:
			return int64(u), 8, nil
		case flattypes.ColumnTypeDouble:
			return math.Float64frombits(u), 8, nil
		}
		return u, 8, nil
	case flattypes.ColumnTypeString, flattypes.ColumnTypeJson, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeBinary:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		n := int(le.Uint32(data))
		if err := need(4 + n); err != nil {
			return nil, 0, err
		}
		if typ == flattypes.ColumnTypeBinary {
			return append([]byte(nil), data[4:4+n]...), 4 + n, nil
		}
		return string(data[4 : 4+n]), 4 + n, nil
	}
	return nil, 0, fmt.Errorf("unsupported column type %s", flattypes.EnumNamesColumnType[typ])
}
