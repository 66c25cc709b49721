package geopackage

import (
	"bytes"
	"fmt"
	"time"
)

// Kind identifies which member of the Value variant is set.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindText
	KindBlob
	KindGeometry
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindGeometry:
		return "geometry"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Lexical forms of DATE and DATETIME values as stored in the container.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Value is a single cell: null, bool, int64, float64, text, bytes or
// geometry. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	g    *GeometryData
}

func NullValue() Value            { return Value{} }
func BoolValue(v bool) Value      { return Value{kind: KindBool, i: b2i(v)} }
func IntValue(v int64) Value      { return Value{kind: KindInt, i: v} }
func RealValue(v float64) Value   { return Value{kind: KindReal, f: v} }
func TextValue(v string) Value    { return Value{kind: KindText, s: v} }
func BlobValue(v []byte) Value    { return Value{kind: KindBlob, b: v} }
func DateValue(t time.Time) Value { return TextValue(t.Format(DateLayout)) }

// DateTimeValue stores t in UTC with millisecond precision. ValueOf refuses
// times it would truncate.
func DateTimeValue(t time.Time) Value { return TextValue(t.UTC().Format(DateTimeLayout)) }

// GeometryValue wraps g; a nil g is null.
func GeometryValue(g *GeometryData) Value {
	if g == nil {
		return Value{}
	}
	return Value{kind: KindGeometry, g: g}
}

// ValueOf converts a native Go value. It accepts nil, bool, all integer and
// float kinds, string, []byte, time.Time (as DATETIME text), *GeometryData
// and Value itself.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return v, nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint8:
		return IntValue(int64(v)), nil
	case uint16:
		return IntValue(int64(v)), nil
	case uint32:
		return IntValue(int64(v)), nil
	case float32:
		return RealValue(float64(v)), nil
	case float64:
		return RealValue(v), nil
	case string:
		return TextValue(v), nil
	case []byte:
		return BlobValue(v), nil
	case time.Time:
		if v.Nanosecond()%int(time.Millisecond) != 0 {
			return Value{}, fmt.Errorf("%w: %s is finer than milliseconds", ErrType, v.Format(time.RFC3339Nano))
		}
		return DateTimeValue(v), nil
	case *GeometryData:
		return GeometryValue(v), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported Go type %T", ErrType, x)
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)       { return v.i != 0, v.kind == KindBool }
func (v Value) Int() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) Real() (float64, bool)    { return v.f, v.kind == KindReal }
func (v Value) Text() (string, bool)     { return v.s, v.kind == KindText }
func (v Value) Blob() ([]byte, bool)     { return v.b, v.kind == KindBlob }
func (v Value) Geometry() *GeometryData  { return v.g }
func (v Value) Time() (time.Time, error) { return parseTime(v.s) }

// Interface returns the value as a plain Go value (nil, bool, int64,
// float64, string, []byte or *GeometryData).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.i != 0
	case KindInt:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	case KindGeometry:
		return v.g
	default:
		return nil
	}
}

// Equal compares kind and content. Geometries compare by their encoding.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool, KindInt:
		return v.i == o.i
	case KindReal:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	case KindGeometry:
		return v.g.Equal(o.g)
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindText:
		return fmt.Sprintf("%q", v.s)
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.b)
	case KindGeometry:
		return fmt.Sprintf("geometry(srs=%d, %d bytes)", v.g.SRSID, len(v.g.WKB))
	default:
		return fmt.Sprint(v.Interface())
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range [...]string{DateTimeLayout, time.RFC3339Nano, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date or datetime", ErrType, s)
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
