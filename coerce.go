package geopackage

import (
	"math"
	"time"
	"unicode/utf8"
)

// coerce checks that v may be stored in c and returns it in the column's
// canonical kind. Lossy conversions are refused with ErrType; values over
// Max are refused with ErrConstraint.
func (c Column) coerce(table string, v Value) (Value, error) {
	if v.IsNull() {
		return v, nil
	}
	mismatch := func() (Value, error) {
		return Value{}, tableErrf(ErrType, table, c.Name, nil, "cannot store %s value %v as %s", v.kind, v, c.Type)
	}

	switch c.Type {
	case DataTypeBoolean:
		switch v.kind {
		case KindBool:
			return v, nil
		case KindInt:
			if v.i == 0 || v.i == 1 {
				return BoolValue(v.i == 1), nil
			}
		}
		return mismatch()

	case DataTypeTinyInt, DataTypeSmallInt, DataTypeMediumInt, DataTypeInteger:
		var i int64
		switch v.kind {
		case KindInt:
			i = v.i
		case KindReal:
			if v.f != math.Trunc(v.f) || math.IsInf(v.f, 0) || v.f < math.MinInt64 || v.f >= math.MaxInt64 {
				return mismatch()
			}
			i = int64(v.f)
		default:
			return mismatch()
		}
		if lo, hi := c.Type.intRange(); i < lo || i > hi {
			return Value{}, tableErrf(ErrType, table, c.Name, nil, "%d out of %s range", i, c.Type)
		}
		return IntValue(i), nil

	case DataTypeFloat, DataTypeDouble, DataTypeReal:
		switch v.kind {
		case KindReal:
			return v, nil
		case KindInt:
			return RealValue(float64(v.i)), nil
		}
		return mismatch()

	case DataTypeText:
		if v.kind != KindText {
			return mismatch()
		}
		if c.Max > 0 && utf8.RuneCountInString(v.s) > c.Max {
			return Value{}, tableErrf(ErrConstraint, table, c.Name, nil, "text length %d exceeds max %d", utf8.RuneCountInString(v.s), c.Max)
		}
		return v, nil

	case DataTypeBlob:
		if v.kind != KindBlob {
			return mismatch()
		}
		if c.Max > 0 && len(v.b) > c.Max {
			return Value{}, tableErrf(ErrConstraint, table, c.Name, nil, "blob length %d exceeds max %d", len(v.b), c.Max)
		}
		return v, nil

	case DataTypeDate, DataTypeDateTime:
		if v.kind != KindText {
			return mismatch()
		}
		t, err := parseTime(v.s)
		if err != nil {
			return Value{}, tableErrf(ErrType, table, c.Name, err, "")
		}
		return c.timeValue(table, t)

	case DataTypeGeometry:
		if v.kind != KindGeometry {
			return mismatch()
		}
		return v, nil
	}
	return mismatch()
}

// timeValue formats t in the column's layout. A DATE takes only midnight
// UTC and a DATETIME only whole milliseconds; anything else would be lost.
func (c Column) timeValue(table string, t time.Time) (Value, error) {
	u := t.UTC()
	if c.Type == DataTypeDate {
		if u.Hour() != 0 || u.Minute() != 0 || u.Second() != 0 || u.Nanosecond() != 0 {
			return Value{}, tableErrf(ErrType, table, c.Name, nil, "%s has a time of day", t.Format(time.RFC3339Nano))
		}
		return DateValue(u), nil
	}
	if u.Nanosecond()%int(time.Millisecond) != 0 {
		return Value{}, tableErrf(ErrType, table, c.Name, nil, "%s is finer than milliseconds", t.Format(time.RFC3339Nano))
	}
	return DateTimeValue(u), nil
}

// storeValue converts a coerced value to what the driver binds.
func (c Column) storeValue(table string, v Value) (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool, KindInt:
		return v.i, nil
	case KindReal:
		return v.f, nil
	case KindText:
		return v.s, nil
	case KindBlob:
		return v.b, nil
	case KindGeometry:
		b, err := v.g.MarshalBinary()
		if err != nil {
			return nil, tableErrf(ErrFormat, table, c.Name, err, "encode")
		}
		return b, nil
	}
	return nil, tableErrf(ErrType, table, c.Name, nil, "unknown value kind %s", v.kind)
}

// loadValue maps a scanned driver value back to the column's kind.
func (c Column) loadValue(table string, raw any) (Value, error) {
	if raw == nil {
		return Value{}, nil
	}
	mismatch := func() (Value, error) {
		return Value{}, tableErrf(ErrType, table, c.Name, nil, "stored %T is not a %s", raw, c.Type)
	}

	switch c.Type.Affinity() {
	case AffinityInteger:
		var i int64
		switch x := raw.(type) {
		case int64:
			i = x
		case bool:
			i = b2i(x)
		case float64:
			if x != math.Trunc(x) {
				return mismatch()
			}
			i = int64(x)
		default:
			return mismatch()
		}
		if c.Type == DataTypeBoolean {
			if i != 0 && i != 1 {
				return Value{}, tableErrf(ErrType, table, c.Name, nil, "stored %d is not a BOOLEAN", i)
			}
			return BoolValue(i == 1), nil
		}
		return IntValue(i), nil

	case AffinityReal:
		switch x := raw.(type) {
		case float64:
			return RealValue(x), nil
		case int64:
			return RealValue(float64(x)), nil
		}
		return mismatch()

	case AffinityText:
		var s string
		switch x := raw.(type) {
		case string:
			s = x
		case []byte:
			s = string(x)
		case time.Time:
			return c.timeValue(table, x)
		default:
			return mismatch()
		}
		return TextValue(s), nil
	}

	var b []byte
	switch x := raw.(type) {
	case []byte:
		b = x
	case string:
		b = []byte(x)
	default:
		return mismatch()
	}
	if c.Type != DataTypeGeometry {
		return BlobValue(b), nil
	}
	g, err := DecodeGeometryData(b)
	if err != nil {
		return Value{}, tableErrf(ErrFormat, table, c.Name, err, "decode")
	}
	return GeometryValue(g), nil
}
