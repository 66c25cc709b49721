package geopackage

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// DataType is a GeoPackage column data type.
type DataType int

const (
	DataTypeBoolean DataType = iota
	DataTypeTinyInt
	DataTypeSmallInt
	DataTypeMediumInt
	DataTypeInteger
	DataTypeFloat
	DataTypeDouble
	DataTypeReal
	DataTypeText
	DataTypeBlob
	DataTypeDate
	DataTypeDateTime
	DataTypeGeometry
)

var dataTypeNames = [...]string{
	DataTypeBoolean:   "BOOLEAN",
	DataTypeTinyInt:   "TINYINT",
	DataTypeSmallInt:  "SMALLINT",
	DataTypeMediumInt: "MEDIUMINT",
	DataTypeInteger:   "INTEGER",
	DataTypeFloat:     "FLOAT",
	DataTypeDouble:    "DOUBLE",
	DataTypeReal:      "REAL",
	DataTypeText:      "TEXT",
	DataTypeBlob:      "BLOB",
	DataTypeDate:      "DATE",
	DataTypeDateTime:  "DATETIME",
	DataTypeGeometry:  "GEOMETRY",
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// ParseDataType maps a declared SQL type name to a DataType. Aliases accepted
// by the GeoPackage standard (INT) are folded in.
func ParseDataType(s string) (DataType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "INT" {
		return DataTypeInteger, nil
	}
	for i, n := range dataTypeNames {
		if n == name {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown data type %q", ErrValidation, s)
}

// Affinity is the SQLite storage class a DataType is persisted as.
type Affinity int

const (
	AffinityInteger Affinity = iota
	AffinityReal
	AffinityText
	AffinityBlob
)

func (a Affinity) String() string {
	switch a {
	case AffinityInteger:
		return "INTEGER"
	case AffinityReal:
		return "REAL"
	case AffinityText:
		return "TEXT"
	default:
		return "BLOB"
	}
}

// Affinity returns the storage affinity of t.
//
//	BOOLEAN, TINYINT, SMALLINT, MEDIUMINT, INTEGER → INTEGER (booleans as 0/1)
//	FLOAT, DOUBLE, REAL                            → REAL
//	TEXT, DATE, DATETIME                           → TEXT (dates in ISO 8601)
//	BLOB, GEOMETRY                                 → BLOB
func (t DataType) Affinity() Affinity {
	switch t {
	case DataTypeBoolean, DataTypeTinyInt, DataTypeSmallInt, DataTypeMediumInt, DataTypeInteger:
		return AffinityInteger
	case DataTypeFloat, DataTypeDouble, DataTypeReal:
		return AffinityReal
	case DataTypeText, DataTypeDate, DataTypeDateTime:
		return AffinityText
	default:
		return AffinityBlob
	}
}

// intRange returns the inclusive bounds of integer types.
func (t DataType) intRange() (lo, hi int64) {
	switch t {
	case DataTypeBoolean:
		return 0, 1
	case DataTypeTinyInt:
		return -128, 127
	case DataTypeSmallInt:
		return -32768, 32767
	case DataTypeMediumInt:
		return -8388608, 8388607
	default:
		return -1 << 63, 1<<63 - 1
	}
}

// GeometryType is the declared geometry type of a geometry column.
type GeometryType int

const (
	GeometryTypeGeometry GeometryType = iota
	GeometryTypePoint
	GeometryTypeLineString
	GeometryTypePolygon
	GeometryTypeMultiPoint
	GeometryTypeMultiLineString
	GeometryTypeMultiPolygon
	GeometryTypeGeometryCollection
)

var geometryTypeNames = [...]string{
	GeometryTypeGeometry:           "GEOMETRY",
	GeometryTypePoint:              "POINT",
	GeometryTypeLineString:         "LINESTRING",
	GeometryTypePolygon:            "POLYGON",
	GeometryTypeMultiPoint:         "MULTIPOINT",
	GeometryTypeMultiLineString:    "MULTILINESTRING",
	GeometryTypeMultiPolygon:       "MULTIPOLYGON",
	GeometryTypeGeometryCollection: "GEOMETRYCOLLECTION",
}

func (g GeometryType) String() string {
	if g < 0 || int(g) >= len(geometryTypeNames) {
		return fmt.Sprintf("GeometryType(%d)", int(g))
	}
	return geometryTypeNames[g]
}

// ParseGeometryType accepts the GeoPackage names case-insensitively.
func ParseGeometryType(s string) (GeometryType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range geometryTypeNames {
		if n == name {
			return GeometryType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown geometry type %q", ErrValidation, s)
}

// GeometryTypeOf returns the GeoPackage type of an orb geometry. Rings and
// bounds are reported as polygons, matching how WKB encodes them.
func GeometryTypeOf(g orb.Geometry) GeometryType {
	switch g.(type) {
	case orb.Point:
		return GeometryTypePoint
	case orb.LineString:
		return GeometryTypeLineString
	case orb.Polygon, orb.Ring, orb.Bound:
		return GeometryTypePolygon
	case orb.MultiPoint:
		return GeometryTypeMultiPoint
	case orb.MultiLineString:
		return GeometryTypeMultiLineString
	case orb.MultiPolygon:
		return GeometryTypeMultiPolygon
	case orb.Collection:
		return GeometryTypeGeometryCollection
	default:
		return GeometryTypeGeometry
	}
}

// Accepts reports whether a value of type v may be stored in a column
// declared as g.
func (g GeometryType) Accepts(v GeometryType) bool {
	return g == GeometryTypeGeometry || g == v
}

// Dimension says whether z or m values are allowed in a geometry column.
type Dimension int

const (
	DimensionProhibited Dimension = 0
	DimensionMandatory  Dimension = 1
	DimensionOptional   Dimension = 2
)

func (d Dimension) String() string {
	switch d {
	case DimensionProhibited:
		return "prohibited"
	case DimensionMandatory:
		return "mandatory"
	case DimensionOptional:
		return "optional"
	default:
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
}

func (d Dimension) valid() bool {
	return d >= DimensionProhibited && d <= DimensionOptional
}
