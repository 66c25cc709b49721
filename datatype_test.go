package geopackage

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in   string
		want DataType
	}{
		{"BOOLEAN", DataTypeBoolean},
		{"int", DataTypeInteger},
		{" Integer ", DataTypeInteger},
		{"mediumint", DataTypeMediumInt},
		{"DOUBLE", DataTypeDouble},
		{"datetime", DataTypeDateTime},
		{"BLOB", DataTypeBlob},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataType(tt.in)
			if err != nil {
				t.Fatalf("ParseDataType(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := ParseDataType("VARCHAR"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestDataType_Affinity(t *testing.T) {
	tests := []struct {
		typ  DataType
		want Affinity
	}{
		{DataTypeBoolean, AffinityInteger},
		{DataTypeTinyInt, AffinityInteger},
		{DataTypeFloat, AffinityReal},
		{DataTypeText, AffinityText},
		{DataTypeDate, AffinityText},
		{DataTypeBlob, AffinityBlob},
		{DataTypeGeometry, AffinityBlob},
	}
	for _, tt := range tests {
		if got := tt.typ.Affinity(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.typ, tt.want, got)
		}
	}
}

func TestGeometryTypeOf(t *testing.T) {
	tests := []struct {
		geom orb.Geometry
		want GeometryType
	}{
		{orb.Point{1, 2}, GeometryTypePoint},
		{orb.LineString{{0, 0}, {1, 1}}, GeometryTypeLineString},
		{orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, GeometryTypePolygon},
		{orb.MultiPoint{{0, 0}}, GeometryTypeMultiPoint},
		{orb.MultiLineString{{{0, 0}, {1, 1}}}, GeometryTypeMultiLineString},
		{orb.MultiPolygon{}, GeometryTypeMultiPolygon},
		{orb.Collection{orb.Point{1, 1}}, GeometryTypeGeometryCollection},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := GeometryTypeOf(tt.geom); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestGeometryType_Accepts(t *testing.T) {
	if !GeometryTypeGeometry.Accepts(GeometryTypePolygon) {
		t.Error("GEOMETRY should accept POLYGON")
	}
	if !GeometryTypePoint.Accepts(GeometryTypePoint) {
		t.Error("POINT should accept POINT")
	}
	if GeometryTypePoint.Accepts(GeometryTypeMultiPoint) {
		t.Error("POINT should not accept MULTIPOINT")
	}

	gt, err := ParseGeometryType("multipolygon")
	if err != nil || gt != GeometryTypeMultiPolygon {
		t.Errorf("expected MULTIPOLYGON, got %s, %v", gt, err)
	}
}
