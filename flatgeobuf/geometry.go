package flatgeobuf

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	geopackage "github.com/tingold/orb-geopackage"
)

// headerGeometryType maps a geometry column's declared type to the
// FlatGeobuf header type. GEOMETRY columns are mixed, which FlatGeobuf
// calls Unknown.
func headerGeometryType(gt geopackage.GeometryType) flattypes.GeometryType {
	switch gt {
	case geopackage.GeometryTypePoint:
		return flattypes.GeometryTypePoint
	case geopackage.GeometryTypeLineString:
		return flattypes.GeometryTypeLineString
	case geopackage.GeometryTypePolygon:
		return flattypes.GeometryTypePolygon
	case geopackage.GeometryTypeMultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case geopackage.GeometryTypeMultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case geopackage.GeometryTypeMultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case geopackage.GeometryTypeGeometryCollection:
		return flattypes.GeometryTypeGeometryCollection
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// geometryToFGB builds the FlatGeobuf form of geom. It returns nil for
// types FlatGeobuf cannot hold.
func geometryToFGB(geom orb.Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)
	switch v := geom.(type) {
	case orb.Point:
		g.SetType(flattypes.GeometryTypePoint)
		g.SetXY([]float64{v[0], v[1]})
	case orb.MultiPoint:
		g.SetType(flattypes.GeometryTypeMultiPoint)
		g.SetXY(appendXY(nil, v))
	case orb.LineString:
		g.SetType(flattypes.GeometryTypeLineString)
		g.SetXY(appendXY(nil, v))
	case orb.MultiLineString:
		parts := make([][]orb.Point, len(v))
		for i, ls := range v {
			parts[i] = ls
		}
		g.SetType(flattypes.GeometryTypeMultiLineString)
		setParts(g, parts)
	case orb.Ring:
		return geometryToFGB(orb.Polygon{v}, builder)
	case orb.Bound:
		return geometryToFGB(v.ToPolygon(), builder)
	case orb.Polygon:
		g.SetType(flattypes.GeometryTypePolygon)
		setParts(g, polygonRings(v))
	case orb.MultiPolygon:
		g.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			parts = append(parts, *geometryToFGB(poly, builder))
		}
		g.SetParts(parts)
	case orb.Collection:
		g.SetType(flattypes.GeometryTypeGeometryCollection)
		parts := make([]writer.Geometry, 0, len(v))
		for _, child := range v {
			if cg := geometryToFGB(child, builder); cg != nil {
				parts = append(parts, *cg)
			}
		}
		g.SetParts(parts)
	default:
		return nil
	}
	return g
}

// supported reports whether geometryToFGB can convert g.
func supported(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point, orb.MultiPoint, orb.LineString, orb.MultiLineString,
		orb.Ring, orb.Bound, orb.Polygon, orb.MultiPolygon:
		return true
	case orb.Collection:
		for _, child := range v {
			if !supported(child) {
				return false
			}
		}
		return true
	}
	return false
}

func appendXY(xy []float64, pts []orb.Point) []float64 {
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

func polygonRings(p orb.Polygon) [][]orb.Point {
	rings := make([][]orb.Point, len(p))
	for i, r := range p {
		rings[i] = r
	}
	return rings
}

// setParts flattens parts into one coordinate array with cumulative end
// offsets, counted in points.
func setParts(g *writer.Geometry, parts [][]orb.Point) {
	var (
		xy   []float64
		ends = make([]uint32, 0, len(parts))
	)
	for _, part := range parts {
		xy = appendXY(xy, part)
		ends = append(ends, uint32(len(xy)/2))
	}
	g.SetXY(xy)
	g.SetEnds(ends)
}

// geometryFromFGB converts a decoded FlatGeobuf geometry. Unknown types
// yield nil.
func geometryFromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		pts := points(g, 0, g.XyLength()/2)
		if len(pts) == 0 {
			return orb.Point{}
		}
		return pts[0]
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(points(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeLineString:
		return orb.LineString(points(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeMultiLineString:
		var mls orb.MultiLineString
		for _, part := range splitEnds(g) {
			mls = append(mls, orb.LineString(part))
		}
		return mls
	case flattypes.GeometryTypePolygon:
		return polygonFromFGB(g)
	case flattypes.GeometryTypeMultiPolygon:
		mp := make(orb.MultiPolygon, 0, g.PartsLength())
		var part flattypes.Geometry
		for i := 0; i < g.PartsLength(); i++ {
			if g.Parts(&part, i) {
				mp = append(mp, polygonFromFGB(&part))
			}
		}
		if len(mp) == 0 && g.XyLength() > 0 {
			mp = append(mp, polygonFromFGB(g))
		}
		return mp
	case flattypes.GeometryTypeGeometryCollection:
		coll := make(orb.Collection, 0, g.PartsLength())
		var part flattypes.Geometry
		for i := 0; i < g.PartsLength(); i++ {
			if g.Parts(&part, i) {
				if child := geometryFromFGB(&part); child != nil {
					coll = append(coll, child)
				}
			}
		}
		return coll
	default:
		return nil
	}
}

func polygonFromFGB(g *flattypes.Geometry) orb.Polygon {
	parts := splitEnds(g)
	poly := make(orb.Polygon, len(parts))
	for i, part := range parts {
		poly[i] = orb.Ring(part)
	}
	return poly
}

// splitEnds cuts the coordinate array at the end offsets. Without ends the
// whole array is one part.
func splitEnds(g *flattypes.Geometry) [][]orb.Point {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		if n == 0 {
			return nil
		}
		return [][]orb.Point{points(g, 0, n)}
	}
	parts := make([][]orb.Point, 0, g.EndsLength())
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := min(int(g.Ends(i)), n)
		parts = append(parts, points(g, start, end))
		start = end
	}
	return parts
}

// points reads points [start, end) of the coordinate array.
func points(g *flattypes.Geometry, start, end int) []orb.Point {
	if end <= start {
		return nil
	}
	pts := make([]orb.Point, 0, end-start)
	for i := start; i < end; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}
