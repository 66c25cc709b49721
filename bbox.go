package geopackage

import (
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox is an immutable 2D extent. Argument order follows the
// GeoPackage convention of min/max per axis.
type BoundingBox struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// NewBoundingBox returns the box spanning [minX, maxX] x [minY, maxY].
func NewBoundingBox(minX, maxX, minY, maxY float64) BoundingBox {
	return BoundingBox{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

// WorldBoundingBox covers the full WGS 84 range.
func WorldBoundingBox() BoundingBox {
	return NewBoundingBox(-180, 180, -90, 90)
}

// BoundingBoxFromBound converts an orb.Bound.
func BoundingBoxFromBound(b orb.Bound) BoundingBox {
	return NewBoundingBox(b.Min[0], b.Max[0], b.Min[1], b.Max[1])
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// IsValid reports whether min <= max on both axes and no bound is NaN.
func (b BoundingBox) IsValid() bool {
	for _, v := range [...]float64{b.MinX, b.MaxX, b.MinY, b.MaxY} {
		if math.IsNaN(v) {
			return false
		}
	}
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Contains reports whether the point lies inside or on the edge of b.
func (b BoundingBox) Contains(p orb.Point) bool {
	return p[0] >= b.MinX && p[0] <= b.MaxX && p[1] >= b.MinY && p[1] <= b.MaxY
}

// Width and Height return the extent along each axis.
func (b BoundingBox) Width() float64  { return b.MaxX - b.MinX }
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }
