// Package flatgeobuf moves GeoPackage feature tables to and from the
// FlatGeobuf format. Property columns are typed from the table's column
// declarations, so values keep their type across an export and import.
package flatgeobuf

import (
	"errors"
	"log/slog"

	"github.com/paulmach/orb"
	geopackage "github.com/tingold/orb-geopackage"
)

// Common errors returned by this package.
var (
	ErrNoFeatures      = errors.New("flatgeobuf: no features to write")
	ErrUnsupportedType = errors.New("flatgeobuf: unsupported geometry type")
	ErrInvalidData     = errors.New("flatgeobuf: invalid data")
	ErrNoIndex         = errors.New("flatgeobuf: file has no spatial index")
)

// CRS identifies the coordinate reference system written to the header.
type CRS struct {
	Org         string // defaults to EPSG
	Code        int
	Name        string
	Description string
}

// CRSFromSpatialReferenceSystem describes srs as a FlatGeobuf CRS.
func CRSFromSpatialReferenceSystem(srs *geopackage.SpatialReferenceSystem) *CRS {
	return &CRS{
		Org:         srs.Organization,
		Code:        int(srs.OrganizationCoordsysID),
		Name:        srs.SRSName,
		Description: srs.Description,
	}
}

// Options configures ExportFeatures.
type Options struct {
	Name         string // layer name; defaults to the table name
	Description  string
	IncludeIndex bool // write a packed R-tree, required by Reader.ReadAll
	CRS          *CRS // defaults to EPSG:<table srs_id> for positive ids

	Logger *slog.Logger
}

// DefaultOptions returns options with a spatial index.
func DefaultOptions() *Options {
	return &Options{IncludeIndex: true}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// ColumnInfo describes a property column in a FlatGeobuf file.
type ColumnInfo struct {
	Name        string
	Type        string // "Bool", "Int", "Long", "Double", "String", ...
	Title       string
	Description string
	Nullable    bool
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string
	Description   string
	GeometryType  string // "Point", "Polygon", "Unknown", ...
	FeaturesCount uint64
	Envelope      orb.Bound
	CRS           *CRS
	HasIndex      bool
	Columns       []ColumnInfo
}
