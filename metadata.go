package geopackage

import "time"

// Contents data types.
const (
	ContentsFeatures = "features"
	ContentsTiles    = "tiles"
)

// SpatialReferenceSystem is a row of gpkg_spatial_ref_sys.
type SpatialReferenceSystem struct {
	SRSID                  int32  `yaml:"srs_id"`
	SRSName                string `yaml:"srs_name"`
	Organization           string `yaml:"organization"`
	OrganizationCoordsysID int32  `yaml:"organization_coordsys_id"`
	Definition             string `yaml:"definition"`
	Description            string `yaml:"description,omitempty"`
}

const wgs84Definition = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// DefaultSpatialReferenceSystems are the rows every container must hold:
// undefined cartesian (-1), undefined geographic (0) and WGS 84 (4326).
func DefaultSpatialReferenceSystems() []SpatialReferenceSystem {
	return []SpatialReferenceSystem{
		{
			SRSID:                  -1,
			SRSName:                "Undefined cartesian SRS",
			Organization:           "NONE",
			OrganizationCoordsysID: -1,
			Definition:             "undefined",
			Description:            "undefined cartesian coordinate reference system",
		},
		{
			SRSID:                  0,
			SRSName:                "Undefined geographic SRS",
			Organization:           "NONE",
			OrganizationCoordsysID: 0,
			Definition:             "undefined",
			Description:            "undefined geographic coordinate reference system",
		},
		{
			SRSID:                  4326,
			SRSName:                "WGS 84 geodetic",
			Organization:           "EPSG",
			OrganizationCoordsysID: 4326,
			Definition:             wgs84Definition,
			Description:            "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
		},
	}
}

// Contents is a row of gpkg_contents.
type Contents struct {
	TableName   string
	DataType    string
	Identifier  string
	Description string
	LastChange  time.Time
	BoundingBox *BoundingBox
	SRSID       int32
}

// GeometryColumns is a row of gpkg_geometry_columns.
type GeometryColumns struct {
	TableName        string
	ColumnName       string
	GeometryTypeName string
	SRSID            int32
	Z                Dimension
	M                Dimension
}

// NewGeometryColumns describes a feature table's geometry column with z and
// m prohibited.
func NewGeometryColumns(table, column string, geomType GeometryType, srsID int32) GeometryColumns {
	return GeometryColumns{TableName: table, ColumnName: column, GeometryTypeName: geomType.String(), SRSID: srsID}
}

// GeometryType parses GeometryTypeName.
func (g GeometryColumns) GeometryType() (GeometryType, error) {
	return ParseGeometryType(g.GeometryTypeName)
}

// TileMatrixSet is a row of gpkg_tile_matrix_set.
type TileMatrixSet struct {
	TableName   string
	SRSID       int32
	BoundingBox BoundingBox
}

// TileMatrix is a row of gpkg_tile_matrix, one per zoom level.
type TileMatrix struct {
	TableName    string
	ZoomLevel    int
	MatrixWidth  int
	MatrixHeight int
	TileWidth    int
	TileHeight   int
	PixelXSize   float64
	PixelYSize   float64
}

// NewTileMatrix derives matrix and pixel sizes for a zoom level where the
// set's extent is split into 2^zoom tiles along each axis.
func NewTileMatrix(table string, set BoundingBox, zoom, tileWidth, tileHeight int) TileMatrix {
	n := 1 << zoom
	return TileMatrix{
		TableName:    table,
		ZoomLevel:    zoom,
		MatrixWidth:  n,
		MatrixHeight: n,
		TileWidth:    tileWidth,
		TileHeight:   tileHeight,
		PixelXSize:   set.Width() / float64(n*tileWidth),
		PixelYSize:   set.Height() / float64(n*tileHeight),
	}
}
