package flatgeobuf

import (
	"fmt"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Reader provides read access to a FlatGeobuf file.
type Reader struct {
	fgb *flatgeobuf.FlatGeoBuf
}

// NewReader creates a reader from a file path.
// The file is memory-mapped.
func NewReader(path string) (*Reader, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, err
	}
	return &Reader{fgb: fgb}, nil
}

// NewReaderFromData creates a reader from byte data.
func NewReaderFromData(data []byte) (*Reader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Reader{fgb: fgb}, nil
}

// Header returns metadata about the FlatGeobuf file.
func (r *Reader) Header() *Header {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}

	if h.EnvelopeLength() >= 4 {
		header.Envelope = orb.Bound{
			Min: orb.Point{h.Envelope(0), h.Envelope(1)},
			Max: orb.Point{h.Envelope(2), h.Envelope(3)},
		}
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Org:         string(crs.Org()),
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
		}
	}

	if n := h.ColumnsLength(); n > 0 {
		header.Columns = make([]ColumnInfo, 0, n)
		var col flattypes.Column
		for i := 0; i < n; i++ {
			if h.Columns(&col, i) {
				header.Columns = append(header.Columns, ColumnInfo{
					Name:        string(col.Name()),
					Type:        flattypes.EnumNamesColumnType[col.Type()],
					Title:       string(col.Title()),
					Description: string(col.Description()),
					Nullable:    col.Nullable(),
				})
			}
		}
	}
	return header
}

// ReadAll reads all features as a FeatureCollection. Features are reached
// through the spatial index, so a non-empty file without one returns
// ErrNoIndex.
func (r *Reader) ReadAll() (*geojson.FeatureCollection, error) {
	h := r.fgb.Header()
	if h.FeaturesCount() == 0 {
		return geojson.NewFeatureCollection(), nil
	}
	if h.IndexNodeSize() == 0 || h.EnvelopeLength() < 4 {
		return nil, ErrNoIndex
	}
	return r.search(h, h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
}

// Search returns the features whose bounding boxes intersect bounds.
func (r *Reader) Search(bounds orb.Bound) (*geojson.FeatureCollection, error) {
	h := r.fgb.Header()
	if h.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	return r.search(h, bounds.Min[0], bounds.Min[1], bounds.Max[0], bounds.Max[1])
}

func (r *Reader) search(h *flattypes.Header, minX, minY, maxX, maxY float64) (*geojson.FeatureCollection, error) {
	features, err := r.fgb.Search(minX, minY, maxX, maxY)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, fgbFeature := range features {
		feature, err := convertFeature(fgbFeature, h)
		if err != nil {
			return nil, err
		}
		if feature != nil {
			fc.Append(feature)
		}
	}
	return fc, nil
}

// Close releases the reader's reference to the file data.
func (r *Reader) Close() error {
	r.fgb = nil
	return nil
}

// convertFeature converts a FlatGeobuf feature to a geojson.Feature.
// Features without a geometry yield nil.
func convertFeature(fgbFeature *flattypes.Feature, header *flattypes.Header) (*geojson.Feature, error) {
	if fgbFeature == nil {
		return nil, nil
	}

	var geomObj flattypes.Geometry
	geom := fgbFeature.Geometry(&geomObj)
	if geom == nil {
		return nil, nil
	}
	orbGeom := geometryFromFGB(geom)
	if orbGeom == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, flattypes.EnumNamesGeometryType[geom.Type()])
	}

	feature := geojson.NewFeature(orbGeom)
	if n := fgbFeature.PropertiesLength(); n > 0 && header.ColumnsLength() > 0 {
		data := make([]byte, n)
		for i := 0; i < n; i++ {
			data[i] = byte(fgbFeature.Properties(i))
		}
		props, err := decodeProperties(data, header)
		if err != nil {
			return nil, err
		}
		feature.Properties = props
	}
	return feature, nil
}
