package flatgeobuf

import (
	"context"
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	geopackage "github.com/tingold/orb-geopackage"
)

// exportedFeature is one row staged for writing.
type exportedFeature struct {
	geom  orb.Geometry
	props []byte
}

// ExportFeatures writes every feature of dao's table to w and returns the
// number of features written. Rows with a null or empty geometry are
// skipped, as FlatGeobuf features must have one.
func ExportFeatures(ctx context.Context, w io.Writer, dao *geopackage.FeatureDao, opts *Options) (int, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.logger()
	table := dao.Table()
	cols := propertyColumns(table)

	var (
		features []exportedFeature
		skipped  int
	)
	for row, err := range dao.Features(ctx) {
		if err != nil {
			return 0, err
		}
		g, err := row.Geometry()
		if err != nil {
			return 0, fmt.Errorf("export %s: %w", table.Name(), err)
		}
		if g == nil {
			skipped++
			continue
		}
		if !supported(g) {
			return 0, fmt.Errorf("export %s: %w: %T", table.Name(), ErrUnsupportedType, g)
		}
		features = append(features, exportedFeature{geom: g, props: encodeProperties(row.Row, cols)})
	}
	if len(features) == 0 {
		return 0, ErrNoFeatures
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(headerGeometryType(dao.GeometryColumn().GeometryType))

	name := opts.Name
	if name == "" {
		name = table.Name()
	}
	header.SetName(name)
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}
	if len(cols) > 0 {
		header.SetColumns(headerColumns(cols, builder))
	}

	crs := opts.CRS
	if crs == nil && dao.SRSID() > 0 {
		crs = &CRS{Code: int(dao.SRSID())}
	}
	if crs != nil {
		header.SetCrs(newCrs(crs, builder))
	}

	gen := &rowFeatureGenerator{features: features}
	if _, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w); err != nil {
		return 0, fmt.Errorf("export %s: %w", table.Name(), err)
	}

	log.DebugContext(ctx, "Exported features", "table", table.Name(), "count", len(features), "skipped", skipped, "index", opts.IncludeIndex)
	return len(features), nil
}

func newCrs(c *CRS, builder *flatbuffers.Builder) *writer.Crs {
	crs := writer.NewCrs(builder)
	org := c.Org
	if org == "" {
		org = "EPSG"
	}
	crs.SetOrg(org)
	if c.Code > 0 {
		crs.SetCode(int32(c.Code))
	}
	if c.Name != "" {
		crs.SetName(c.Name)
	}
	if c.Description != "" {
		crs.SetDescription(c.Description)
	}
	return crs
}

// rowFeatureGenerator feeds staged rows to the FlatGeobuf writer.
type rowFeatureGenerator struct {
	features []exportedFeature
	index    int
}

func (g *rowFeatureGenerator) Generate() *writer.Feature {
	for g.index < len(g.features) {
		f := g.features[g.index]
		g.index++

		builder := flatbuffers.NewBuilder(1024)
		fgbGeom := geometryToFGB(f.geom, builder)
		if fgbGeom == nil {
			continue
		}
		feature := writer.NewFeature(builder)
		feature.SetGeometry(fgbGeom)
		if len(f.props) > 0 {
			feature.SetProperties(f.props)
		}
		return feature
	}
	return nil
}
