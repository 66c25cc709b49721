package flatgeobuf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb/geojson"
	geopackage "github.com/tingold/orb-geopackage"
)

// ImportFeatures inserts every feature of r into dao's table and returns the
// number of rows created. Properties fill the columns of the same name;
// properties without a column are ignored. Use a dao bound to a transaction
// to make the import atomic.
func ImportFeatures(ctx context.Context, r *Reader, dao *geopackage.FeatureDao, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	fc, err := r.ReadAll()
	if err != nil {
		return 0, err
	}

	table := dao.Table()
	n := 0
	for i, f := range fc.Features {
		row, err := featureRow(dao, f)
		if err != nil {
			return n, fmt.Errorf("import %s: feature %d: %w", table.Name(), i, err)
		}
		if _, err := dao.Create(ctx, row); err != nil {
			return n, fmt.Errorf("import %s: feature %d: %w", table.Name(), i, err)
		}
		n++
	}
	log.DebugContext(ctx, "Imported features", "table", table.Name(), "count", n)
	return n, nil
}

func featureRow(dao *geopackage.FeatureDao, f *geojson.Feature) (*geopackage.FeatureRow, error) {
	table := dao.Table()
	row := dao.NewRow()
	if err := row.SetGeometry(f.Geometry); err != nil {
		return nil, err
	}
	for name, v := range f.Properties {
		c, ok := table.Column(name)
		if !ok || c.PrimaryKey || c.IsGeometry() {
			continue
		}
		x, err := propertyValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		if err := row.SetAny(name, x); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// propertyValue narrows a decoded property to a type geopackage.ValueOf
// accepts.
func propertyValue(v any) (any, error) {
	switch x := v.(type) {
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows INTEGER", geopackage.ErrType, x)
		}
		return int64(x), nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
