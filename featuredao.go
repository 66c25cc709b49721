package geopackage

import (
	"context"
	"database/sql"
	"iter"

	"github.com/paulmach/orb"
)

// FeatureDao is a Dao over a feature table. Writes check the geometry type
// against the column and fill in a missing envelope.
type FeatureDao struct {
	*Dao
	gc   GeometryColumns
	geom int
}

// FeatureDao returns a DAO for the registered feature table name.
func (gp *GeoPackage) FeatureDao(ctx context.Context, name string) (*FeatureDao, error) {
	gc, err := gp.Registry().GeometryColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := gp.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return newFeatureDao(gp.Dao(t), *gc)
}

func newFeatureDao(d *Dao, gc GeometryColumns) (*FeatureDao, error) {
	c, ok := d.table.GeometryColumn()
	if !ok {
		return nil, tableErrf(ErrValidation, d.table.Name(), "", nil, "not a feature table")
	}
	return &FeatureDao{Dao: d, gc: gc, geom: c.Index}, nil
}

// GeometryColumn returns the descriptor of the geometry column.
func (d *FeatureDao) GeometryColumn() Column { return d.table.columns[d.geom] }

// GeometryColumns returns the registry row for the geometry column.
func (d *FeatureDao) GeometryColumns() GeometryColumns { return d.gc }

// SRSID is the spatial reference system of stored geometries.
func (d *FeatureDao) SRSID() int32 { return d.gc.SRSID }

func (d *FeatureDao) WithTx(tx *sql.Tx) *FeatureDao {
	cp := *d
	cp.Dao = d.Dao.WithTx(tx)
	return &cp
}

// NewRow returns a feature row holding column defaults.
func (d *FeatureDao) NewRow() *FeatureRow {
	return &FeatureRow{Row: d.Dao.NewRow(), geom: d.geom, srsID: d.gc.SRSID}
}

// FeatureRow views a generic row of this table as a feature row.
func (d *FeatureDao) FeatureRow(r *Row) (*FeatureRow, error) {
	if err := d.checkRow(r); err != nil {
		return nil, err
	}
	return &FeatureRow{Row: r, geom: d.geom, srsID: d.gc.SRSID}, nil
}

// prepare rejects geometries the column does not accept and computes a
// missing envelope.
func (d *FeatureDao) prepare(r *FeatureRow) error {
	if r == nil {
		return tableErrf(ErrValidation, d.table.Name(), "", nil, "nil row")
	}
	if err := d.checkRow(r.Row); err != nil {
		return err
	}
	gd := r.GeometryData()
	if gd == nil || gd.Empty {
		return nil
	}
	col := d.GeometryColumn()
	g, err := gd.Geometry()
	if err != nil {
		return tableErrf(ErrFormat, d.table.Name(), col.Name, err, "")
	}
	if gt := GeometryTypeOf(g); !col.GeometryType.Accepts(gt) {
		return tableErrf(ErrType, d.table.Name(), col.Name, nil, "%s geometry in %s column", gt, col.GeometryType)
	}
	if gd.Envelope == nil {
		cp := *gd
		cp.Envelope = envelopeFromBound(g.Bound())
		r.values[d.geom] = GeometryValue(&cp)
	}
	return nil
}

// Create inserts the feature and returns its id.
func (d *FeatureDao) Create(ctx context.Context, r *FeatureRow) (int64, error) {
	if err := d.prepare(r); err != nil {
		return 0, err
	}
	return d.Dao.Create(ctx, r.Row)
}

// Read returns the feature with id.
func (d *FeatureDao) Read(ctx context.Context, id int64) (*FeatureRow, error) {
	r, err := d.Dao.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	return &FeatureRow{Row: r, geom: d.geom, srsID: d.gc.SRSID}, nil
}

// Update writes the feature back.
func (d *FeatureDao) Update(ctx context.Context, r *FeatureRow) error {
	if err := d.prepare(r); err != nil {
		return err
	}
	return d.Dao.Update(ctx, r.Row)
}

// Features yields every feature in id order.
func (d *FeatureDao) Features(ctx context.Context) iter.Seq2[*FeatureRow, error] {
	return func(yield func(*FeatureRow, error) bool) {
		for r, err := range d.Dao.QueryForAll(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&FeatureRow{Row: r, geom: d.geom, srsID: d.gc.SRSID}, nil) {
				return
			}
		}
	}
}

// Bound returns the union of the envelopes of all stored features, or
// false when none has one.
func (d *FeatureDao) Bound(ctx context.Context) (BoundingBox, bool, error) {
	var (
		box BoundingBox
		ok  bool
	)
	for r, err := range d.Features(ctx) {
		if err != nil {
			return BoundingBox{}, false, err
		}
		gd := r.GeometryData()
		if gd == nil || gd.Envelope == nil {
			continue
		}
		if !ok {
			box, ok = gd.Envelope.BoundingBox(), true
			continue
		}
		box = box.Union(gd.Envelope.BoundingBox())
	}
	return box, ok, nil
}

// FeatureRow is a Row with accessors for its geometry column.
type FeatureRow struct {
	*Row
	geom  int
	srsID int32
}

// GeometryData returns the encoded geometry, or nil when null.
func (r *FeatureRow) GeometryData() *GeometryData {
	return r.values[r.geom].Geometry()
}

// Geometry decodes the geometry. Null and empty geometries are nil.
func (r *FeatureRow) Geometry() (orb.Geometry, error) {
	gd := r.GeometryData()
	if gd == nil {
		return nil, nil
	}
	return gd.Geometry()
}

// SetGeometry encodes g in the table's SRS. A nil g clears the column.
func (r *FeatureRow) SetGeometry(g orb.Geometry) error {
	if g == nil {
		return r.SetAt(r.geom, NullValue())
	}
	gd, err := NewGeometryData(r.srsID, g)
	if err != nil {
		return tableErrf(ErrType, r.table.Name(), r.table.columns[r.geom].Name, err, "")
	}
	return r.SetAt(r.geom, GeometryValue(gd))
}

// SetGeometryData stores an already encoded geometry.
func (r *FeatureRow) SetGeometryData(gd *GeometryData) error {
	return r.SetAt(r.geom, GeometryValue(gd))
}
