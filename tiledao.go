package geopackage

import (
	"context"
	"database/sql"
	"iter"
	"slices"
)

// TileDao is a Dao over a tile table together with its tile matrix set and
// per-zoom matrices.
type TileDao struct {
	*Dao
	set      TileMatrixSet
	matrices []TileMatrix
}

// TileDao returns a DAO for the registered tile table name.
func (gp *GeoPackage) TileDao(ctx context.Context, name string) (*TileDao, error) {
	reg := gp.Registry()
	set, err := reg.TileMatrixSet(ctx, name)
	if err != nil {
		return nil, err
	}
	matrices, err := reg.TileMatrices(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := gp.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := checkTileColumns(t); err != nil {
		return nil, tableErrf(ErrValidation, name, "", err, "not a tile table")
	}
	slices.SortFunc(matrices, func(a, b TileMatrix) int { return a.ZoomLevel - b.ZoomLevel })
	return &TileDao{Dao: gp.Dao(t), set: *set, matrices: matrices}, nil
}

func (d *TileDao) TileMatrixSet() TileMatrixSet { return d.set }

// TileMatrices returns the matrices ordered by zoom level.
func (d *TileDao) TileMatrices() []TileMatrix { return slices.Clone(d.matrices) }

// TileMatrix returns the matrix for zoom.
func (d *TileDao) TileMatrix(zoom int) (TileMatrix, bool) {
	i, ok := slices.BinarySearchFunc(d.matrices, zoom, func(m TileMatrix, z int) int { return m.ZoomLevel - z })
	if !ok {
		return TileMatrix{}, false
	}
	return d.matrices[i], true
}

// ZoomLevels lists the zoom levels that have a matrix, ascending.
func (d *TileDao) ZoomLevels() []int {
	zs := make([]int, len(d.matrices))
	for i, m := range d.matrices {
		zs[i] = m.ZoomLevel
	}
	return zs
}

func (d *TileDao) WithTx(tx *sql.Tx) *TileDao {
	cp := *d
	cp.Dao = d.Dao.WithTx(tx)
	return &cp
}

// NewRow returns an empty tile row.
func (d *TileDao) NewRow() *TileRow {
	return &TileRow{Row: d.Dao.NewRow()}
}

// checkTile rejects tiles outside the matrix of their zoom level.
func (d *TileDao) checkTile(r *TileRow) error {
	if r == nil {
		return tableErrf(ErrValidation, d.table.Name(), "", nil, "nil row")
	}
	if err := d.checkRow(r.Row); err != nil {
		return err
	}
	zoom, col, row := r.ZoomLevel(), r.TileColumn(), r.TileRow()
	m, ok := d.TileMatrix(zoom)
	if !ok {
		return tableErrf(ErrValidation, d.table.Name(), TileColumnZoom, nil, "no tile matrix for zoom level %d", zoom)
	}
	if col < 0 || col >= m.MatrixWidth {
		return tableErrf(ErrValidation, d.table.Name(), TileColumnColumn, nil, "column %d outside 0..%d", col, m.MatrixWidth-1)
	}
	if row < 0 || row >= m.MatrixHeight {
		return tableErrf(ErrValidation, d.table.Name(), TileColumnRow, nil, "row %d outside 0..%d", row, m.MatrixHeight-1)
	}
	return nil
}

// Create inserts a tile. A tile already stored at the same zoom, column
// and row fails with ErrConstraint.
func (d *TileDao) Create(ctx context.Context, r *TileRow) (int64, error) {
	if err := d.checkTile(r); err != nil {
		return 0, err
	}
	return d.Dao.Create(ctx, r.Row)
}

func (d *TileDao) Read(ctx context.Context, id int64) (*TileRow, error) {
	r, err := d.Dao.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TileRow{Row: r}, nil
}

func (d *TileDao) Update(ctx context.Context, r *TileRow) error {
	if err := d.checkTile(r); err != nil {
		return err
	}
	return d.Dao.Update(ctx, r.Row)
}

// QueryForTile returns the tile at column, row and zoom.
func (d *TileDao) QueryForTile(ctx context.Context, column, row, zoom int) (*TileRow, error) {
	where := quoteIdent(TileColumnZoom) + " = ? AND " + quoteIdent(TileColumnColumn) + " = ? AND " + quoteIdent(TileColumnRow) + " = ?"
	for r, err := range d.query(ctx, where, []any{zoom, column, row}) {
		if err != nil {
			return nil, err
		}
		return &TileRow{Row: r}, nil
	}
	return nil, tableErrf(ErrNotFound, d.table.Name(), "", nil, "no tile at zoom %d column %d row %d", zoom, column, row)
}

// QueryForZoom yields the tiles of one zoom level.
func (d *TileDao) QueryForZoom(ctx context.Context, zoom int) iter.Seq2[*TileRow, error] {
	seq := d.query(ctx, quoteIdent(TileColumnZoom)+" = ?", []any{zoom})
	return func(yield func(*TileRow, error) bool) {
		for r, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&TileRow{Row: r}, nil) {
				return
			}
		}
	}
}

// CountAtZoom returns the number of tiles stored at zoom.
func (d *TileDao) CountAtZoom(ctx context.Context, zoom int) (int64, error) {
	return d.count(ctx, " WHERE "+quoteIdent(TileColumnZoom)+" = ?", []any{zoom})
}

// TileRow is a Row of a tile table.
type TileRow struct {
	*Row
}

func (r *TileRow) intAt(column string) int {
	i, _ := r.Value(column).Int()
	return int(i)
}

func (r *TileRow) ZoomLevel() int  { return r.intAt(TileColumnZoom) }
func (r *TileRow) TileColumn() int { return r.intAt(TileColumnColumn) }
func (r *TileRow) TileRow() int    { return r.intAt(TileColumnRow) }

// TileData returns the encoded image bytes.
func (r *TileRow) TileData() []byte {
	b, _ := r.Value(TileColumnData).Blob()
	return b
}

func (r *TileRow) SetZoomLevel(zoom int) error {
	return r.Set(TileColumnZoom, IntValue(int64(zoom)))
}

func (r *TileRow) SetTileColumn(column int) error {
	return r.Set(TileColumnColumn, IntValue(int64(column)))
}

func (r *TileRow) SetTileRow(row int) error {
	return r.Set(TileColumnRow, IntValue(int64(row)))
}

func (r *TileRow) SetTileData(data []byte) error {
	return r.Set(TileColumnData, BlobValue(data))
}
