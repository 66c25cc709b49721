package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Registry owns the rows of the five system tables and enforces the
// cross-table invariants between them. Registrations fail with
// ErrValidation before writing anything when an invariant does not hold.
type Registry struct {
	q   querier
	log *slog.Logger
}

// WithTx returns a registry whose statements run on tx.
func (r *Registry) WithTx(tx *sql.Tx) *Registry {
	return &Registry{q: tx, log: r.log}
}

// atomic runs fn in a transaction unless the registry is already bound to
// one, in which case the caller owns commit and rollback.
func (r *Registry) atomic(ctx context.Context, fn func(q querier) error) (err error) {
	db, ok := r.q.(*sql.DB)
	if !ok {
		return fn(r.q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("geopackage: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("geopackage: commit: %w", cerr)
		}
	}()
	return fn(tx)
}

func (s SpatialReferenceSystem) validate() error {
	switch {
	case s.SRSName == "":
		return tableErrf(ErrValidation, TableSpatialRefSys, "srs_name", nil, "srs %d has no name", s.SRSID)
	case s.Organization == "":
		return tableErrf(ErrValidation, TableSpatialRefSys, "organization", nil, "srs %d has no organization", s.SRSID)
	case s.Definition == "":
		return tableErrf(ErrValidation, TableSpatialRefSys, "definition", nil, "srs %d has no definition", s.SRSID)
	}
	return nil
}

// RegisterSpatialReferenceSystem inserts srs. Its id must not be taken.
func (r *Registry) RegisterSpatialReferenceSystem(ctx context.Context, srs SpatialReferenceSystem) error {
	if err := srs.validate(); err != nil {
		return err
	}
	return r.atomic(ctx, func(q querier) error {
		exists, err := srsExists(ctx, q, srs.SRSID)
		if err != nil {
			return err
		}
		if exists {
			return tableErrf(ErrValidation, TableSpatialRefSys, "", nil, "srs_id %d already registered", srs.SRSID)
		}
		if err := insertSRS(ctx, q, "INSERT", srs); err != nil {
			return err
		}
		r.log.DebugContext(ctx, "Registered spatial reference system", "srs_id", srs.SRSID, "name", srs.SRSName)
		return nil
	})
}

// ensureSpatialReferenceSystem inserts srs unless its id already exists.
func (r *Registry) ensureSpatialReferenceSystem(ctx context.Context, srs SpatialReferenceSystem) error {
	if err := srs.validate(); err != nil {
		return err
	}
	return insertSRS(ctx, r.q, "INSERT OR IGNORE", srs)
}

func insertSRS(ctx context.Context, q querier, verb string, srs SpatialReferenceSystem) error {
	_, err := q.ExecContext(ctx, verb+` INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		srs.SRSName, srs.SRSID, srs.Organization, srs.OrganizationCoordsysID, srs.Definition, nullString(srs.Description))
	return classifyStoreError(TableSpatialRefSys, err)
}

// SpatialReferenceSystem looks up srsID.
func (r *Registry) SpatialReferenceSystem(ctx context.Context, srsID int32) (*SpatialReferenceSystem, error) {
	var srs SpatialReferenceSystem
	var desc sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT srs_name, srs_id, organization, organization_coordsys_id, definition, description
		FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID).
		Scan(&srs.SRSName, &srs.SRSID, &srs.Organization, &srs.OrganizationCoordsysID, &srs.Definition, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tableErrf(ErrNotFound, TableSpatialRefSys, "", nil, "srs_id %d", srsID)
	}
	if err != nil {
		return nil, classifyStoreError(TableSpatialRefSys, err)
	}
	srs.Description = desc.String
	return &srs, nil
}

// RegisterFeatureTable records a feature table in gpkg_contents and its
// geometry column in gpkg_geometry_columns.
func (r *Registry) RegisterFeatureTable(ctx context.Context, contents Contents, gc GeometryColumns) error {
	if contents.DataType == "" {
		contents.DataType = ContentsFeatures
	}
	if contents.DataType != ContentsFeatures {
		return tableErrf(ErrValidation, contents.TableName, "", nil, "data_type %q is not %q", contents.DataType, ContentsFeatures)
	}
	if err := validateGeometryColumns(contents, gc); err != nil {
		return err
	}
	return r.atomic(ctx, func(q querier) error {
		if err := checkContents(ctx, q, contents); err != nil {
			return err
		}
		if err := requireSRS(ctx, q, gc.TableName, gc.SRSID); err != nil {
			return err
		}
		if err := insertContents(ctx, q, contents); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `INSERT INTO gpkg_geometry_columns
			(table_name, column_name, geometry_type_name, srs_id, z, m) VALUES (?, ?, ?, ?, ?, ?)`,
			gc.TableName, gc.ColumnName, gc.GeometryTypeName, gc.SRSID, int(gc.Z), int(gc.M))
		if err != nil {
			return classifyStoreError(TableGeometryColumn, err)
		}
		r.log.DebugContext(ctx, "Registered feature table", "table", contents.TableName, "column", gc.ColumnName, "srs_id", gc.SRSID)
		return nil
	})
}

func validateGeometryColumns(contents Contents, gc GeometryColumns) error {
	if gc.TableName != contents.TableName {
		return tableErrf(ErrValidation, contents.TableName, "", nil, "geometry columns describe table %q", gc.TableName)
	}
	if gc.ColumnName == "" {
		return tableErrf(ErrValidation, gc.TableName, "", nil, "geometry column name is required")
	}
	if _, err := gc.GeometryType(); err != nil {
		return tableErrf(ErrValidation, gc.TableName, gc.ColumnName, err, "")
	}
	if !gc.Z.valid() || !gc.M.valid() {
		return tableErrf(ErrValidation, gc.TableName, gc.ColumnName, nil, "invalid z/m values %d/%d", gc.Z, gc.M)
	}
	return nil
}

// RegisterTileTable records a tile table in gpkg_contents together with its
// matrix set and one matrix per zoom level.
func (r *Registry) RegisterTileTable(ctx context.Context, contents Contents, set TileMatrixSet, matrices []TileMatrix) error {
	if contents.DataType == "" {
		contents.DataType = ContentsTiles
	}
	if contents.DataType != ContentsTiles {
		return tableErrf(ErrValidation, contents.TableName, "", nil, "data_type %q is not %q", contents.DataType, ContentsTiles)
	}
	if err := validateTileMatrices(contents, set, matrices); err != nil {
		return err
	}
	return r.atomic(ctx, func(q querier) error {
		if err := checkContents(ctx, q, contents); err != nil {
			return err
		}
		if err := requireSRS(ctx, q, set.TableName, set.SRSID); err != nil {
			return err
		}
		if err := insertContents(ctx, q, contents); err != nil {
			return err
		}
		b := set.BoundingBox
		_, err := q.ExecContext(ctx, `INSERT INTO gpkg_tile_matrix_set
			(table_name, srs_id, min_x, min_y, max_x, max_y) VALUES (?, ?, ?, ?, ?, ?)`,
			set.TableName, set.SRSID, b.MinX, b.MinY, b.MaxX, b.MaxY)
		if err != nil {
			return classifyStoreError(TableTileMatrixSet, err)
		}
		for _, m := range matrices {
			_, err := q.ExecContext(ctx, `INSERT INTO gpkg_tile_matrix
				(table_name, zoom_level, matrix_width, matrix_height, tile_width, tile_height, pixel_x_size, pixel_y_size)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				m.TableName, m.ZoomLevel, m.MatrixWidth, m.MatrixHeight, m.TileWidth, m.TileHeight, m.PixelXSize, m.PixelYSize)
			if err != nil {
				return classifyStoreError(TableTileMatrix, err)
			}
		}
		r.log.DebugContext(ctx, "Registered tile table", "table", contents.TableName, "zoom_levels", len(matrices), "srs_id", set.SRSID)
		return nil
	})
}

func validateTileMatrices(contents Contents, set TileMatrixSet, matrices []TileMatrix) error {
	name := contents.TableName
	if set.TableName != name {
		return tableErrf(ErrValidation, name, "", nil, "tile matrix set describes table %q", set.TableName)
	}
	if !set.BoundingBox.IsValid() {
		return tableErrf(ErrValidation, name, "", nil, "invalid tile matrix set bounds %+v", set.BoundingBox)
	}
	if len(matrices) == 0 {
		return tableErrf(ErrValidation, name, "", nil, "tile table needs at least one tile matrix")
	}
	seen := make(map[int]bool, len(matrices))
	for _, m := range matrices {
		switch {
		case m.TableName != name:
			return tableErrf(ErrValidation, name, "", nil, "tile matrix describes table %q", m.TableName)
		case m.ZoomLevel < 0:
			return tableErrf(ErrValidation, name, "", nil, "negative zoom level %d", m.ZoomLevel)
		case seen[m.ZoomLevel]:
			return tableErrf(ErrValidation, name, "", nil, "duplicate zoom level %d", m.ZoomLevel)
		case m.MatrixWidth < 1 || m.MatrixHeight < 1 || m.TileWidth < 1 || m.TileHeight < 1:
			return tableErrf(ErrValidation, name, "", nil, "zoom level %d has non-positive dimensions", m.ZoomLevel)
		case m.PixelXSize <= 0 || m.PixelYSize <= 0:
			return tableErrf(ErrValidation, name, "", nil, "zoom level %d has non-positive pixel size", m.ZoomLevel)
		}
		seen[m.ZoomLevel] = true
	}
	return nil
}

// checkContents validates a contents row against what is already stored.
func checkContents(ctx context.Context, q querier, c Contents) error {
	if c.TableName == "" {
		return tableErrf(ErrValidation, TableContents, "table_name", nil, "table name is required")
	}
	if c.BoundingBox != nil && !c.BoundingBox.IsValid() {
		return tableErrf(ErrValidation, c.TableName, "", nil, "invalid bounding box %+v", *c.BoundingBox)
	}
	var n int
	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM gpkg_contents WHERE table_name = ?`, c.TableName).Scan(&n); err != nil {
		return classifyStoreError(TableContents, err)
	}
	if n > 0 {
		return tableErrf(ErrValidation, c.TableName, "", nil, "tableName already registered")
	}
	return requireSRS(ctx, q, c.TableName, c.SRSID)
}

func requireSRS(ctx context.Context, q querier, table string, srsID int32) error {
	ok, err := srsExists(ctx, q, srsID)
	if err != nil {
		return err
	}
	if !ok {
		return tableErrf(ErrValidation, table, "", nil, "srs_id %d is not registered", srsID)
	}
	return nil
}

func srsExists(ctx context.Context, q querier, srsID int32) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID).Scan(&n)
	if err != nil {
		return false, classifyStoreError(TableSpatialRefSys, err)
	}
	return n > 0, nil
}

func insertContents(ctx context.Context, q querier, c Contents) error {
	if c.Identifier == "" {
		c.Identifier = c.TableName
	}
	if c.LastChange.IsZero() {
		c.LastChange = time.Now()
	}
	var minX, minY, maxX, maxY sql.NullFloat64
	if b := c.BoundingBox; b != nil {
		minX = sql.NullFloat64{Float64: b.MinX, Valid: true}
		minY = sql.NullFloat64{Float64: b.MinY, Valid: true}
		maxX = sql.NullFloat64{Float64: b.MaxX, Valid: true}
		maxY = sql.NullFloat64{Float64: b.MaxY, Valid: true}
	}
	_, err := q.ExecContext(ctx, `INSERT INTO gpkg_contents
		(table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TableName, c.DataType, c.Identifier, c.Description, c.LastChange.UTC().Format(DateTimeLayout),
		minX, minY, maxX, maxY, c.SRSID)
	return classifyStoreError(TableContents, err)
}

// Contents looks up the gpkg_contents row of table.
func (r *Registry) Contents(ctx context.Context, table string) (*Contents, error) {
	var (
		c                      Contents
		identifier, desc       sql.NullString
		lastChange             sqlTime
		minX, minY, maxX, maxY sql.NullFloat64
		srsID                  sql.NullInt32
	)
	err := r.q.QueryRowContext(ctx, `SELECT table_name, data_type, identifier, description, last_change,
		min_x, min_y, max_x, max_y, srs_id FROM gpkg_contents WHERE table_name = ?`, table).
		Scan(&c.TableName, &c.DataType, &identifier, &desc, &lastChange, &minX, &minY, &maxX, &maxY, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tableErrf(ErrNotFound, table, "", nil, "no contents row")
	}
	if err != nil {
		return nil, classifyStoreError(TableContents, err)
	}
	c.Identifier = identifier.String
	c.Description = desc.String
	c.LastChange = time.Time(lastChange)
	c.SRSID = srsID.Int32
	if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid {
		b := NewBoundingBox(minX.Float64, maxX.Float64, minY.Float64, maxY.Float64)
		c.BoundingBox = &b
	}
	return &c, nil
}

// ContentsTables lists the tables registered with dataType, or all tables
// when dataType is empty, ordered by name.
func (r *Registry) ContentsTables(ctx context.Context, dataType string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT table_name FROM gpkg_contents
		WHERE ? = '' OR data_type = ? ORDER BY table_name`, dataType, dataType)
	if err != nil {
		return nil, classifyStoreError(TableContents, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifyStoreError(TableContents, err)
		}
		names = append(names, name)
	}
	return names, classifyStoreError(TableContents, rows.Err())
}

// TouchContents sets last_change of table to now.
func (r *Registry) TouchContents(ctx context.Context, table string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE gpkg_contents SET last_change = ? WHERE table_name = ?`,
		time.Now().UTC().Format(DateTimeLayout), table)
	if err != nil {
		return classifyStoreError(TableContents, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tableErrf(ErrNotFound, table, "", nil, "no contents row")
	}
	return nil
}

// SetContentsBounds records box as the extent of table and sets last_change
// to now.
func (r *Registry) SetContentsBounds(ctx context.Context, table string, box BoundingBox) error {
	res, err := r.q.ExecContext(ctx, `UPDATE gpkg_contents SET min_x = ?, min_y = ?, max_x = ?, max_y = ?,
		last_change = ? WHERE table_name = ?`,
		box.MinX, box.MinY, box.MaxX, box.MaxY, time.Now().UTC().Format(DateTimeLayout), table)
	if err != nil {
		return classifyStoreError(TableContents, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tableErrf(ErrNotFound, table, "", nil, "no contents row")
	}
	return nil
}

// GeometryColumns looks up the geometry column registered for table.
func (r *Registry) GeometryColumns(ctx context.Context, table string) (*GeometryColumns, error) {
	var gc GeometryColumns
	err := r.q.QueryRowContext(ctx, `SELECT table_name, column_name, geometry_type_name, srs_id, z, m
		FROM gpkg_geometry_columns WHERE table_name = ?`, table).
		Scan(&gc.TableName, &gc.ColumnName, &gc.GeometryTypeName, &gc.SRSID, &gc.Z, &gc.M)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tableErrf(ErrNotFound, table, "", nil, "no geometry columns row")
	}
	if err != nil {
		return nil, classifyStoreError(TableGeometryColumn, err)
	}
	return &gc, nil
}

// TileMatrixSet looks up the tile matrix set of table.
func (r *Registry) TileMatrixSet(ctx context.Context, table string) (*TileMatrixSet, error) {
	var s TileMatrixSet
	var b BoundingBox
	err := r.q.QueryRowContext(ctx, `SELECT table_name, srs_id, min_x, min_y, max_x, max_y
		FROM gpkg_tile_matrix_set WHERE table_name = ?`, table).
		Scan(&s.TableName, &s.SRSID, &b.MinX, &b.MinY, &b.MaxX, &b.MaxY)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tableErrf(ErrNotFound, table, "", nil, "no tile matrix set")
	}
	if err != nil {
		return nil, classifyStoreError(TableTileMatrixSet, err)
	}
	s.BoundingBox = b
	return &s, nil
}

// TileMatrices returns the tile matrices of table ordered by zoom level.
func (r *Registry) TileMatrices(ctx context.Context, table string) ([]TileMatrix, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT table_name, zoom_level, matrix_width, matrix_height,
		tile_width, tile_height, pixel_x_size, pixel_y_size
		FROM gpkg_tile_matrix WHERE table_name = ? ORDER BY zoom_level`, table)
	if err != nil {
		return nil, classifyStoreError(TableTileMatrix, err)
	}
	defer rows.Close()
	var out []TileMatrix
	for rows.Next() {
		var m TileMatrix
		if err := rows.Scan(&m.TableName, &m.ZoomLevel, &m.MatrixWidth, &m.MatrixHeight,
			&m.TileWidth, &m.TileHeight, &m.PixelXSize, &m.PixelYSize); err != nil {
			return nil, classifyStoreError(TableTileMatrix, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(TableTileMatrix, err)
	}
	if len(out) == 0 {
		return nil, tableErrf(ErrNotFound, table, "", nil, "no tile matrices")
	}
	return out, nil
}

// sqlTime scans DATETIME columns, which the driver may hand back either as
// text or already parsed.
type sqlTime time.Time

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = sqlTime{}
	case time.Time:
		*t = sqlTime(v)
	case string:
		p, err := parseTime(v)
		if err != nil {
			return err
		}
		*t = sqlTime(p)
	case []byte:
		return t.Scan(string(v))
	default:
		return fmt.Errorf("geopackage: cannot scan %T as time", src)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
