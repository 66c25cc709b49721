package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// TableCreator issues DDL for system and user tables and registers user
// tables in the metadata registry. Each user table is created and
// registered in a single transaction.
type TableCreator struct {
	gp *GeoPackage
}

// CreateRequired creates any missing system table and seeds the default
// spatial reference systems plus those listed in the options. Existing
// tables and rows are left untouched, so it is safe to call repeatedly.
func (tc *TableCreator) CreateRequired(ctx context.Context) error {
	return tc.gp.WithTx(ctx, func(tx *sql.Tx) error {
		for _, st := range systemTableDDL {
			if _, err := tx.ExecContext(ctx, st.sql); err != nil {
				return tableErrf(ErrSchema, st.name, "", err, "create")
			}
		}
		reg := tc.gp.Registry().WithTx(tx)
		srss := append(DefaultSpatialReferenceSystems(), tc.gp.opts.SpatialReferenceSystems...)
		for _, srs := range srss {
			if err := reg.ensureSpatialReferenceSystem(ctx, srs); err != nil {
				return err
			}
		}
		tc.gp.log.DebugContext(ctx, "Created required tables", "srs_count", len(srss))
		return nil
	})
}

// CreateFeatureTable creates table and registers it as features with its
// geometry column. gc.SRSID defaults to srsID when unset. Nothing is left
// behind on failure.
func (tc *TableCreator) CreateFeatureTable(ctx context.Context, table *Table, gc GeometryColumns, bbox BoundingBox, srsID int32) error {
	if err := tc.checkDescriptor(table); err != nil {
		return err
	}
	geom, ok := table.GeometryColumn()
	if !ok {
		return tableErrf(ErrSchema, table.Name(), "", ErrValidation, "feature table needs a geometry column")
	}
	if gc.TableName == "" {
		gc.TableName = table.Name()
	}
	if gc.ColumnName == "" {
		gc.ColumnName = geom.Name
	}
	if gc.GeometryTypeName == "" {
		gc.GeometryTypeName = geom.GeometryType.String()
	}
	if gc.SRSID == 0 {
		gc.SRSID = srsID
	}
	if gc.TableName != table.Name() || !strings.EqualFold(gc.ColumnName, geom.Name) {
		return tableErrf(ErrValidation, table.Name(), gc.ColumnName, nil, "geometry columns do not match geometry column %q", geom.Name)
	}
	if gt, err := gc.GeometryType(); err == nil && gt != geom.GeometryType {
		return tableErrf(ErrValidation, table.Name(), gc.ColumnName, nil, "geometry type %s does not match column type %s", gt, geom.GeometryType)
	}

	contents := Contents{
		TableName:   table.Name(),
		DataType:    ContentsFeatures,
		Identifier:  table.Name(),
		BoundingBox: &bbox,
		SRSID:       srsID,
	}
	return tc.create(ctx, table, func(reg *Registry) error {
		return reg.RegisterFeatureTable(ctx, contents, gc)
	})
}

// CreateTileTable creates a tile table and registers it as tiles with its
// tile matrix set and matrices. Nothing is left behind on failure.
func (tc *TableCreator) CreateTileTable(ctx context.Context, table *Table, set TileMatrixSet, matrices []TileMatrix, srsID int32) error {
	if err := tc.checkDescriptor(table); err != nil {
		return err
	}
	if err := checkTileColumns(table); err != nil {
		return tableErrf(ErrSchema, table.Name(), "", err, "")
	}
	if set.TableName == "" {
		set.TableName = table.Name()
	}
	if set.SRSID == 0 {
		set.SRSID = srsID
	}
	bbox := set.BoundingBox
	contents := Contents{
		TableName:   table.Name(),
		DataType:    ContentsTiles,
		Identifier:  table.Name(),
		BoundingBox: &bbox,
		SRSID:       srsID,
	}
	return tc.create(ctx, table, func(reg *Registry) error {
		return reg.RegisterTileTable(ctx, contents, set, matrices)
	})
}

// checkDescriptor re-validates a descriptor that may have been assembled by
// hand rather than through NewTable.
func (tc *TableCreator) checkDescriptor(table *Table) error {
	if table == nil {
		return tableErrf(ErrSchema, "", "", ErrValidation, "nil table")
	}
	if _, err := NewTable(table.Name(), table.columns); err != nil {
		return tableErrf(ErrSchema, table.Name(), "", err, "")
	}
	return nil
}

func (tc *TableCreator) create(ctx context.Context, table *Table, register func(reg *Registry) error) error {
	ddl, err := createTableSQL(table)
	if err != nil {
		return err
	}
	err = tc.gp.WithTx(ctx, func(tx *sql.Tx) error {
		reg := tc.gp.Registry().WithTx(tx)
		// Check the name first so a duplicate is reported as a registry
		// conflict, not as a DDL failure.
		if _, err := reg.Contents(ctx, table.Name()); err == nil {
			return tableErrf(ErrValidation, table.Name(), "", nil, "tableName already registered")
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return tableErrf(ErrSchema, table.Name(), "", err, "create")
		}
		return register(reg)
	})
	if err != nil {
		return err
	}
	tc.gp.log.InfoContext(ctx, "Created table", "table", table.Name(), "columns", table.ColumnCount())
	return nil
}
