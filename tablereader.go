package geopackage

import (
	"context"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var sqlTypePattern = regexp.MustCompile(`^\s*([A-Za-z]+)\s*(?:\(\s*(\d+)\s*\))?\s*$`)

// ReadTable rebuilds the descriptor of an existing user table from the
// store's schema and gpkg_geometry_columns, so DAOs can be addressed by
// table name.
func (gp *GeoPackage) ReadTable(ctx context.Context, name string) (*Table, error) {
	return readTable(ctx, gp.db, name)
}

func readTable(ctx context.Context, q querier, name string) (*Table, error) {
	var gc *GeometryColumns
	reg := &Registry{q: q}
	switch g, err := reg.GeometryColumns(ctx, name); {
	case err == nil:
		gc = g
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, classifyStoreError(name, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             *string
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, classifyStoreError(name, err)
		}
		c := Column{Index: cid, Name: colName, NotNull: notNull != 0, PrimaryKey: pk > 0}
		if err := parseColumnType(&c, colType, gc); err != nil {
			return nil, tableErrf(ErrSchema, name, colName, err, "")
		}
		if dflt != nil {
			v, err := parseDefault(c, *dflt)
			if err != nil {
				return nil, tableErrf(ErrSchema, name, colName, err, "")
			}
			c.Default = v
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(name, err)
	}
	if len(columns) == 0 {
		return nil, tableErrf(ErrNotFound, name, "", nil, "no such table")
	}

	t, err := NewTable(name, columns)
	if err != nil {
		return nil, err
	}
	if checkTileColumns(t) == nil {
		return t.withUnique(TileColumnZoom, TileColumnColumn, TileColumnRow)
	}
	return t, nil
}

func parseColumnType(c *Column, decl string, gc *GeometryColumns) error {
	if gc != nil && strings.EqualFold(gc.ColumnName, c.Name) {
		gt, err := gc.GeometryType()
		if err != nil {
			return err
		}
		c.Type, c.GeometryType, c.Z, c.M = DataTypeGeometry, gt, gc.Z, gc.M
		return nil
	}
	m := sqlTypePattern.FindStringSubmatch(decl)
	if m == nil {
		return tableErrf(ErrValidation, "", c.Name, nil, "unsupported declared type %q", decl)
	}
	if gt, err := ParseGeometryType(m[1]); err == nil {
		c.Type, c.GeometryType = DataTypeGeometry, gt
		return nil
	}
	dt, err := ParseDataType(m[1])
	if err != nil {
		return err
	}
	c.Type = dt
	if m[2] != "" {
		c.Max, _ = strconv.Atoi(m[2])
	}
	return nil
}

// parseDefault reads a dflt_value literal as written by createTableSQL.
func parseDefault(c Column, lit string) (Value, error) {
	lit = strings.TrimSpace(lit)
	switch {
	case strings.EqualFold(lit, "NULL"):
		return Value{}, nil
	case len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\'':
		return TextValue(strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")), nil
	case len(lit) >= 3 && (lit[0] == 'X' || lit[0] == 'x') && lit[1] == '\'':
		b, err := hex.DecodeString(lit[2 : len(lit)-1])
		if err != nil {
			return Value{}, err
		}
		if c.IsGeometry() {
			g, err := DecodeGeometryData(b)
			if err != nil {
				return Value{}, err
			}
			return GeometryValue(g), nil
		}
		return BlobValue(b), nil
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		if c.Type == DataTypeBoolean {
			return BoolValue(i != 0), nil
		}
		if c.Type.Affinity() == AffinityReal {
			return RealValue(float64(i)), nil
		}
		return IntValue(i), nil
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return RealValue(f), nil
	}
	// Expression defaults such as (strftime(...)) are evaluated by the store.
	return Value{}, nil
}
