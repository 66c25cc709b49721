package geopackage

import (
	"fmt"
	"strconv"
	"strings"
)

// System table names.
const (
	TableSpatialRefSys  = "gpkg_spatial_ref_sys"
	TableContents       = "gpkg_contents"
	TableGeometryColumn = "gpkg_geometry_columns"
	TableTileMatrixSet  = "gpkg_tile_matrix_set"
	TableTileMatrix     = "gpkg_tile_matrix"
)

// systemTableDDL is executed in order; later tables reference earlier ones.
var systemTableDDL = []struct {
	name string
	sql  string
}{
	{TableSpatialRefSys, `CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
  srs_name TEXT NOT NULL,
  srs_id INTEGER NOT NULL PRIMARY KEY,
  organization TEXT NOT NULL,
  organization_coordsys_id INTEGER NOT NULL,
  definition TEXT NOT NULL,
  description TEXT
)`},
	{TableContents, `CREATE TABLE IF NOT EXISTS gpkg_contents (
  table_name TEXT NOT NULL PRIMARY KEY,
  data_type TEXT NOT NULL,
  identifier TEXT UNIQUE,
  description TEXT DEFAULT '',
  last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
  min_x DOUBLE,
  min_y DOUBLE,
  max_x DOUBLE,
  max_y DOUBLE,
  srs_id INTEGER,
  CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
)`},
	{TableGeometryColumn, `CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
  table_name TEXT NOT NULL,
  column_name TEXT NOT NULL,
  geometry_type_name TEXT NOT NULL,
  srs_id INTEGER NOT NULL,
  z TINYINT NOT NULL,
  m TINYINT NOT NULL,
  CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
  CONSTRAINT uk_gc_table_name UNIQUE (table_name),
  CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
  CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
)`},
	{TableTileMatrixSet, `CREATE TABLE IF NOT EXISTS gpkg_tile_matrix_set (
  table_name TEXT NOT NULL PRIMARY KEY,
  srs_id INTEGER NOT NULL,
  min_x DOUBLE NOT NULL,
  min_y DOUBLE NOT NULL,
  max_x DOUBLE NOT NULL,
  max_y DOUBLE NOT NULL,
  CONSTRAINT fk_gtms_table_name FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
  CONSTRAINT fk_gtms_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
)`},
	{TableTileMatrix, `CREATE TABLE IF NOT EXISTS gpkg_tile_matrix (
  table_name TEXT NOT NULL,
  zoom_level INTEGER NOT NULL,
  matrix_width INTEGER NOT NULL,
  matrix_height INTEGER NOT NULL,
  tile_width INTEGER NOT NULL,
  tile_height INTEGER NOT NULL,
  pixel_x_size DOUBLE NOT NULL,
  pixel_y_size DOUBLE NOT NULL,
  CONSTRAINT pk_ttm PRIMARY KEY (table_name, zoom_level),
  CONSTRAINT fk_tmm_table_name FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name)
)`},
}

// createTableSQL renders the CREATE TABLE statement for a user table.
func createTableSQL(t *Table) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(t.Name()))
	b.WriteString(" (")
	for i, c := range t.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(c.SQLType())
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY AUTOINCREMENT")
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if !c.Default.IsNull() {
			lit, err := sqlLiteral(t.Name(), c, c.Default)
			if err != nil {
				return "", err
			}
			b.WriteString(" DEFAULT ")
			b.WriteString(lit)
		}
		if c.Max > 0 {
			fmt.Fprintf(&b, " CHECK(length(%s) <= %d)", quoteIdent(c.Name), c.Max)
		}
	}
	for _, u := range t.unique {
		b.WriteString(", UNIQUE (")
		for i, name := range u {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(name))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String(), nil
}

// sqlLiteral renders a default value. Geometry defaults are written as blob
// literals of their binary encoding.
func sqlLiteral(table string, c Column, v Value) (string, error) {
	stored, err := c.storeValue(table, v)
	if err != nil {
		return "", err
	}
	switch x := stored.(type) {
	case nil:
		return "NULL", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		return quoteString(x), nil
	case []byte:
		return fmt.Sprintf("X'%X'", x), nil
	}
	return "", tableErrf(ErrSchema, table, c.Name, nil, "cannot render default %v", v)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
