package geopackage

// Standard tile table column names.
const (
	TileColumnID     = "id"
	TileColumnZoom   = "zoom_level"
	TileColumnColumn = "tile_column"
	TileColumnRow    = "tile_row"
	TileColumnData   = "tile_data"
)

// TileTableColumns returns the columns every tile pyramid table has.
func TileTableColumns() []Column {
	return []Column{
		NewPrimaryKeyColumn(0, TileColumnID),
		NewColumn(1, TileColumnZoom, DataTypeInteger, true, nil),
		NewColumn(2, TileColumnColumn, DataTypeInteger, true, nil),
		NewColumn(3, TileColumnRow, DataTypeInteger, true, nil),
		NewColumn(4, TileColumnData, DataTypeBlob, true, nil),
	}
}

// NewTileTable returns the standard tile table descriptor, optionally with
// extra columns indexed from 5, and a UNIQUE (zoom_level, tile_column,
// tile_row) constraint.
func NewTileTable(name string, extra ...Column) (*Table, error) {
	t, err := NewTable(name, append(TileTableColumns(), extra...))
	if err != nil {
		return nil, err
	}
	if err := checkTileColumns(t); err != nil {
		return nil, err
	}
	return t.withUnique(TileColumnZoom, TileColumnColumn, TileColumnRow)
}

func checkTileColumns(t *Table) error {
	for _, want := range TileTableColumns() {
		got, ok := t.Column(want.Name)
		if !ok {
			return tableErrf(ErrValidation, t.Name(), want.Name, nil, "tile table is missing column")
		}
		if got.Type != want.Type {
			return tableErrf(ErrValidation, t.Name(), want.Name, nil, "tile column must be %s, not %s", want.Type, got.Type)
		}
	}
	if _, ok := t.GeometryColumn(); ok {
		return tableErrf(ErrValidation, t.Name(), "", nil, "tile tables cannot have a geometry column")
	}
	return nil
}
