// Package geopackage implements the data layer of an OGC GeoPackage: the
// system metadata tables, user feature and tile tables, a typed DAO over
// them, and the GeoPackage binary geometry encoding around orb geometries.
//
// A container is a SQLite database reached through database/sql. Each
// GeoPackage handle owns one connection; operations on it are serialized by
// that connection.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// GeoPackage container identification pragmas.
const (
	ApplicationID = 0x47504B47 // "GPKG"
	UserVersion   = 10200      // GeoPackage 1.2.0
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GeoPackage is a handle to one open container.
type GeoPackage struct {
	name string
	path string
	db   *sql.DB
	log  *slog.Logger
	opts Options
}

// Open opens or creates the container at path with the SQLite driver and
// configures it for single-connection use.
func Open(ctx context.Context, path string, opts *Options) (*GeoPackage, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("geopackage: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA application_id = %d", ApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", UserVersion),
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
	}
	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("geopackage: %s: %w", p, err)
		}
	}

	gp := New(db, opts)
	gp.path = path
	gp.name = filepath.Base(path)
	gp.log.DebugContext(ctx, "Opened container", "path", path)
	return gp, nil
}

// New wraps an already open database. The caller keeps ownership of db's
// driver configuration.
func New(db *sql.DB, opts *Options) *GeoPackage {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoPackage{db: db, log: logger, opts: *opts}
}

func (gp *GeoPackage) Name() string { return gp.name }
func (gp *GeoPackage) Path() string { return gp.path }

// DB exposes the underlying database for statements this package does not
// model.
func (gp *GeoPackage) DB() *sql.DB { return gp.db }

func (gp *GeoPackage) Close() error {
	return gp.db.Close()
}

// Registry returns the metadata registry bound to the connection.
func (gp *GeoPackage) Registry() *Registry {
	return &Registry{q: gp.db, log: gp.log}
}

// TableCreator returns the schema bootstrapper for this container.
func (gp *GeoPackage) TableCreator() *TableCreator {
	return &TableCreator{gp: gp}
}

// WithTx runs fn in a transaction. It commits when fn returns nil and rolls
// back when fn returns an error or panics.
func (gp *GeoPackage) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := gp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("geopackage: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				gp.log.WarnContext(ctx, "Rollback failed", "err", rerr)
			}
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("geopackage: commit: %w", cerr)
		}
	}()
	return fn(tx)
}

// CreateRequired creates the system tables if they are missing.
func (gp *GeoPackage) CreateRequired(ctx context.Context) error {
	return gp.TableCreator().CreateRequired(ctx)
}

// CreateFeatureTableWithGeometryColumns builds a feature table from columns
// and registers it with gc, bbox and srsID in one step.
func (gp *GeoPackage) CreateFeatureTableWithGeometryColumns(ctx context.Context, gc GeometryColumns, bbox BoundingBox, srsID int32, columns []Column) (*Table, error) {
	t, err := NewFeatureTable(gc.TableName, columns)
	if err != nil {
		return nil, tableErrf(ErrSchema, gc.TableName, "", err, "")
	}
	if err := gp.TableCreator().CreateFeatureTable(ctx, t, gc, bbox, srsID); err != nil {
		return nil, err
	}
	return t, nil
}
