package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// Dao provides typed CRUD over one user table. Each call is a single
// statement and so its own implicit transaction, unless the Dao was bound
// to a caller transaction with WithTx.
//
// Query sequences read the table in primary key pages and hold no
// connection between pages, so a loop body may call back into the Dao.
type Dao struct {
	q     querier
	table *Table
	log   *slog.Logger

	selectSQL string
}

// Dao returns a DAO bound to table.
func (gp *GeoPackage) Dao(table *Table) *Dao {
	names := make([]string, table.ColumnCount())
	for i, c := range table.columns {
		names[i] = quoteIdent(c.Name)
	}
	return &Dao{
		q:         gp.db,
		table:     table,
		log:       gp.log.With("table", table.Name()),
		selectSQL: "SELECT " + strings.Join(names, ", ") + " FROM " + quoteIdent(table.Name()),
	}
}

// DaoForTable reads the descriptor of an existing table and returns a DAO
// bound to it.
func (gp *GeoPackage) DaoForTable(ctx context.Context, name string) (*Dao, error) {
	t, err := gp.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return gp.Dao(t), nil
}

func (d *Dao) Table() *Table { return d.table }

// WithTx returns a copy of d whose statements run on tx.
func (d *Dao) WithTx(tx *sql.Tx) *Dao {
	cp := *d
	cp.q = tx
	return &cp
}

// NewRow returns a row holding each column's default, or null.
func (d *Dao) NewRow() *Row {
	r := newRow(d.table)
	for i, c := range d.table.columns {
		r.values[i] = c.Default
	}
	return r
}

func (d *Dao) checkRow(row *Row) error {
	if row == nil || row.table == nil {
		return tableErrf(ErrValidation, d.table.Name(), "", nil, "nil row")
	}
	if row.table == d.table {
		return nil
	}
	if row.table.Name() != d.table.Name() {
		return tableErrf(ErrValidation, d.table.Name(), "", nil, "row belongs to table %q", row.table.Name())
	}
	if !sameColumns(row.table, d.table) {
		return tableErrf(ErrValidation, d.table.Name(), "", nil, "row has a different column layout")
	}
	return nil
}

// sameColumns reports whether a and b declare the same columns in the same
// order.
func sameColumns(a, b *Table) bool {
	if len(a.columns) != len(b.columns) {
		return false
	}
	for i, c := range a.columns {
		o := b.columns[i]
		if !strings.EqualFold(c.Name, o.Name) || c.Type != o.Type || c.PrimaryKey != o.PrimaryKey {
			return false
		}
	}
	return true
}

// bindValue coerces and converts a value for the driver, enforcing NOT NULL.
func (d *Dao) bindValue(c Column, v Value) (any, error) {
	if v.IsNull() {
		if c.NotNull {
			return nil, tableErrf(ErrConstraint, d.table.Name(), c.Name, nil, "not null")
		}
		return nil, nil
	}
	cv, err := c.coerce(d.table.Name(), v)
	if err != nil {
		return nil, err
	}
	return c.storeValue(d.table.Name(), cv)
}

// Create inserts row and returns its primary key. A null primary key is
// assigned by the store; an explicit one that is taken fails with
// ErrConstraint.
func (d *Dao) Create(ctx context.Context, row *Row) (int64, error) {
	if err := d.checkRow(row); err != nil {
		return 0, err
	}
	var (
		cols   []string
		marks  []string
		params []any
	)
	for i, c := range d.table.columns {
		v := row.values[i]
		if c.PrimaryKey && v.IsNull() {
			continue
		}
		p, err := d.bindValue(c, v)
		if err != nil {
			return 0, err
		}
		cols = append(cols, quoteIdent(c.Name))
		marks = append(marks, "?")
		params = append(params, p)
	}

	var stmt string
	if len(cols) == 0 {
		stmt = "INSERT INTO " + quoteIdent(d.table.Name()) + " DEFAULT VALUES"
	} else {
		stmt = "INSERT INTO " + quoteIdent(d.table.Name()) + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	}
	res, err := d.q.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, classifyStoreError(d.table.Name(), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classifyStoreError(d.table.Name(), err)
	}
	row.SetID(id)
	row.key = &id
	d.log.DebugContext(ctx, "Created row", "id", id)
	return id, nil
}

// Read returns the row with primary key id.
func (d *Dao) Read(ctx context.Context, id int64) (*Row, error) {
	pk := quoteIdent(d.table.PrimaryKey().Name)
	row, err := d.scanRow(d.q.QueryRowContext(ctx, d.selectSQL+" WHERE "+pk+" = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tableErrf(ErrNotFound, d.table.Name(), "", nil, "no row with id %d", id)
	}
	return row, err
}

// Update writes every column of row. The primary key must be set, must
// exist, and must be the one the row was read or created with.
func (d *Dao) Update(ctx context.Context, row *Row) error {
	if err := d.checkRow(row); err != nil {
		return err
	}
	id, ok := row.ID()
	if !ok {
		return tableErrf(ErrNotFound, d.table.Name(), "", nil, "row has no primary key")
	}
	if row.key != nil && *row.key != id {
		return tableErrf(ErrConstraint, d.table.Name(), d.table.PrimaryKey().Name, nil, "primary key is immutable, %d changed to %d", *row.key, id)
	}

	var (
		sets   []string
		params []any
	)
	for i, c := range d.table.columns {
		if c.PrimaryKey {
			continue
		}
		p, err := d.bindValue(c, row.values[i])
		if err != nil {
			return err
		}
		sets = append(sets, quoteIdent(c.Name)+" = ?")
		params = append(params, p)
	}
	pk := quoteIdent(d.table.PrimaryKey().Name)
	var stmt string
	if len(sets) == 0 {
		stmt = "UPDATE " + quoteIdent(d.table.Name()) + " SET " + pk + " = " + pk + " WHERE " + pk + " = ?"
	} else {
		stmt = "UPDATE " + quoteIdent(d.table.Name()) + " SET " + strings.Join(sets, ", ") + " WHERE " + pk + " = ?"
	}
	res, err := d.q.ExecContext(ctx, stmt, append(params, id)...)
	if err != nil {
		return classifyStoreError(d.table.Name(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classifyStoreError(d.table.Name(), err)
	}
	if n == 0 {
		return tableErrf(ErrNotFound, d.table.Name(), "", nil, "no row with id %d", id)
	}
	row.key = &id
	d.log.DebugContext(ctx, "Updated row", "id", id)
	return nil
}

// Delete removes the row with primary key id and reports whether it existed.
func (d *Dao) Delete(ctx context.Context, id int64) (bool, error) {
	pk := quoteIdent(d.table.PrimaryKey().Name)
	res, err := d.q.ExecContext(ctx, "DELETE FROM "+quoteIdent(d.table.Name())+" WHERE "+pk+" = ?", id)
	if err != nil {
		return false, classifyStoreError(d.table.Name(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classifyStoreError(d.table.Name(), err)
	}
	if n > 0 {
		d.log.DebugContext(ctx, "Deleted row", "id", id)
	}
	return n > 0, nil
}

// QueryForAll yields every row in primary key order. Each call starts a new
// query over the current table contents. Iteration stops at the first error.
func (d *Dao) QueryForAll(ctx context.Context) iter.Seq2[*Row, error] {
	return d.query(ctx, "", nil)
}

// QueryForEq yields the rows whose column equals v.
func (d *Dao) QueryForEq(ctx context.Context, column string, v Value) iter.Seq2[*Row, error] {
	c, ok := d.table.Column(column)
	if !ok {
		return func(yield func(*Row, error) bool) {
			yield(nil, tableErrf(ErrValidation, d.table.Name(), column, nil, "no such column"))
		}
	}
	if v.IsNull() {
		return d.query(ctx, quoteIdent(c.Name)+" IS NULL", nil)
	}
	cv, err := c.coerce(d.table.Name(), v)
	if err == nil {
		var p any
		if p, err = c.storeValue(d.table.Name(), cv); err == nil {
			return d.query(ctx, quoteIdent(c.Name)+" = ?", []any{p})
		}
	}
	return func(yield func(*Row, error) bool) { yield(nil, err) }
}

// queryPageSize is the number of rows read per statement by query.
const queryPageSize = 256

// query yields the rows matching cond in primary key order. Rows are read
// a page at a time and each page's statement is closed before its rows are
// yielded. Rows inserted during iteration with a higher key are visited.
func (d *Dao) query(ctx context.Context, cond string, args []any) iter.Seq2[*Row, error] {
	pk := quoteIdent(d.table.PrimaryKey().Name)
	tail := " ORDER BY " + pk + " LIMIT " + strconv.Itoa(queryPageSize)
	return func(yield func(*Row, error) bool) {
		where, pageArgs := cond, args
		for {
			stmt := d.selectSQL
			if where != "" {
				stmt += " WHERE " + where
			}
			page, err := d.page(ctx, stmt+tail, pageArgs)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range page {
				if !yield(row, nil) {
					return
				}
			}
			if len(page) < queryPageSize {
				return
			}
			last, _ := page[len(page)-1].ID()
			where = pk + " > ?"
			if cond != "" {
				where = "(" + cond + ") AND " + where
			}
			pageArgs = append(slices.Clip(args), last)
		}
	}
}

// page runs one SELECT to completion and returns its rows.
func (d *Dao) page(ctx context.Context, stmt string, args []any) ([]*Row, error) {
	rows, err := d.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classifyStoreError(d.table.Name(), err)
	}
	defer rows.Close()
	var out []*Row
	for rows.Next() {
		row, err := d.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(d.table.Name(), err)
	}
	return out, nil
}

// Count returns the number of rows in the table.
func (d *Dao) Count(ctx context.Context) (int64, error) {
	return d.count(ctx, "", nil)
}

func (d *Dao) count(ctx context.Context, where string, args []any) (int64, error) {
	var n int64
	err := d.q.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(d.table.Name())+where, args...).Scan(&n)
	if err != nil {
		return 0, classifyStoreError(d.table.Name(), err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (d *Dao) scanRow(s scanner) (*Row, error) {
	raw := make([]any, d.table.ColumnCount())
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.Scan(ptrs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, classifyStoreError(d.table.Name(), err)
	}
	row := newRow(d.table)
	for i, c := range d.table.columns {
		v, err := c.loadValue(d.table.Name(), raw[i])
		if err != nil {
			return nil, err
		}
		row.values[i] = v
	}
	if id, ok := row.ID(); ok {
		row.key = &id
	}
	return row, nil
}
