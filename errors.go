package geopackage

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error kinds. Every error returned by this package matches exactly one of
// these through errors.Is, except for transport errors from the driver
// which are passed through wrapped.
var (
	ErrValidation = errors.New("geopackage: validation failed")
	ErrSchema     = errors.New("geopackage: schema error")
	ErrConstraint = errors.New("geopackage: constraint violation")
	ErrType       = errors.New("geopackage: type mismatch")
	ErrFormat     = errors.New("geopackage: invalid geometry format")
	ErrNotFound   = errors.New("geopackage: not found")
)

// TableError describes a failure tied to a table and, optionally, one of its
// columns.
type TableError struct {
	Kind   error
	Table  string
	Column string
	Msg    string
	Err    error
}

func tableErrf(kind error, table, column string, err error, format string, args ...any) error {
	return &TableError{Kind: kind, Table: table, Column: column, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *TableError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Kind.Error())
	if e.Table != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Table)
		if e.Column != "" {
			buf.WriteByte('.')
			buf.WriteString(e.Column)
		}
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// DataError reports a malformed binary geometry blob.
type DataError struct {
	Data []byte
	Off  int
	Msg  string
}

func dataErrf(data []byte, off int, format string, args ...any) error {
	return &DataError{Data: data, Off: off, Msg: fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return ErrFormat
}

func (e *DataError) Error() string {
	const prefixLen = 48
	n := len(e.Data)
	if n <= prefixLen {
		return fmt.Sprintf("%v: %s at offset %d: (%d) %x", ErrFormat, e.Msg, e.Off, n, e.Data)
	}
	return fmt.Sprintf("%v: %s at offset %d: (%d) %x...", ErrFormat, e.Msg, e.Off, n, e.Data[:prefixLen])
}

// classifyStoreError maps SQLite constraint failures to ErrConstraint and
// leaves everything else to the caller.
func classifyStoreError(table string, err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return tableErrf(ErrConstraint, table, "", err, "%s", constraintName(serr.Code()))
	}
	return fmt.Errorf("geopackage: %s: %w", table, err)
}

func constraintName(code int) string {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return "primary key"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return "not null"
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return "unique"
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return "check"
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return "foreign key"
	default:
		return "constraint"
	}
}
