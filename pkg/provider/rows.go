package provider

import (
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

// RowReader is a forward-only cursor over result rows.
type RowReader interface {
	// ColumnNames returns the result column names in row order.
	ColumnNames() []string
	Next() bool
	// Values returns the current row.
	Values() ([]any, error)
	Err() error
	Close() error
}

// SQLRowReader adapts *sql.Rows to RowReader.
type SQLRowReader struct {
	rows  *sql.Rows
	names []string
}

// NewRowReader wraps rows.
func NewRowReader(rows *sql.Rows) (*SQLRowReader, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	return &SQLRowReader{rows: rows, names: names}, nil
}

// ColumnNames implements RowReader.
func (r *SQLRowReader) ColumnNames() []string { return r.names }

// Next implements RowReader.
func (r *SQLRowReader) Next() bool { return r.rows.Next() }

// Values implements RowReader.
func (r *SQLRowReader) Values() ([]any, error) {
	return scanRow(r.rows, len(r.names))
}

// Err implements RowReader.
func (r *SQLRowReader) Err() error { return r.rows.Err() }

// Close implements RowReader.
func (r *SQLRowReader) Close() error { return r.rows.Close() }

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return values, nil
}

// RowSet is a fully buffered result set.
type RowSet struct {
	Columns []core.Column
	Rows    [][]any
}

// Len returns the number of rows.
func (s *RowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Reader returns a cursor over the buffered rows.
func (s *RowSet) Reader() RowReader {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return &rowSetReader{set: s, names: names, pos: -1}
}

type rowSetReader struct {
	set   *RowSet
	names []string
	pos   int
}

func (r *rowSetReader) ColumnNames() []string { return r.names }

func (r *rowSetReader) Next() bool {
	if r.pos+1 >= len(r.set.Rows) {
		r.pos = len(r.set.Rows)
		return false
	}
	r.pos++
	return true
}

func (r *rowSetReader) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.set.Rows) {
		return nil, fmt.Errorf("no current row")
	}
	return append([]any(nil), r.set.Rows[r.pos]...), nil
}

func (r *rowSetReader) Err() error   { return nil }
func (r *rowSetReader) Close() error { return nil }

// ResultColumns describes the columns of a driver result set. Types come
// from the driver where it reports them.
func ResultColumns(rows *sql.Rows, d *Dialect, table string) ([]core.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result column types: %w", err)
	}
	cols := make([]core.Column, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		cols[i] = core.Column{
			Table:    table,
			Name:     ct.Name(),
			Mapping:  d.Mapping(ct.DatabaseTypeName(), nil),
			Position: i + 1,
			Nullable: nullable || !ok,
		}
	}
	return cols, nil
}

// BufferRows drains rows into a RowSet. rows is not closed.
func BufferRows(rows *sql.Rows, d *Dialect, table string) (*RowSet, error) {
	cols, err := ResultColumns(rows, d, table)
	if err != nil {
		return nil, err
	}
	set := &RowSet{Columns: cols}
	for rows.Next() {
		values, err := scanRow(rows, len(cols))
		if err != nil {
			return nil, err
		}
		set.Rows = append(set.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return set, nil
}
