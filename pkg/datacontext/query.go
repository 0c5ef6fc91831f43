package datacontext

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/future"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Query is a deferred SELECT over one table. It performs no I/O until it is
// enumerated and can be enumerated any number of times.
type Query struct {
	dc      *Context
	table   core.Table
	filters []provider.Filter
	// none marks a navigation from an unset key. NULL equals nothing, so
	// the query yields no rows and never reaches the backend.
	none bool
}

// Entities returns a query over every row of table.
func (c *Context) Entities(table string) (*Query, error) {
	if strings.TrimSpace(table) == "" {
		return nil, &core.ConfigError{Subject: c.identity.Key(), Reason: "table name is empty"}
	}
	return &Query{dc: c, table: core.ParseTable(table)}, nil
}

// Related returns the rows on the other side of a relationship from src.
// With core.Children src is the parent and the query selects childTable rows
// whose childKey equals src's parentKey. With core.Parents src is the child
// and the query selects parentTable rows whose parentKey equals src's childKey.
// When the source key is nil the query is empty.
func (c *Context) Related(src *entity.Entity, parentKey, childKey, parentTable, childTable string, dir core.Direction) (*Query, error) {
	if err := c.own(src); err != nil {
		return nil, err
	}

	table, column, sourceColumn := childTable, childKey, parentKey
	if dir == core.Parents {
		table, column, sourceColumn = parentTable, parentKey, childKey
	}
	value, err := src.Get(sourceColumn)
	if err != nil {
		return nil, err
	}

	q, err := c.Entities(table)
	if err != nil {
		return nil, err
	}
	q = q.Where(column, value)
	q.none = entity.Normalize(value) == nil
	return q, nil
}

// Table returns the queried table.
func (q *Query) Table() core.Table { return q.table }

// Filters returns the equality predicates of the query.
func (q *Query) Filters() []provider.Filter {
	return append([]provider.Filter(nil), q.filters...)
}

// Where returns a copy of the query narrowed to rows where column equals
// value. A nil value matches NULL.
func (q *Query) Where(column string, value any) *Query {
	next := &Query{dc: q.dc, table: q.table, none: q.none, filters: make([]provider.Filter, len(q.filters), len(q.filters)+1)}
	copy(next.filters, q.filters)
	next.filters = append(next.filters, provider.Filter{Column: column, Value: entity.Normalize(value)})
	return next
}

// SQL returns the command text and arguments the query runs. An empty
// navigation runs nothing and returns "".
func (q *Query) SQL(ctx context.Context) (string, []any, error) {
	var (
		text string
		args []any
	)
	err := q.dc.withSchemaConn(ctx, func(conn *sql.Conn) error {
		cols, err := q.dc.prov.Columns(ctx, conn, q.table)
		if err != nil {
			return err
		}
		text, args, err = q.build(cols)
		if q.none {
			text, args = "", nil
		}
		return err
	})
	return text, args, err
}

// All runs the query and returns every entity.
func (q *Query) All(ctx context.Context) ([]*entity.Entity, error) {
	var out []*entity.Entity
	err := q.Each(ctx, func(e *entity.Entity) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AllAsync is the non-blocking form of All.
func (q *Query) AllAsync(ctx context.Context) *future.Future[[]*entity.Entity] {
	return future.Go(ctx, q.All)
}

// Each runs the query and calls fn for every entity as it is read. An error
// from fn stops the enumeration and is returned.
func (q *Query) Each(ctx context.Context, fn func(*entity.Entity) error) error {
	return q.dc.withConn(ctx, func(conn *sql.Conn) error {
		cols, err := q.dc.prov.Columns(ctx, conn, q.table)
		if err != nil {
			return err
		}
		text, args, err := q.build(cols)
		if err != nil || q.none {
			return err
		}

		rows, err := q.dc.prov.NewCommand(conn, text).Query(ctx, args...)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", q.table, err)
		}
		defer func() { _ = rows.Close() }()

		reader, err := provider.NewRowReader(rows)
		if err != nil {
			return err
		}
		return q.dc.materialize(ctx, tableName(q.table, cols), cols, reader, true, fn)
	})
}

func (q *Query) build(cols []core.Column) (string, []any, error) {
	filters := make([]provider.Filter, len(q.filters))
	for i, f := range q.filters {
		col, ok := findColumn(cols, f.Column)
		if !ok {
			return "", nil, &core.SchemaError{Table: tableName(q.table, cols), Column: f.Column}
		}
		filters[i] = provider.Filter{Column: col.Name, Value: f.Value}
	}
	text, args := q.dc.prov.SelectSQL(core.ParseTable(tableName(q.table, cols)), cols, filters)
	return text, args, nil
}

func findColumn(cols []core.Column, name string) (core.Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return core.Column{}, false
}
