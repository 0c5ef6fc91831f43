package datacontext

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/future"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// ReadEntities drains rows into Unchanged entities of table. Values are
// written silently, so the entities start clean; later tracked writes
// register them as pending. A nil cols resolves the table's columns. The
// reader is not closed.
func (c *Context) ReadEntities(ctx context.Context, table string, cols []core.Column, rows provider.RowReader) ([]*entity.Entity, error) {
	t := core.ParseTable(table)
	if cols == nil {
		err := c.withSchemaConn(ctx, func(conn *sql.Conn) error {
			var err error
			cols, err = c.prov.Columns(ctx, conn, t)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var out []*entity.Entity
	err := c.materialize(ctx, tableName(t, cols), cols, rows, true, func(e *entity.Entity) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadEntitiesAsync is the non-blocking form of ReadEntities.
func (c *Context) ReadEntitiesAsync(ctx context.Context, table string, cols []core.Column, rows provider.RowReader) *future.Future[[]*entity.Entity] {
	return future.Go(ctx, func(ctx context.Context) ([]*entity.Entity, error) {
		return c.ReadEntities(ctx, table, cols, rows)
	})
}

// materialize builds one entity per row and hands it to fn. Tracked
// entities record later writes in the pending set.
func (c *Context) materialize(ctx context.Context, table string, cols []core.Column, rows provider.RowReader, track bool, fn func(*entity.Entity) error) error {
	names := rows.ColumnNames()
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := rows.Values()
		if err != nil {
			return err
		}
		if len(values) != len(names) {
			return fmt.Errorf("row has %d values for %d columns", len(values), len(names))
		}

		e := entity.New(c.id, table, cols, entity.Unchanged)
		for i, name := range names {
			if err := e.SetSilent(name, values[i]); err != nil {
				return err
			}
		}
		if track {
			e.Attach(c.pending.Touch)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}
