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

// GetIndividual fetches the single row of table whose primary key equals id.
// The table must have exactly one primary-key column; otherwise a
// configuration error naming the table is returned before any row is read.
func (c *Context) GetIndividual(ctx context.Context, table string, id any) (*entity.Entity, error) {
	t := core.ParseTable(table)
	var found *entity.Entity

	err := c.withConn(ctx, func(conn *sql.Conn) error {
		cols, err := c.prov.Columns(ctx, conn, t)
		if err != nil {
			return err
		}
		name := tableName(t, cols)

		keys := core.PrimaryKeys(cols)
		if len(keys) != 1 {
			return &core.ConfigError{
				Subject: name,
				Reason:  fmt.Sprintf("individual lookup requires exactly one primary key column, found %d", len(keys)),
			}
		}

		text := c.prov.SelectByKeySQL(core.ParseTable(name), keys[0], cols)
		rows, err := c.prov.NewCommand(conn, text).Query(ctx, entity.Normalize(id))
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", name, err)
		}
		defer func() { _ = rows.Close() }()

		reader, err := provider.NewRowReader(rows)
		if err != nil {
			return err
		}
		err = c.materialize(ctx, name, cols, reader, true, func(e *entity.Entity) error {
			if found != nil {
				return fmt.Errorf("%s %s=%v: %w", name, keys[0], id, ErrMultipleRows)
			}
			found = e
			return nil
		})
		if err != nil {
			return err
		}
		if found == nil {
			return fmt.Errorf("%s %s=%v: %w", name, keys[0], id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetIndividualAsync is the non-blocking form of GetIndividual.
func (c *Context) GetIndividualAsync(ctx context.Context, table string, id any) *future.Future[*entity.Entity] {
	return future.Go(ctx, func(ctx context.Context) (*entity.Entity, error) {
		return c.GetIndividual(ctx, table, id)
	})
}
