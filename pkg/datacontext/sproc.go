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

// SprocDefinition resolves the signature of a stored procedure given as
// "name", "owner.name" or "owner.package.name".
func (c *Context) SprocDefinition(ctx context.Context, name string) (core.SprocDefinition, error) {
	var def core.SprocDefinition
	err := c.withSchemaConn(ctx, func(conn *sql.Conn) error {
		var err error
		def, err = c.prov.SprocDefinition(ctx, conn, core.ParseSprocName(name))
		return err
	})
	return def, err
}

// CallSproc runs def with positional args and maps the outcome onto one
// entity whose table is the procedure's full name. Each scalar output becomes
// a column holding its value and each row set a column holding
// []*entity.Entity. returnColumns optionally describes the rows of a row set
// by name; other row sets use the columns the driver reports. A procedure
// without outputs or row sets returns nil and no error.
func (c *Context) CallSproc(ctx context.Context, def core.SprocDefinition, returnColumns map[string][]core.Column, args ...any) (*entity.Entity, error) {
	var res provider.SprocResult
	err := c.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		res, err = c.prov.ExecuteSproc(ctx, conn, def, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.sprocEntity(ctx, def, returnColumns, res)
}

// CallSprocAsync is the non-blocking form of CallSproc. The connection is
// released before any error is returned.
func (c *Context) CallSprocAsync(ctx context.Context, def core.SprocDefinition, returnColumns map[string][]core.Column, args ...any) *future.Future[*entity.Entity] {
	return future.Go(ctx, func(ctx context.Context) (*entity.Entity, error) {
		conn, err := c.prov.Open(ctx, c.connString)
		if err != nil {
			return nil, err
		}
		// the procedure observes ctx itself; waiting without it keeps the
		// connection checked out until the driver call has returned
		res, err := c.prov.ExecuteSprocAsync(ctx, conn, def, args).Await(context.WithoutCancel(ctx))
		c.release(conn)
		if err != nil {
			return nil, err
		}
		return c.sprocEntity(ctx, def, returnColumns, res)
	})
}

func (c *Context) sprocEntity(ctx context.Context, def core.SprocDefinition, returnColumns map[string][]core.Column, res provider.SprocResult) (*entity.Entity, error) {
	var items []provider.SprocResult
	switch r := res.(type) {
	case nil, provider.Unit:
		return nil, nil
	case provider.Scalar, provider.SingleResultSet:
		items = []provider.SprocResult{r}
	case provider.Set:
		items = r.Items
	default:
		return nil, fmt.Errorf("unsupported procedure result %T", res)
	}

	table := def.Name.FullName()
	cols := make([]core.Column, 0, len(items))
	values := make([]any, 0, len(items))
	for i, item := range items {
		switch it := item.(type) {
		case provider.Scalar:
			name := provider.BindName(it.Name)
			mapping := core.TypeMapping{Portable: core.PortableAny}
			if p, ok := findParam(def, name); ok && p.Mapping.Portable.Known() {
				mapping = p.Mapping
			}
			cols = append(cols, core.Column{Table: table, Name: name, Mapping: mapping, Position: i + 1, Nullable: true})
			values = append(values, it.Value)

		case provider.SingleResultSet:
			name := provider.BindName(it.Name)
			nested, err := c.readRowSet(ctx, name, returnColumns[it.Name], it.Rows)
			if err != nil {
				return nil, fmt.Errorf("failed to read result set %s of %s: %w", name, table, err)
			}
			cols = append(cols, core.Column{
				Table:    table,
				Name:     name,
				Mapping:  core.TypeMapping{Portable: core.PortableRows},
				Position: i + 1,
				Nullable: true,
			})
			values = append(values, nested)

		default:
			return nil, fmt.Errorf("unsupported procedure result item %T", item)
		}
	}

	e := entity.New(c.id, table, cols, entity.Unchanged)
	for i, col := range cols {
		if err := e.SetSilent(col.Name, values[i]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// readRowSet materializes a buffered row set as untracked entities.
func (c *Context) readRowSet(ctx context.Context, name string, cols []core.Column, set *provider.RowSet) ([]*entity.Entity, error) {
	if set == nil {
		set = &provider.RowSet{}
	}
	if cols == nil {
		cols = set.Columns
	}
	out := make([]*entity.Entity, 0, set.Len())
	err := c.materialize(ctx, name, cols, set.Reader(), false, func(e *entity.Entity) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func findParam(def core.SprocDefinition, name string) (core.SprocParam, bool) {
	for _, p := range def.Params {
		if strings.EqualFold(provider.BindName(p.Name), name) {
			return p, true
		}
	}
	return core.SprocParam{}, false
}
