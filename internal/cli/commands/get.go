package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "get <table> [id]",
		Short: "Fetch rows of a table",
		Long: `Fetch one row by primary key, or every row matching the --where filters.

The id is converted to the primary-key column's type before the lookup.`,
		Example: `  # Fetch customer 7
  leapentity get customers 7

  # Fetch the orders of customer 7
  leapentity get orders --where customer_id=7 -o json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return runGetIndividual(cmd, args[0], args[1])
			}
			return runGetMany(cmd, args[0], where)
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "column=value equality filter (repeatable)")
	return cmd
}

func runGetIndividual(cmd *cobra.Command, table, raw string) error {
	s, dc, err := openContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	key, err := dc.PrimaryKeyDefinition(ctx, table)
	if err != nil {
		return err
	}
	if key == "" {
		return &core.ConfigError{Subject: table, Reason: "table has no primary key"}
	}
	cols, err := dc.Columns(ctx, table)
	if err != nil {
		return err
	}
	id, err := coerceArg(table, cols, key, raw)
	if err != nil {
		return err
	}

	e, err := dc.GetIndividual(ctx, table, id)
	if err != nil {
		return err
	}
	return renderEntities(s.Out, []*entity.Entity{e})
}

func runGetMany(cmd *cobra.Command, table string, where []string) error {
	s, dc, err := openContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cols, err := dc.Columns(ctx, table)
	if err != nil {
		return err
	}
	q, err := dc.Entities(table)
	if err != nil {
		return err
	}
	for _, w := range where {
		name, raw, ok := strings.Cut(w, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid filter %q, expected column=value", w)
		}
		v, err := coerceArg(table, cols, name, raw)
		if err != nil {
			return err
		}
		q = q.Where(name, v)
	}

	entities, err := q.All(ctx)
	if err != nil {
		return err
	}
	return renderEntities(s.Out, entities)
}

// coerceArg converts a command-line value to the type of column name.
// The literal NULL stands for a database null.
func coerceArg(table string, cols []core.Column, name, raw string) (any, error) {
	if raw == "NULL" {
		return nil, nil
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return entity.Coerce(table, c, raw)
		}
	}
	return nil, fmt.Errorf("column %s not found in %s: %w", name, table, core.ErrSchemaResolution)
}

func renderEntities(out *output.Renderer, entities []*entity.Entity) error {
	if out.Mode() == output.ModeJSON {
		list := make([]map[string]any, 0, len(entities))
		for _, e := range entities {
			list = append(list, entityJSON(e))
		}
		return out.JSON(list)
	}
	headers, rows := entityRows(entities)
	return out.Table(headers, rows)
}
