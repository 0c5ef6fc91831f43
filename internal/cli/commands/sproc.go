package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/spf13/cobra"
)

// NewSprocCommand creates the sproc command.
func NewSprocCommand() *cobra.Command {
	var describe bool
	cmd := &cobra.Command{
		Use:   "sproc <name> [args...]",
		Short: "Describe or call a stored procedure",
		Long: `Resolve a stored procedure's signature and call it with positional
arguments. Arguments are converted to the input parameters' types in ordinal
order. Scalar outputs are printed as name/value pairs and each row set as a
table.`,
		Example: `  # Show the parameters of sales.customer_orders
  leapentity sproc sales.customer_orders --describe

  # Call it for customer 7
  leapentity sproc sales.customer_orders 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, dc, err := openContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			def, err := dc.SprocDefinition(ctx, args[0])
			if err != nil {
				return err
			}
			if describe {
				if s.Out.Mode() == output.ModeJSON {
					return s.Out.JSON(def)
				}
				return s.Out.Table(paramHeaders, paramRows(def))
			}

			callArgs, err := sprocArgs(def, args[1:])
			if err != nil {
				return err
			}
			e, err := dc.CallSproc(ctx, def, nil, callArgs...)
			if err != nil {
				return err
			}
			return renderSprocResult(s.Out, e)
		},
	}
	cmd.Flags().BoolVarP(&describe, "describe", "d", false, "print the signature instead of calling")
	return cmd
}

var paramHeaders = []string{"ordinal", "name", "direction", "native", "type"}

func paramRows(def core.SprocDefinition) [][]any {
	rows := make([][]any, 0, len(def.Params))
	for _, p := range def.OrderedParams() {
		rows = append(rows, []any{p.Ordinal, p.Name, p.Direction.String(), p.Mapping.BackendName, string(p.Mapping.Portable)})
	}
	return rows
}

// sprocArgs converts raw values to the types of def's input parameters.
func sprocArgs(def core.SprocDefinition, raw []string) ([]any, error) {
	inputs := def.InputParams()
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", def.Name.FullName(), len(inputs), len(raw))
	}
	args := make([]any, len(raw))
	for i, p := range inputs {
		if raw[i] == "NULL" {
			continue
		}
		col := core.Column{Name: p.Name, Mapping: p.Mapping}
		v, err := entity.Coerce(def.Name.FullName(), col, raw[i])
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func renderSprocResult(out *output.Renderer, e *entity.Entity) error {
	if e == nil {
		out.Println("procedure completed")
		if out.Mode() == output.ModeJSON {
			return out.JSON(map[string]any{})
		}
		return nil
	}
	if out.Mode() == output.ModeJSON {
		return out.JSON(entityJSON(e))
	}

	var scalars [][]any
	for _, c := range e.Columns() {
		v, _ := e.Get(c.Name)
		nested, ok := v.([]*entity.Entity)
		if !ok {
			scalars = append(scalars, []any{c.Name, v})
			continue
		}
		out.Println(fmt.Sprintf("%s (%d rows)", c.Name, len(nested)))
		headers, rows := entityRows(nested)
		if err := out.Table(headers, rows); err != nil {
			return err
		}
	}
	if len(scalars) > 0 {
		return out.Table([]string{"output", "value"}, scalars)
	}
	return nil
}
