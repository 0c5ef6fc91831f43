package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the data source",
		Example: `  # List tables of the default source
  leapentity tables

  # List tables from a saved schema snapshot
  leapentity tables --offline --schema schema.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, dc, err := openContext(cmd)
			if err != nil {
				return err
			}
			tables, err := dc.Tables(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]any, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, []any{t.Schema, t.Name})
			}
			return s.Out.Table([]string{"schema", "name"}, rows)
		},
	}
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table>",
		Short: "Describe the columns of a table",
		Example: `  leapentity columns customers
  leapentity columns sales.orders -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, dc, err := openContext(cmd)
			if err != nil {
				return err
			}
			cols, err := dc.Columns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.Out.Table(columnHeaders, columnRows(cols))
		},
	}
}

var columnHeaders = []string{"position", "name", "native", "type", "pk", "nullable", "autonumber", "default", "computed"}

func columnRows(cols []core.Column) [][]any {
	rows := make([][]any, 0, len(cols))
	for _, c := range cols {
		rows = append(rows, []any{
			c.Position, c.Name, c.Mapping.BackendName, string(c.Mapping.Portable),
			c.PrimaryKey, c.Nullable, c.AutoNumber, c.HasDefault, c.Computed,
		})
	}
	return rows
}

// NewPrimaryKeyCommand creates the pk command.
func NewPrimaryKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pk <table>",
		Short: "Show the primary-key column of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, dc, err := openContext(cmd)
			if err != nil {
				return err
			}
			key, err := dc.PrimaryKeyDefinition(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if s.Out.Mode() == output.ModeJSON {
				return s.Out.JSON(map[string]string{"table": args[0], "primary_key": key})
			}
			if key == "" {
				s.Out.Println(fmt.Sprintf("%s has no primary key", args[0]))
				return nil
			}
			s.Out.Println(key)
			return nil
		},
	}
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage schema snapshots",
	}
	cmd.AddCommand(newSchemaSaveCommand())
	return cmd
}

func newSchemaSaveCommand() *cobra.Command {
	var warm bool
	cmd := &cobra.Command{
		Use:   "save <path>",
		Short: "Write the schema cache to a snapshot file",
		Long: `Write the cached schema of the data source to a snapshot file.

The format follows the extension: .yaml/.yml, .json, or .db/.sqlite.
With --warm every table's columns are loaded first, so the snapshot can
serve the whole catalog offline.`,
		Example: `  leapentity schema save schema.yaml --warm`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, dc, err := openContext(cmd)
			if err != nil {
				return err
			}
			if warm {
				tables, err := dc.Tables(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range tables {
					if _, err := dc.Columns(cmd.Context(), t.FullName()); err != nil {
						return err
					}
				}
			}
			if err := s.SaveSchema(args[0]); err != nil {
				return err
			}
			s.Out.Println(fmt.Sprintf("schema written to %s", args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&warm, "warm", false, "load every table's columns before saving")
	return cmd
}
