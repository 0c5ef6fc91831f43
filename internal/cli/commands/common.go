package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapentity/internal/cli/session"
	"github.com/leapstack-labs/leapentity/pkg/datacontext"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/spf13/cobra"
)

// errNoSession is returned when a command runs without the root command's setup.
var errNoSession = errors.New("command requires an initialized session")

// sessionOf returns the session of the invocation.
func sessionOf(cmd *cobra.Command) (*session.Session, error) {
	s := session.FromContext(cmd.Context())
	if s == nil {
		return nil, errNoSession
	}
	return s, nil
}

// openContext returns the session and data context of the invocation.
func openContext(cmd *cobra.Command) (*session.Session, *datacontext.Context, error) {
	s, err := sessionOf(cmd)
	if err != nil {
		return nil, nil, err
	}
	dc, err := s.DataContext(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open data source: %w", err)
	}
	return s, dc, nil
}

// entityRows flattens entities into table rows ordered by their columns.
func entityRows(entities []*entity.Entity) ([]string, [][]any) {
	if len(entities) == 0 {
		return nil, nil
	}
	cols := entities[0].Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Name
	}
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i], _ = e.Get(c.Name)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// entityJSON converts an entity into a JSON-friendly map, descending into
// nested row sets.
func entityJSON(e *entity.Entity) map[string]any {
	out := make(map[string]any, len(e.Columns()))
	for _, c := range e.Columns() {
		v, _ := e.Get(c.Name)
		if nested, ok := v.([]*entity.Entity); ok {
			list := make([]map[string]any, 0, len(nested))
			for _, n := range nested {
				list = append(list, entityJSON(n))
			}
			out[c.Name] = list
			continue
		}
		out[c.Name] = v
	}
	return out
}
