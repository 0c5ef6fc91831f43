package provider

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/telemetry"
)

// Command is command text bound to a connection or transaction. Every
// execution is published to telemetry before it reaches the driver.
type Command struct {
	Text string
	// Kind overrides the telemetry kind; by default Query and QueryRow
	// publish KindQuery and Exec publishes KindExec.
	Kind telemetry.Kind

	q         Querier
	identity  string
	vendor    string
	publisher *telemetry.Publisher
}

// Query executes the command and returns its rows.
func (c *Command) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	c.publish(ctx, telemetry.KindQuery, args)
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	return c.q.QueryContext(ctx, c.Text, args...)
}

// QueryRow executes a command expected to return at most one row.
func (c *Command) QueryRow(ctx context.Context, args ...any) *sql.Row {
	c.publish(ctx, telemetry.KindQuery, args)
	return c.q.QueryRowContext(ctx, c.Text, args...)
}

// Exec executes a command that returns no rows.
func (c *Command) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	c.publish(ctx, telemetry.KindExec, args)
	return c.q.ExecContext(ctx, c.Text, args...)
}

func (c *Command) publish(ctx context.Context, kind telemetry.Kind, args []any) {
	if c.publisher == nil {
		return
	}
	if c.Kind != "" {
		kind = c.Kind
	}
	c.publisher.Publish(ctx, telemetry.NewEvent(c.identity, c.vendor, kind, c.Text, Params(args)))
}

// Params describes driver arguments for telemetry.
func Params(args []any) []telemetry.Param {
	if len(args) == 0 {
		return nil
	}
	params := make([]telemetry.Param, 0, len(args))
	for _, a := range args {
		p := telemetry.Param{Value: a}
		if named, ok := a.(sql.NamedArg); ok {
			p.Name = named.Name
			p.Value = named.Value
		}
		if out, ok := p.Value.(sql.Out); ok {
			p.Direction = core.Out
			p.Value = nil
			if out.In {
				p.Direction = core.InOut
				p.Value = derefDest(out.Dest)
			}
		}
		params = append(params, p)
	}
	return params
}
