package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Provider is the DuckDB provider. The connection string is a database
// file path; an empty string opens an in-memory database.
type Provider struct {
	*provider.BaseSQLProvider
	params *Params
}

// New creates a DuckDB provider.
func New(cfg provider.Config) (*Provider, error) {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	p.DSN = dsn
	p.Connector = p.connector
	return p, nil
}

func dsn(connString string) (string, error) {
	if connString == ":memory:" {
		return "", nil
	}
	return connString, nil
}

func (p *Provider) connector(dsn string) (driver.Connector, error) {
	stmts := p.params.initStatements()
	return duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		for _, stmt := range stmts {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("failed to run %q: %w", firstLine(stmt), err)
			}
		}
		p.Logger.Debug("initialized duckdb connection", "statements", len(stmts))
		return nil
	})
}

// firstLine keeps secret values out of error messages.
func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
