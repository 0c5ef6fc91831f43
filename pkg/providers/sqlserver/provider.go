package sqlserver

import (
	"database/sql/driver"
	"fmt"
	"net/url"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Params holds SQL Server-specific configuration, decoded from Config.Params.
type Params struct {
	// AppName is reported as the client application name.
	AppName string `mapstructure:"app_name"`

	// SessionInit is run on every new session, e.g. "SET ANSI_NULLS ON".
	SessionInit string `mapstructure:"session_init"`
}

// Provider is the SQL Server provider. The connection string is a
// sqlserver:// URL or an ADO-style "server=...;database=..." string.
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates a SQL Server provider.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	p.DSN = p.dsn
	p.Connector = p.connector
	return p, nil
}

func (p *Provider) dsn(connString string) (string, error) {
	if p.params.AppName == "" {
		return connString, nil
	}
	if strings.HasPrefix(connString, "sqlserver://") {
		u, err := url.Parse(connString)
		if err != nil {
			return "", fmt.Errorf("failed to parse sqlserver connection string: %w", err)
		}
		q := u.Query()
		q.Set("app name", p.params.AppName)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return strings.TrimRight(connString, "; ") + ";app name=" + p.params.AppName, nil
}

func (p *Provider) connector(dsn string) (driver.Connector, error) {
	c, err := mssql.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	c.SessionInitSQL = p.params.SessionInit
	return c, nil
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
