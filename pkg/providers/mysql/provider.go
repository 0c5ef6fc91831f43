package mysql

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Params holds MySQL-specific configuration, decoded from Config.Params.
type Params struct {
	// Collation sets the connection collation.
	Collation string `mapstructure:"collation"`

	// Location is the time zone DATETIME values are read in, e.g. "UTC".
	Location string `mapstructure:"location"`

	// ReadTimeout and WriteTimeout bound network I/O.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Provider is the MySQL provider. The connection string is a
// go-sql-driver DSN, e.g. "user:pass@tcp(localhost:3306)/app".
type Provider struct {
	*provider.BaseSQLProvider
	params Params
	loc    *time.Location
}

// New creates a MySQL provider.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	if params.Location != "" {
		loc, err := time.LoadLocation(params.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql location %q: %w", params.Location, err)
		}
		p.loc = loc
	}
	p.Connector = p.connector
	return p, nil
}

// config parses connString and applies the settings the provider relies on.
func (p *Provider) config(connString string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql connection string: %w", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	if p.params.Collation != "" {
		cfg.Collation = p.params.Collation
	}
	if p.loc != nil {
		cfg.Loc = p.loc
	}
	if p.params.ReadTimeout > 0 {
		cfg.ReadTimeout = p.params.ReadTimeout
	}
	if p.params.WriteTimeout > 0 {
		cfg.WriteTimeout = p.params.WriteTimeout
	}
	return cfg, nil
}

func (p *Provider) connector(dsn string) (driver.Connector, error) {
	cfg, err := p.config(dsn)
	if err != nil {
		return nil, err
	}
	return mysql.NewConnector(cfg)
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
