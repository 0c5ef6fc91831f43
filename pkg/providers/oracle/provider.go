package oracle

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sort"

	"github.com/godror/godror"

	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Params holds Oracle-specific configuration, decoded from Config.Params.
type Params struct {
	// Session holds "ALTER SESSION SET k = v" settings applied to every
	// new session, e.g. nls_date_format.
	Session map[string]string `mapstructure:"session"`
}

var sessionParam = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Provider is the Oracle provider. The connection string is anything godror
// accepts, e.g. `user="app" password="x" connectString="db:1521/ORCLPDB1"`
// or "app/x@db:1521/ORCLPDB1".
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates an Oracle provider.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	for k := range params.Session {
		if !sessionParam.MatchString(k) {
			return nil, fmt.Errorf("invalid oracle session parameter %q", k)
		}
	}
	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	p.Connector = p.connector
	return p, nil
}

func (p *Provider) connectionParams(connString string) (godror.ConnectionParams, error) {
	cp, err := godror.ParseConnString(connString)
	if err != nil {
		return cp, fmt.Errorf("failed to parse oracle connection string: %w", err)
	}
	keys := make([]string, 0, len(p.params.Session))
	for k := range p.params.Session {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cp.SetSessionParamOnInit(k, p.params.Session[k])
	}
	return cp, nil
}

func (p *Provider) connector(dsn string) (driver.Connector, error) {
	cp, err := p.connectionParams(dsn)
	if err != nil {
		return nil, err
	}
	return godror.NewConnector(cp), nil
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
