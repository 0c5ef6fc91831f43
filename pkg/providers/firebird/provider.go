package firebird

import (
	"net/url"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/provider"

	_ "github.com/nakagami/firebirdsql" // firebird driver
)

// Params holds Firebird-specific configuration, decoded from Config.Params.
type Params struct {
	// Role is the SQL role attached to every connection.
	Role string `mapstructure:"role"`

	// Charset is the connection character set, e.g. UTF8.
	Charset string `mapstructure:"charset"`

	// Timezone is the session time zone, e.g. "Europe/Berlin".
	Timezone string `mapstructure:"timezone"`
}

// Provider is the Firebird provider. The connection string is a
// firebirdsql DSN, e.g. "sysdba:masterkey@localhost:3050/var/db/app.fdb".
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates a Firebird provider.
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
	return p, nil
}

// dsn appends the configured settings as DSN query parameters.
func (p *Provider) dsn(connString string) (string, error) {
	q := url.Values{}
	if p.params.Role != "" {
		q.Set("role", p.params.Role)
	}
	if p.params.Charset != "" {
		q.Set("charset", p.params.Charset)
	}
	if p.params.Timezone != "" {
		q.Set("timezone", p.params.Timezone)
	}
	if len(q) == 0 {
		return connString, nil
	}
	sep := "?"
	if strings.Contains(connString, "?") {
		sep = "&"
	}
	return connString + sep + q.Encode(), nil
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
