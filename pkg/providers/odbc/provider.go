package odbc

import (
	"fmt"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"

	_ "github.com/alexbrainman/odbc" // odbc driver
)

// Params holds ODBC-specific configuration, decoded from Config.Params.
// Each setting adjusts a copy of Dialect for the data source behind the
// DSN.
type Params struct {
	// IdentifierQuote is the quote character the data source expects, such
	// as "`" or "[". Defaults to a double quote.
	IdentifierQuote string `mapstructure:"identifier_quote"`

	// DefaultSchema qualifies tables given without a schema.
	DefaultSchema string `mapstructure:"default_schema"`

	// TablesQuery lists base tables as (schema, name) when the data source
	// has a catalog to ask.
	TablesQuery string `mapstructure:"tables_query"`
}

var closing = map[string]string{`"`: `"`, "`": "`", "[": "]"}

// Provider is the generic ODBC provider. The connection string is passed
// to the driver manager unchanged, e.g. "DSN=warehouse;UID=app;PWD=x".
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates an ODBC provider.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	d, err := dialectFor(params)
	if err != nil {
		return nil, err
	}
	return &Provider{
		BaseSQLProvider: provider.NewBase(cfg, d),
		params:          params,
	}, nil
}

func dialectFor(params Params) (*provider.Dialect, error) {
	if params == (Params{}) {
		return Dialect, nil
	}
	d := *Dialect
	if params.IdentifierQuote != "" {
		end, ok := closing[params.IdentifierQuote]
		if !ok {
			return nil, fmt.Errorf("unsupported identifier quote %q", params.IdentifierQuote)
		}
		d.Quoting = core.Quoting{Start: params.IdentifierQuote, End: end}
	}
	if params.DefaultSchema != "" {
		d.DefaultSchema = params.DefaultSchema
	}
	if params.TablesQuery != "" {
		d.TablesQuery = params.TablesQuery
	}
	return &d, nil
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
