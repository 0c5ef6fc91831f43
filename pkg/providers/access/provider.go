package access

import (
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/provider"

	_ "github.com/alexbrainman/odbc" // odbc driver
)

// Params holds Access-specific configuration, decoded from Config.Params.
type Params struct {
	// Driver names the installed ODBC driver used for bare file paths.
	Driver string `mapstructure:"driver"`

	// Password opens databases protected by a database password.
	Password string `mapstructure:"password"`
}

// DefaultDriver is the ODBC driver name of the Access Database Engine.
const DefaultDriver = "Microsoft Access Driver (*.mdb, *.accdb)"

// Provider is the Access provider. The connection string is either a full
// ODBC connection string or the path of an .mdb or .accdb file.
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates an Access provider.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	if params.Driver == "" {
		params.Driver = DefaultDriver
	}
	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	p.DSN = p.dsn
	return p, nil
}

func (p *Provider) dsn(connString string) (string, error) {
	ext := strings.ToLower(filepath.Ext(connString))
	if strings.Contains(connString, "=") || (ext != ".mdb" && ext != ".accdb") {
		return connString, nil
	}
	dsn := "Driver={" + p.params.Driver + "};Dbq=" + connString + ";"
	if p.params.Password != "" {
		dsn += "Pwd=" + p.params.Password + ";"
	}
	return dsn, nil
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
