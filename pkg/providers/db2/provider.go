package db2

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/provider"

	_ "github.com/ibmdb/go_ibm_db" // Db2 driver
)

// Params holds Db2-specific configuration, decoded from Config.Params.
type Params struct {
	// CurrentSchema is set with SET CURRENT SCHEMA on every connection.
	CurrentSchema string `mapstructure:"current_schema"`

	// Attributes are appended to the connection string as KEY=value pairs,
	// e.g. SECURITY: SSL.
	Attributes map[string]string `mapstructure:"attributes"`
}

var ordinaryIdentifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_@#$]*$`)

// Provider is the Db2 provider. The connection string uses the CLI form
// "HOSTNAME=host;DATABASE=name;PORT=50000;UID=user;PWD=secret;".
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates a Db2 provider.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	if params.CurrentSchema != "" && !ordinaryIdentifier.MatchString(params.CurrentSchema) {
		return nil, fmt.Errorf("invalid current_schema %q", params.CurrentSchema)
	}
	for key, value := range params.Attributes {
		if !ordinaryIdentifier.MatchString(key) || strings.ContainsAny(value, ";=") {
			return nil, fmt.Errorf("invalid connection attribute %s=%q", key, value)
		}
	}

	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	p.DSN = p.dsn
	if params.CurrentSchema != "" {
		p.OnConnect = p.setSchema
	}
	return p, nil
}

func (p *Provider) dsn(connString string) (string, error) {
	if len(p.params.Attributes) == 0 {
		return connString, nil
	}
	var sb strings.Builder
	sb.WriteString(connString)
	if connString != "" && !strings.HasSuffix(connString, ";") {
		sb.WriteString(";")
	}
	for _, key := range sortedKeys(p.params.Attributes) {
		fmt.Fprintf(&sb, "%s=%s;", strings.ToUpper(key), p.params.Attributes[key])
	}
	return sb.String(), nil
}

func (p *Provider) setSchema(ctx context.Context, conn *sql.Conn) error {
	stmt := "SET CURRENT SCHEMA = " + strings.ToUpper(p.params.CurrentSchema)
	if _, err := p.NewCommand(conn, stmt).Exec(ctx); err != nil {
		return fmt.Errorf("failed to set current schema: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
