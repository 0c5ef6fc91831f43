package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Params holds PostgreSQL-specific configuration, decoded from Config.Params.
type Params struct {
	// SearchPath replaces the server default search_path.
	SearchPath []string `mapstructure:"search_path"`

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`

	// StatementTimeout aborts statements running longer than this.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// Provider is the PostgreSQL provider. The connection string is any form
// pgx accepts, a URL or key=value pairs.
type Provider struct {
	*provider.BaseSQLProvider
	params Params

	mu         sync.Mutex
	registered []string
}

// New creates a PostgreSQL provider.
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

// dsn parses connString and registers the resulting config with the pgx
// stdlib driver, returning the name sql.Open expects.
func (p *Provider) dsn(connString string) (string, error) {
	cc, err := pgx.ParseConfig(connString)
	if err != nil {
		return "", fmt.Errorf("failed to parse postgres connection string: %w", err)
	}
	for k, v := range p.runtimeParams() {
		cc.RuntimeParams[k] = v
	}
	name := stdlib.RegisterConnConfig(cc)
	p.mu.Lock()
	p.registered = append(p.registered, name)
	p.mu.Unlock()
	return name, nil
}

func (p *Provider) runtimeParams() map[string]string {
	rp := make(map[string]string)
	if len(p.params.SearchPath) > 0 {
		quoted := make([]string, len(p.params.SearchPath))
		for i, s := range p.params.SearchPath {
			quoted[i] = pgx.Identifier{s}.Sanitize()
		}
		rp["search_path"] = strings.Join(quoted, ", ")
	}
	if p.params.ApplicationName != "" {
		rp["application_name"] = p.params.ApplicationName
	}
	if p.params.StatementTimeout > 0 {
		rp["statement_timeout"] = strconv.FormatInt(p.params.StatementTimeout.Milliseconds(), 10)
	}
	return rp
}

// Close releases the pools and the connection configs registered for them.
func (p *Provider) Close() error {
	err := p.BaseSQLProvider.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range p.registered {
		stdlib.UnregisterConnConfig(name)
	}
	p.registered = nil
	return err
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
