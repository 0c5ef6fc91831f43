package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/leapstack-labs/leapentity/pkg/provider"

	_ "modernc.org/sqlite" // sqlite driver
)

// Params holds SQLite-specific configuration, decoded from Config.Params.
type Params struct {
	// Pragmas are applied to every connection, e.g. foreign_keys: "on".
	Pragmas map[string]string `mapstructure:"pragmas"`

	// BusyTimeout sets PRAGMA busy_timeout.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

var (
	pragmaName  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pragmaValue = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)
)

// Provider is the SQLite provider. The connection string is a database file
// path; an empty string opens a private in-memory database.
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates a SQLite provider.
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
	p.OnConnect = p.applyPragmas
	return p, nil
}

func parseParams(raw map[string]any) (Params, error) {
	var params Params
	if err := provider.DecodeParams(raw, &params); err != nil {
		return Params{}, err
	}
	for name, value := range params.Pragmas {
		if !pragmaName.MatchString(name) || !pragmaValue.MatchString(value) {
			return Params{}, fmt.Errorf("invalid pragma %s = %q", name, value)
		}
	}
	return params, nil
}

func dsn(connString string) (string, error) {
	if connString == "" {
		return ":memory:", nil
	}
	return connString, nil
}

func (p *Provider) applyPragmas(ctx context.Context, conn *sql.Conn) error {
	names := make([]string, 0, len(p.params.Pragmas))
	for name := range p.params.Pragmas {
		names = append(names, name)
	}
	sort.Strings(names)

	stmts := make([]string, 0, len(names)+1)
	if p.params.BusyTimeout > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA busy_timeout = %d", p.params.BusyTimeout.Milliseconds()))
	}
	for _, name := range names {
		stmts = append(stmts, fmt.Sprintf("PRAGMA %s = %s", name, p.params.Pragmas[name]))
	}
	for _, stmt := range stmts {
		if _, err := p.NewCommand(conn, stmt).Exec(ctx); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}
	return nil
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
