package ssdt

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/providers/sqlserver"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
)

// Dialect is the SQL Server dialect marked schema-only. SQL text built from
// it, such as SelectSQL output, is valid T-SQL.
var Dialect = schemaOnly(sqlserver.Dialect)

func schemaOnly(d *provider.Dialect) *provider.Dialect {
	c := *d
	c.Name = "ssdt"
	c.DriverName = ""
	c.SchemaOnly = true
	return &c
}

// Params holds SSDT-specific configuration, decoded from Config.Params.
type Params struct {
	// Snapshot is a schema snapshot file (.yaml, .json or .db).
	Snapshot string `mapstructure:"snapshot"`

	// Source selects the snapshot entry by provider identity. It defaults
	// to the provider's own identity, or the only entry in the file.
	Source string `mapstructure:"source"`
}

// Provider is the SSDT provider. Its cache is always offline.
type Provider struct {
	*provider.BaseSQLProvider
	params Params
}

// New creates an SSDT provider and restores its snapshot, if configured.
func New(cfg provider.Config) (*Provider, error) {
	var params Params
	if err := provider.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	p := &Provider{
		BaseSQLProvider: provider.NewBase(cfg, Dialect),
		params:          params,
	}
	if params.Snapshot != "" {
		f, err := schemacache.Load(params.Snapshot)
		if err != nil {
			return nil, err
		}
		s, err := p.pick(f)
		if err != nil {
			return nil, err
		}
		p.Cache.Restore(s)
		p.Logger.Debug("loaded project snapshot", "path", params.Snapshot, "tables", len(s.Tables))
	}
	p.Cache.SetOffline(true)
	return p, nil
}

func (p *Provider) pick(f *schemacache.File) (schemacache.Snapshot, error) {
	key := p.params.Source
	if key == "" {
		key = p.Identity()
	}
	if s, ok := f.Providers[key]; ok {
		return s, nil
	}
	if p.params.Source == "" && len(f.Providers) == 1 {
		for _, s := range f.Providers {
			return s, nil
		}
	}

	keys := make([]string, 0, len(f.Providers))
	for k := range f.Providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		keys = []string{"none"}
	}
	return schemacache.Snapshot{}, &core.ConfigError{
		Subject: p.params.Snapshot,
		Reason:  "no snapshot entry for " + key + " (have " + strings.Join(keys, ", ") + ")",
	}
}

// Ensure Provider implements provider.Provider interface
var _ provider.Provider = (*Provider)(nil)
