package duckdb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Params holds DuckDB-specific configuration.
// Decoded from provider.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

var keyword = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func parseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if err := provider.DecodeParams(raw, params); err != nil {
		return nil, err
	}
	for _, ext := range params.Extensions {
		if !keyword.MatchString(ext) {
			return nil, fmt.Errorf("invalid extension name %q", ext)
		}
	}
	for name := range params.Settings {
		if !keyword.MatchString(name) {
			return nil, fmt.Errorf("invalid setting name %q", name)
		}
	}
	for i, s := range params.Secrets {
		if !keyword.MatchString(s.Type) {
			return nil, fmt.Errorf("secret %d: invalid type %q", i, s.Type)
		}
		if s.Provider != "" && !keyword.MatchString(s.Provider) {
			return nil, fmt.Errorf("secret %d: invalid provider %q", i, s.Provider)
		}
	}
	return params, nil
}

// initStatements returns the statements run on every new connection.
func (p *Params) initStatements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	names := make([]string, 0, len(p.Settings))
	for name := range p.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", name, quote(p.Settings[name])))
	}

	for _, s := range p.Secrets {
		stmts = append(stmts, buildCreateSecretSQL(s))
	}
	return stmts
}

func buildCreateSecretSQL(cfg SecretConfig) string {
	opts := []string{"TYPE " + cfg.Type}
	if cfg.Provider != "" {
		opts = append(opts, "PROVIDER "+cfg.Provider)
	}
	if cfg.Region != "" {
		opts = append(opts, "REGION "+quote(cfg.Region))
	}
	if scope := scopeSQL(cfg.Scope); scope != "" {
		opts = append(opts, "SCOPE "+scope)
	}
	if cfg.KeyID != "" {
		opts = append(opts, "KEY_ID "+quote(cfg.KeyID))
	}
	if cfg.Secret != "" {
		opts = append(opts, "SECRET "+quote(cfg.Secret))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, "ENDPOINT "+quote(cfg.Endpoint))
	}
	if cfg.URLStyle != "" {
		opts = append(opts, "URL_STYLE "+quote(cfg.URLStyle))
	}
	if cfg.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *cfg.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(opts, ",\n    ") + "\n)"
}

func scopeSQL(scope any) string {
	var paths []string
	switch s := scope.(type) {
	case string:
		return quote(s)
	case []string:
		paths = s
	case []any:
		for _, v := range s {
			paths = append(paths, fmt.Sprint(v))
		}
	}
	if len(paths) == 0 {
		return ""
	}
	quoted := make([]string, len(paths))
	for i, path := range paths {
		quoted[i] = quote(path)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
