// Package config loads leapentity configuration: the data sources the CLI
// and embedding programs connect to, the schema snapshot file, logging and
// telemetry settings.
package config

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/registry"
)

// Config holds all configuration options.
type Config struct {
	// SchemaFile is the schema snapshot read at startup and written by
	// "schema save". Relative paths resolve against the config file.
	SchemaFile string `koanf:"schema_file"`

	// Offline serves all metadata from SchemaFile.
	Offline bool `koanf:"offline"`

	LogLevel string `koanf:"log_level"`
	Output   string `koanf:"output"`

	// Source names the default entry of Sources.
	Source string `koanf:"source"`

	Telemetry TelemetryConfig         `koanf:"telemetry"`
	Sources   map[string]SourceConfig `koanf:"sources"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// TelemetryConfig selects the telemetry sinks.
type TelemetryConfig struct {
	// Log writes every command to the logger at debug level.
	Log bool `koanf:"log"`
	// Prometheus counts commands per vendor and kind.
	Prometheus bool `koanf:"prometheus"`
	// Buffer is the publisher queue size.
	Buffer int `koanf:"buffer"`
}

// SourceConfig describes one logical data source.
type SourceConfig struct {
	Vendor     string `koanf:"vendor"`
	Connection string `koanf:"connection"`
	// Case is the name matching policy: exact, upper or lower.
	Case string `koanf:"case"`
	// Isolation is the isolation level of submissions, e.g. read_committed.
	Isolation string            `koanf:"isolation"`
	Options   map[string]string `koanf:"options"`
	// Params holds vendor-specific settings such as DuckDB extensions.
	Params map[string]any `koanf:"params"`
}

// Identity returns the registry identity of the source called name.
func (s SourceConfig) Identity(name string) (registry.Identity, error) {
	policy, err := core.ParseCasePolicy(s.Case)
	if err != nil {
		return registry.Identity{}, fmt.Errorf("source %s: %w", name, err)
	}
	return registry.Identity{
		Vendor:  strings.ToLower(s.Vendor),
		Shape:   name,
		Case:    policy,
		Options: s.Options,
		Params:  s.Params,
	}, nil
}

var isolationLevels = map[string]sql.IsolationLevel{
	"":                 sql.LevelDefault,
	"default":          sql.LevelDefault,
	"read_uncommitted": sql.LevelReadUncommitted,
	"read_committed":   sql.LevelReadCommitted,
	"write_committed":  sql.LevelWriteCommitted,
	"repeatable_read":  sql.LevelRepeatableRead,
	"snapshot":         sql.LevelSnapshot,
	"serializable":     sql.LevelSerializable,
	"linearizable":     sql.LevelLinearizable,
}

// IsolationLevel parses Isolation.
func (s SourceConfig) IsolationLevel() (sql.IsolationLevel, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s.Isolation)), " ", "_")
	if level, ok := isolationLevels[key]; ok {
		return level, nil
	}
	return sql.LevelDefault, &core.ConfigError{Subject: s.Isolation, Reason: "unknown isolation level"}
}

// SourceNames returns the configured source names, sorted.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the source called name. An empty name selects the
// default source, or the only source when just one is configured.
func (c *Config) Resolve(name string) (string, SourceConfig, error) {
	if name == "" {
		name = c.Source
	}
	if name == "" && len(c.Sources) == 1 {
		for only := range c.Sources {
			name = only
		}
	}
	if name == "" {
		return "", SourceConfig{}, &core.ConfigError{
			Subject: "source",
			Reason:  fmt.Sprintf("no source selected (have %s); use --source", strings.Join(c.SourceNames(), ", ")),
		}
	}
	s, ok := c.Sources[name]
	if !ok {
		return "", SourceConfig{}, &core.ConfigError{Subject: name, Reason: "unknown source"}
	}
	return name, s, nil
}
