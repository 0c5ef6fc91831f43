package schemacache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"gopkg.in/yaml.v3"
)

// FileVersion is the current snapshot file format version.
const FileVersion = 1

// File is the on-disk form of one or more provider caches, keyed by
// provider identity.
type File struct {
	Version   int                 `json:"version" yaml:"version"`
	Providers map[string]Snapshot `json:"providers" yaml:"providers"`
}

// NewFile returns an empty file at the current version.
func NewFile() *File {
	return &File{Version: FileVersion, Providers: make(map[string]Snapshot)}
}

// Snapshot is a lossless copy of a Cache.
type Snapshot struct {
	Vendor        string                 `json:"vendor" yaml:"vendor"`
	Offline       bool                   `json:"offline" yaml:"offline"`
	Complete      Completeness           `json:"complete" yaml:"complete"`
	TypeMappings  []core.TypeMapping     `json:"type_mappings,omitempty" yaml:"type_mappings,omitempty"`
	Tables        []TableSnapshot        `json:"tables,omitempty" yaml:"tables,omitempty"`
	Relationships []core.Relationship    `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Sprocs        []core.SprocDefinition `json:"sprocs,omitempty" yaml:"sprocs,omitempty"`
}

// Completeness records which full passes the cache had run.
type Completeness struct {
	TypeMappings  bool `json:"type_mappings" yaml:"type_mappings"`
	Tables        bool `json:"tables" yaml:"tables"`
	Relationships bool `json:"relationships" yaml:"relationships"`
}

// TableSnapshot is one table and, when they were fetched, its columns.
type TableSnapshot struct {
	core.Table    `yaml:",inline"`
	ColumnsLoaded bool          `json:"columns_loaded" yaml:"columns_loaded"`
	Columns       []core.Column `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Snapshot copies the cache.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Vendor:  c.vendor,
		Offline: c.offline,
		Complete: Completeness{
			TypeMappings:  c.typesLoaded,
			Tables:        c.tablesLoaded,
			Relationships: c.relsLoaded,
		},
		TypeMappings:  append([]core.TypeMapping(nil), c.typeMappings...),
		Relationships: append([]core.Relationship(nil), c.relationships...),
	}

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ts := TableSnapshot{Table: c.tables[name]}
		if cols, ok := c.columns[name]; ok {
			ts.ColumnsLoaded = true
			ts.Columns = append([]core.Column(nil), cols...)
		}
		s.Tables = append(s.Tables, ts)
	}

	sprocNames := make([]string, 0, len(c.sprocs))
	for name := range c.sprocs {
		sprocNames = append(sprocNames, name)
	}
	sort.Strings(sprocNames)
	for _, name := range sprocNames {
		s.Sprocs = append(s.Sprocs, c.sprocs[name])
	}
	return s
}

// Restore replaces the cache contents with s, including the offline flag.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Vendor != "" {
		c.vendor = s.Vendor
	}
	c.offline = s.Offline
	c.typeMappings = append([]core.TypeMapping(nil), s.TypeMappings...)
	c.typesLoaded = s.Complete.TypeMappings
	c.tables = make(map[string]core.Table, len(s.Tables))
	c.columns = make(map[string][]core.Column)
	for _, ts := range s.Tables {
		c.tables[ts.FullName()] = ts.Table
		if ts.ColumnsLoaded {
			c.columns[ts.FullName()] = append([]core.Column{}, ts.Columns...)
		}
	}
	c.tablesLoaded = s.Complete.Tables
	c.relationships = append([]core.Relationship(nil), s.Relationships...)
	c.relsLoaded = s.Complete.Relationships
	c.sprocs = make(map[string]core.SprocDefinition, len(s.Sprocs))
	for _, def := range s.Sprocs {
		c.sprocs[def.Name.FullName()] = def
	}
}

// Format is a snapshot file encoding.
type Format string

// Supported snapshot formats.
const (
	FormatYAML   Format = "yaml"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", &core.ConfigError{Subject: path, Reason: "unsupported schema snapshot extension (use .yaml, .json or .db)"}
}

// Save writes f to path in the format implied by its extension.
func Save(path string, f *File) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	var data []byte
	switch format {
	case FormatSQLite:
		store, err := OpenSQLiteStore(path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.Save(f)
	case FormatJSON:
		data, err = json.MarshalIndent(f, "", "  ")
	default:
		data, err = yaml.Marshal(f)
	}
	if err != nil {
		return fmt.Errorf("failed to encode schema snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write schema snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot file written by Save.
func Load(path string) (*File, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	if format == FormatSQLite {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open schema snapshot: %w", err)
		}
		store, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		return store.Load()
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read schema snapshot: %w", err)
	}

	f := NewFile()
	if format == FormatJSON {
		err = json.Unmarshal(data, f)
	} else {
		err = yaml.Unmarshal(data, f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema snapshot: %w", err)
	}
	if f.Version > FileVersion {
		return nil, &core.ConfigError{Subject: path, Reason: fmt.Sprintf("snapshot version %d is newer than supported version %d", f.Version, FileVersion)}
	}
	if f.Providers == nil {
		f.Providers = make(map[string]Snapshot)
	}
	return f, nil
}
