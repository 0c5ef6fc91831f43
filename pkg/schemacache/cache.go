// Package schemacache holds the per-provider metadata cache: type mappings,
// tables, columns, relationships and stored-procedure definitions.
//
// A cache is shared by every data context using the same provider. Fills are
// idempotent and last-writer-wins, so concurrent contexts may race to fill the
// same entry. An offline cache never consults the backend; it is restored
// from a snapshot.
package schemacache

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

// Cache is the metadata store of one provider.
type Cache struct {
	mu sync.RWMutex

	vendor  string
	offline bool

	typeMappings []core.TypeMapping
	typesLoaded  bool

	tables       map[string]core.Table
	tablesLoaded bool

	columns map[string][]core.Column

	relationships []core.Relationship
	relsLoaded    bool

	sprocs map[string]core.SprocDefinition
}

// New creates an empty, online cache.
func New(vendor string) *Cache {
	return &Cache{
		vendor:  vendor,
		tables:  make(map[string]core.Table),
		columns: make(map[string][]core.Column),
		sprocs:  make(map[string]core.SprocDefinition),
	}
}

// Vendor returns the vendor name the cache was created for.
func (c *Cache) Vendor() string {
	return c.vendor
}

// IsOffline reports whether the cache must be used without the backend.
func (c *Cache) IsOffline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offline
}

// SetOffline switches the offline flag.
func (c *Cache) SetOffline(offline bool) {
	c.mu.Lock()
	c.offline = offline
	c.mu.Unlock()
}

// TypeMappings returns the cached type mappings and whether a full pass ran.
func (c *Cache) TypeMappings() ([]core.TypeMapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.TypeMapping(nil), c.typeMappings...), c.typesLoaded
}

// SetTypeMappings stores the result of a full type-mapping pass.
func (c *Cache) SetTypeMappings(m []core.TypeMapping) {
	c.mu.Lock()
	c.typeMappings = append([]core.TypeMapping(nil), m...)
	c.typesLoaded = true
	c.mu.Unlock()
}

// Tables returns the cached table list sorted by full name, and whether a
// full table pass ran.
func (c *Cache) Tables() ([]core.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tables := make([]core.Table, 0, len(c.tables))
	for _, t := range c.tables {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].FullName() < tables[j].FullName()
	})
	return tables, c.tablesLoaded
}

// SetTables stores the result of a full table pass.
func (c *Cache) SetTables(tables []core.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tables {
		c.tables[t.FullName()] = t
	}
	c.tablesLoaded = true
}

// Table looks a table up by full name.
func (c *Cache) Table(fullName string) (core.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[fullName]
	return t, ok
}

// Columns returns the cached columns of a table.
func (c *Cache) Columns(fullName string) ([]core.Column, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols, ok := c.columns[fullName]
	if !ok {
		return nil, false
	}
	return append([]core.Column(nil), cols...), true
}

// SetColumns stores the columns of a table, registering the table as well.
func (c *Cache) SetColumns(table core.Table, cols []core.Column) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table.FullName()] = table
	c.columns[table.FullName()] = append([]core.Column(nil), cols...)
}

// Relationships returns the cached relationships and whether a full pass ran.
func (c *Cache) Relationships() ([]core.Relationship, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Relationship(nil), c.relationships...), c.relsLoaded
}

// SetRelationships stores the result of a full relationship pass.
func (c *Cache) SetRelationships(rels []core.Relationship) {
	c.mu.Lock()
	c.relationships = append([]core.Relationship(nil), rels...)
	c.relsLoaded = true
	c.mu.Unlock()
}

// Sproc returns a cached stored-procedure definition.
func (c *Cache) Sproc(fullName string) (core.SprocDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.sprocs[fullName]
	return def, ok
}

// SetSproc stores a stored-procedure definition.
func (c *Cache) SetSproc(def core.SprocDefinition) {
	c.mu.Lock()
	c.sprocs[def.Name.FullName()] = def
	c.mu.Unlock()
}

// Reset drops every cached entry but keeps the offline flag.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typeMappings, c.typesLoaded = nil, false
	c.tables, c.tablesLoaded = make(map[string]core.Table), false
	c.columns = make(map[string][]core.Column)
	c.relationships, c.relsLoaded = nil, false
	c.sprocs = make(map[string]core.SprocDefinition)
}
