package sqlite

import (
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes SQLite.
var Dialect = &provider.Dialect{
	Name:               "sqlite",
	DriverName:         "sqlite",
	Quoting:            core.Quoting{Start: `"`, End: `"`},
	Placeholder:        provider.PlaceholderQuestion,
	KeepConnectionOpen: true,
	Returning:          provider.ReturnLastInsertID,

	TablesQuery: `SELECT NULL, name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`,

	ColumnsQuery: `SELECT p.name, p.type,
  CASE WHEN p."notnull" = 0 AND p.pk = 0 THEN 1 ELSE 0 END,
  p.cid + 1,
  CASE WHEN p.pk > 0 THEN 1 ELSE 0 END,
  CASE WHEN p.pk = 1 AND lower(p.type) = 'integer'
    AND (SELECT count(*) FROM pragma_table_info(?) WHERE pk > 0) = 1 THEN 1 ELSE 0 END,
  CASE WHEN p.dflt_value IS NOT NULL THEN 1 ELSE 0 END,
  CASE WHEN p.hidden IN (2, 3) THEN 1 ELSE 0 END
FROM pragma_table_xinfo(?) AS p
WHERE p.hidden <> 1
ORDER BY p.cid`,
	ColumnsArgs: func(t core.Table) []any { return []any{t.Name, t.Name} },

	RelationshipsQuery: `SELECT 'fk_' || m.name || '_' || f.id, NULL, f."table",
  COALESCE(f."to", (SELECT k.name FROM pragma_table_info(f."table") AS k WHERE k.pk = 1), ''),
  NULL, m.name, f."from"
FROM sqlite_master AS m
JOIN pragma_foreign_key_list(m.name) AS f
WHERE m.type = 'table'
ORDER BY m.name, f.id, f.seq`,

	Types:        types,
	TypeResolver: affinity,
}

var types = map[string]core.PortableType{
	"integer":   core.PortableInt64,
	"int":       core.PortableInt64,
	"bigint":    core.PortableInt64,
	"smallint":  core.PortableInt64,
	"tinyint":   core.PortableInt64,
	"text":      core.PortableString,
	"varchar":   core.PortableString,
	"char":      core.PortableString,
	"clob":      core.PortableString,
	"real":      core.PortableFloat64,
	"double":    core.PortableFloat64,
	"float":     core.PortableFloat64,
	"numeric":   core.PortableDecimal,
	"decimal":   core.PortableDecimal,
	"boolean":   core.PortableBool,
	"bool":      core.PortableBool,
	"date":      core.PortableTime,
	"datetime":  core.PortableTime,
	"timestamp": core.PortableTime,
	"blob":      core.PortableBytes,
	"uuid":      core.PortableGUID,
	"guid":      core.PortableGUID,
}

// affinity applies SQLite's column affinity rules to declared types the
// type map does not name. Columns without a declared type stay typeless.
func affinity(name string) core.PortableType {
	if t, ok := types[name]; ok {
		return t
	}
	switch {
	case name == "":
		return core.PortableAny
	case strings.Contains(name, "int"):
		return core.PortableInt64
	case strings.Contains(name, "char"), strings.Contains(name, "clob"), strings.Contains(name, "text"):
		return core.PortableString
	case strings.Contains(name, "blob"):
		return core.PortableBytes
	case strings.Contains(name, "real"), strings.Contains(name, "floa"), strings.Contains(name, "doub"):
		return core.PortableFloat64
	}
	return core.PortableDecimal
}
