package duckdb

import (
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes DuckDB. An in-memory database lives as long as its
// connection, so the pool is pinned to one.
var Dialect = &provider.Dialect{
	Name:               "duckdb",
	DriverName:         "duckdb",
	Quoting:            core.Quoting{Start: `"`, End: `"`},
	Placeholder:        provider.PlaceholderQuestion,
	DefaultSchema:      "main",
	KeepConnectionOpen: true,
	Returning:          provider.ReturnClause,

	TypesQuery: `SELECT DISTINCT type_name, NULL FROM duckdb_types() WHERE NOT internal ORDER BY 1`,

	TablesQuery: `SELECT schema_name, table_name
FROM duckdb_tables()
WHERE database_name = current_database() AND NOT internal
ORDER BY 1, 2`,

	ColumnsQuery: `SELECT c.column_name, c.data_type, c.is_nullable, c.column_index,
  EXISTS (
    SELECT 1 FROM duckdb_constraints() AS k
    WHERE k.database_name = c.database_name AND k.schema_name = c.schema_name
      AND k.table_name = c.table_name AND k.constraint_type = 'PRIMARY KEY'
      AND list_contains(k.constraint_column_names, c.column_name)
  ),
  COALESCE(c.column_default LIKE 'nextval(%', false),
  c.column_default IS NOT NULL,
  false
FROM duckdb_columns() AS c
WHERE c.database_name = current_database() AND c.schema_name = ? AND c.table_name = ?
ORDER BY c.column_index`,

	RelationshipsQuery: `SELECT k.table_name || '_' || k.constraint_index || '_fkey',
  k.schema_name, k.referenced_table, UNNEST(k.referenced_column_names),
  k.schema_name, k.table_name, UNNEST(k.constraint_column_names)
FROM duckdb_constraints() AS k
WHERE k.database_name = current_database() AND k.constraint_type = 'FOREIGN KEY'
ORDER BY 6, 1`,

	Types: types,
}

var types = map[string]core.PortableType{
	"tinyint":                  core.PortableInt64,
	"smallint":                 core.PortableInt64,
	"integer":                  core.PortableInt64,
	"bigint":                   core.PortableInt64,
	"utinyint":                 core.PortableInt64,
	"usmallint":                core.PortableInt64,
	"uinteger":                 core.PortableInt64,
	"hugeint":                  core.PortableDecimal,
	"ubigint":                  core.PortableDecimal,
	"float":                    core.PortableFloat64,
	"double":                   core.PortableFloat64,
	"decimal":                  core.PortableDecimal,
	"boolean":                  core.PortableBool,
	"varchar":                  core.PortableString,
	"date":                     core.PortableTime,
	"time":                     core.PortableTime,
	"timestamp":                core.PortableTime,
	"timestamp with time zone": core.PortableTime,
	"timestamp_s":              core.PortableTime,
	"timestamp_ms":             core.PortableTime,
	"timestamp_ns":             core.PortableTime,
	"blob":                     core.PortableBytes,
	"uuid":                     core.PortableGUID,
	"interval":                 core.PortableAny,
	"json":                     core.PortableString,
}
