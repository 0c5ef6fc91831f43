package postgres

import (
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes PostgreSQL.
var Dialect = &provider.Dialect{
	Name:          "postgres",
	DriverName:    "pgx",
	Quoting:       core.Quoting{Start: `"`, End: `"`},
	Placeholder:   provider.PlaceholderDollar,
	DefaultSchema: "public",
	Returning:     provider.ReturnClause,
	SprocCall:     provider.SelectSprocCall,

	// array types are left out; they map to nothing portable
	TypesQuery: `SELECT t.typname, t.oid::int8
FROM pg_catalog.pg_type AS t
WHERE t.typtype IN ('b', 'd', 'e') AND t.typelem = 0
ORDER BY t.typname`,

	TablesQuery: `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name`,

	ColumnsQuery: `SELECT c.column_name, c.udt_name,
  c.is_nullable = 'YES',
  c.ordinal_position,
  EXISTS (
    SELECT 1
    FROM information_schema.table_constraints AS tc
    JOIN information_schema.key_column_usage AS k
      ON k.constraint_schema = tc.constraint_schema AND k.constraint_name = tc.constraint_name
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
      AND k.column_name = c.column_name),
  c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%',
  c.column_default IS NOT NULL,
  c.is_generated = 'ALWAYS'
FROM information_schema.columns AS c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`,

	RelationshipsQuery: `SELECT tc.constraint_name,
  pk.table_schema, pk.table_name, pk.column_name,
  fk.table_schema, fk.table_name, fk.column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.referential_constraints AS rc
  ON rc.constraint_schema = tc.constraint_schema AND rc.constraint_name = tc.constraint_name
JOIN information_schema.key_column_usage AS fk
  ON fk.constraint_schema = tc.constraint_schema AND fk.constraint_name = tc.constraint_name
JOIN information_schema.key_column_usage AS pk
  ON pk.constraint_schema = rc.unique_constraint_schema AND pk.constraint_name = rc.unique_constraint_name
  AND pk.ordinal_position = fk.position_in_unique_constraint
WHERE tc.constraint_type = 'FOREIGN KEY'
ORDER BY fk.table_schema, fk.table_name, tc.constraint_name, fk.ordinal_position`,

	// packages do not exist in PostgreSQL; $2 only keeps the argument list uniform
	SprocParamsQuery: `SELECT p.parameter_name, p.udt_name, p.parameter_mode, p.ordinal_position,
  p.character_maximum_length
FROM information_schema.routines AS r
JOIN information_schema.parameters AS p
  ON p.specific_schema = r.specific_schema AND p.specific_name = r.specific_name
WHERE r.routine_schema = $1 AND $2::text IS NOT NULL AND r.routine_name = $3
ORDER BY p.ordinal_position`,

	Types: types,
}

var types = map[string]core.PortableType{
	"int2":                        core.PortableInt64,
	"int4":                        core.PortableInt64,
	"int8":                        core.PortableInt64,
	"smallint":                    core.PortableInt64,
	"integer":                     core.PortableInt64,
	"bigint":                      core.PortableInt64,
	"oid":                         core.PortableInt64,
	"float4":                      core.PortableFloat64,
	"float8":                      core.PortableFloat64,
	"real":                        core.PortableFloat64,
	"double precision":            core.PortableFloat64,
	"numeric":                     core.PortableDecimal,
	"decimal":                     core.PortableDecimal,
	"money":                       core.PortableDecimal,
	"bool":                        core.PortableBool,
	"boolean":                     core.PortableBool,
	"text":                        core.PortableString,
	"varchar":                     core.PortableString,
	"character varying":           core.PortableString,
	"bpchar":                      core.PortableString,
	"char":                        core.PortableString,
	"character":                   core.PortableString,
	"name":                        core.PortableString,
	"citext":                      core.PortableString,
	"json":                        core.PortableString,
	"jsonb":                       core.PortableString,
	"xml":                         core.PortableString,
	"interval":                    core.PortableString,
	"inet":                        core.PortableString,
	"cidr":                        core.PortableString,
	"uuid":                        core.PortableGUID,
	"bytea":                       core.PortableBytes,
	"date":                        core.PortableTime,
	"time":                        core.PortableTime,
	"timetz":                      core.PortableTime,
	"timestamp":                   core.PortableTime,
	"timestamptz":                 core.PortableTime,
	"timestamp without time zone": core.PortableTime,
	"timestamp with time zone":    core.PortableTime,
	"refcursor":                   core.PortableRows,
}
