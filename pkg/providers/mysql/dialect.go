package mysql

import (
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes MySQL. The schema of a table is its database; an empty
// schema means the connection's current database.
var Dialect = &provider.Dialect{
	Name:         "mysql",
	DriverName:   "mysql",
	Quoting:      core.Quoting{Start: "`", End: "`"},
	Placeholder:  provider.PlaceholderQuestion,
	Returning:    provider.ReturnLastInsertID,
	EmptyInsert:  "() VALUES ()",
	SprocCall:    sprocCall,
	OutputBind:   func(p core.SprocParam) string { return "@" + provider.BindName(p.Name) },
	OutputsLast:  true,
	TablesQuery:  tablesQuery,
	ColumnsQuery: columnsQuery,

	RelationshipsQuery: `SELECT k.constraint_name,
  NULLIF(k.referenced_table_schema, DATABASE()), k.referenced_table_name, k.referenced_column_name,
  NULL, k.table_name, k.column_name
FROM information_schema.key_column_usage AS k
WHERE k.referenced_table_name IS NOT NULL
  AND k.table_schema = DATABASE()
ORDER BY k.table_name, k.constraint_name, k.ordinal_position`,

	SprocParamsQuery: `SELECT p.parameter_name, p.data_type, p.parameter_mode, p.ordinal_position,
  p.character_maximum_length
FROM information_schema.parameters AS p
WHERE p.specific_schema = COALESCE(NULLIF(?, ''), DATABASE())
  AND ? IS NOT NULL
  AND p.specific_name = ?
  AND p.routine_type = 'PROCEDURE'
  AND p.ordinal_position > 0
ORDER BY p.ordinal_position`,

	Types: types,
}

const tablesQuery = `SELECT NULL, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE' AND table_schema = DATABASE()
ORDER BY table_name`

const columnsQuery = `SELECT c.column_name, c.column_type,
  c.is_nullable = 'YES',
  c.ordinal_position,
  c.column_key = 'PRI',
  c.extra LIKE '%auto_increment%',
  c.column_default IS NOT NULL,
  c.extra LIKE '%GENERATED%'
FROM information_schema.columns AS c
WHERE c.table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND c.table_name = ?
ORDER BY c.ordinal_position`

// sprocCall builds "CALL name(?, @out); SELECT @out AS out" so outputs
// arrive as the last result set.
func sprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	text := provider.CallSprocCall(def, q, binds)
	var outs []string
	for _, p := range def.ScalarOutputs() {
		name := provider.BindName(p.Name)
		outs = append(outs, "@"+name+" AS "+q.Quote(name))
	}
	if len(outs) > 0 {
		text += "; SELECT " + strings.Join(outs, ", ")
	}
	return text
}

var types = map[string]core.PortableType{
	"tinyint":            core.PortableInt64,
	"smallint":           core.PortableInt64,
	"mediumint":          core.PortableInt64,
	"int":                core.PortableInt64,
	"integer":            core.PortableInt64,
	"bigint":             core.PortableInt64,
	"tinyint unsigned":   core.PortableInt64,
	"smallint unsigned":  core.PortableInt64,
	"mediumint unsigned": core.PortableInt64,
	"int unsigned":       core.PortableInt64,
	"bigint unsigned":    core.PortableDecimal,
	"year":               core.PortableInt64,
	"float":              core.PortableFloat64,
	"double":             core.PortableFloat64,
	"real":               core.PortableFloat64,
	"decimal":            core.PortableDecimal,
	"numeric":            core.PortableDecimal,
	"bit":                core.PortableBool,
	"bool":               core.PortableBool,
	"boolean":            core.PortableBool,
	"char":               core.PortableString,
	"varchar":            core.PortableString,
	"tinytext":           core.PortableString,
	"text":               core.PortableString,
	"mediumtext":         core.PortableString,
	"longtext":           core.PortableString,
	"enum":               core.PortableString,
	"set":                core.PortableString,
	"json":               core.PortableString,
	"date":               core.PortableTime,
	"datetime":           core.PortableTime,
	"timestamp":          core.PortableTime,
	"time":               core.PortableString,
	"binary":             core.PortableBytes,
	"varbinary":          core.PortableBytes,
	"tinyblob":           core.PortableBytes,
	"blob":               core.PortableBytes,
	"mediumblob":         core.PortableBytes,
	"longblob":           core.PortableBytes,
}
