package db2

import (
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes Db2 for LUW. Tables in CURRENT SCHEMA are reported
// without a schema.
var Dialect = &provider.Dialect{
	Name:              "db2",
	DriverName:        "go_ibm_db",
	Quoting:           core.Quoting{Start: `"`, End: `"`},
	Placeholder:       provider.PlaceholderQuestion,
	Returning:         provider.ReturnNone,
	NamedOutputs:      true,
	PositionalOutputs: true,
	SprocCall:         provider.CallSprocCall,
	EmptyInsert:       "VALUES (DEFAULT)",

	TablesQuery: `SELECT NULLIF(TRIM(TABSCHEMA), CURRENT SCHEMA), TABNAME
FROM SYSCAT.TABLES
WHERE TYPE = 'T' AND TABSCHEMA NOT LIKE 'SYS%' AND TABSCHEMA NOT LIKE 'IBM%'
ORDER BY TABSCHEMA, TABNAME`,

	ColumnsQuery: `SELECT c.COLNAME, c.TYPENAME,
  CASE WHEN c.NULLS = 'Y' THEN 1 ELSE 0 END,
  c.COLNO + 1,
  CASE WHEN c.KEYSEQ IS NOT NULL THEN 1 ELSE 0 END,
  CASE WHEN c.IDENTITY = 'Y' THEN 1 ELSE 0 END,
  CASE WHEN c.DEFAULT IS NOT NULL THEN 1 ELSE 0 END,
  CASE WHEN c.GENERATED = 'A' AND c.IDENTITY <> 'Y' THEN 1 ELSE 0 END
FROM SYSCAT.COLUMNS c
WHERE c.TABSCHEMA = COALESCE(NULLIF(CAST(? AS VARCHAR(128)), ''), CURRENT SCHEMA)
  AND c.TABNAME = ?
ORDER BY c.COLNO`,

	RelationshipsQuery: `SELECT r.CONSTNAME,
  NULLIF(TRIM(r.REFTABSCHEMA), CURRENT SCHEMA), r.REFTABNAME, pk.COLNAME,
  NULLIF(TRIM(r.TABSCHEMA), CURRENT SCHEMA), r.TABNAME, fk.COLNAME
FROM SYSCAT.REFERENCES r
JOIN SYSCAT.KEYCOLUSE fk ON fk.CONSTNAME = r.CONSTNAME
  AND fk.TABSCHEMA = r.TABSCHEMA AND fk.TABNAME = r.TABNAME
JOIN SYSCAT.KEYCOLUSE pk ON pk.CONSTNAME = r.REFKEYNAME
  AND pk.TABSCHEMA = r.REFTABSCHEMA AND pk.TABNAME = r.REFTABNAME
  AND pk.COLSEQ = fk.COLSEQ
WHERE r.TABSCHEMA NOT LIKE 'SYS%'
ORDER BY r.TABSCHEMA, r.TABNAME, r.CONSTNAME, fk.COLSEQ`,

	SprocParamsQuery: `SELECT p.PARMNAME, p.TYPENAME, p.PARM_MODE, p.ORDINAL, p.LENGTH
FROM SYSCAT.ROUTINEPARMS p
JOIN SYSCAT.ROUTINES r ON r.SPECIFICNAME = p.SPECIFICNAME AND r.ROUTINESCHEMA = p.ROUTINESCHEMA
WHERE r.ROUTINETYPE = 'P'
  AND r.ROUTINESCHEMA = COALESCE(NULLIF(CAST(? AS VARCHAR(128)), ''), CURRENT SCHEMA)
  AND COALESCE(r.ROUTINEMODULENAME, '') = COALESCE(CAST(? AS VARCHAR(128)), '')
  AND r.ROUTINENAME = ?
  AND p.ROWTYPE IN ('P', 'O', 'B')
ORDER BY p.ORDINAL`,

	Types: types,
}

var types = map[string]core.PortableType{
	"smallint":   core.PortableInt64,
	"integer":    core.PortableInt64,
	"int":        core.PortableInt64,
	"bigint":     core.PortableInt64,
	"real":       core.PortableFloat64,
	"double":     core.PortableFloat64,
	"decfloat":   core.PortableDecimal,
	"decimal":    core.PortableDecimal,
	"numeric":    core.PortableDecimal,
	"char":       core.PortableString,
	"character":  core.PortableString,
	"varchar":    core.PortableString,
	"clob":       core.PortableString,
	"graphic":    core.PortableString,
	"vargraphic": core.PortableString,
	"dbclob":     core.PortableString,
	"xml":        core.PortableString,
	"date":       core.PortableTime,
	"time":       core.PortableTime,
	"timestamp":  core.PortableTime,
	"boolean":    core.PortableBool,
	"blob":       core.PortableBytes,
	"varbinary":  core.PortableBytes,
	"binary":     core.PortableBytes,
}
