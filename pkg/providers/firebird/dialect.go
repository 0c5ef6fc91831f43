package firebird

import (
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes Firebird 3 and later. Firebird has no schemas and
// stores catalog names upper case.
var Dialect = &provider.Dialect{
	Name:        "firebird",
	DriverName:  "firebirdsql",
	Quoting:     core.Quoting{Start: `"`, End: `"`},
	Placeholder: provider.PlaceholderQuestion,
	Returning:   provider.ReturnClause,
	SprocCall:   sprocCall,
	ColumnsArgs: func(t core.Table) []any { return []any{t.Name} },

	TablesQuery: `SELECT NULL, TRIM(r.RDB$RELATION_NAME)
FROM RDB$RELATIONS r
WHERE COALESCE(r.RDB$SYSTEM_FLAG, 0) = 0 AND r.RDB$VIEW_BLR IS NULL
ORDER BY 2`,

	ColumnsQuery: `SELECT TRIM(rf.RDB$FIELD_NAME), ` + fieldType + `,
  CASE WHEN COALESCE(rf.RDB$NULL_FLAG, f.RDB$NULL_FLAG, 0) = 0 THEN 1 ELSE 0 END,
  rf.RDB$FIELD_POSITION + 1,
  CASE WHEN EXISTS (
    SELECT 1
    FROM RDB$RELATION_CONSTRAINTS rc
    JOIN RDB$INDEX_SEGMENTS s ON s.RDB$INDEX_NAME = rc.RDB$INDEX_NAME
    WHERE rc.RDB$RELATION_NAME = rf.RDB$RELATION_NAME
      AND rc.RDB$CONSTRAINT_TYPE = 'PRIMARY KEY'
      AND s.RDB$FIELD_NAME = rf.RDB$FIELD_NAME
  ) THEN 1 ELSE 0 END,
  CASE WHEN rf.RDB$IDENTITY_TYPE IS NOT NULL THEN 1 ELSE 0 END,
  CASE WHEN rf.RDB$DEFAULT_SOURCE IS NOT NULL OR f.RDB$DEFAULT_SOURCE IS NOT NULL THEN 1 ELSE 0 END,
  CASE WHEN f.RDB$COMPUTED_BLR IS NOT NULL THEN 1 ELSE 0 END
FROM RDB$RELATION_FIELDS rf
JOIN RDB$FIELDS f ON f.RDB$FIELD_NAME = rf.RDB$FIELD_SOURCE
WHERE rf.RDB$RELATION_NAME = ?
ORDER BY rf.RDB$FIELD_POSITION`,

	RelationshipsQuery: `SELECT TRIM(rc.RDB$CONSTRAINT_NAME),
  NULL, TRIM(pk.RDB$RELATION_NAME), TRIM(ps.RDB$FIELD_NAME),
  NULL, TRIM(rc.RDB$RELATION_NAME), TRIM(fs.RDB$FIELD_NAME)
FROM RDB$RELATION_CONSTRAINTS rc
JOIN RDB$REF_CONSTRAINTS ref ON ref.RDB$CONSTRAINT_NAME = rc.RDB$CONSTRAINT_NAME
JOIN RDB$RELATION_CONSTRAINTS pk ON pk.RDB$CONSTRAINT_NAME = ref.RDB$CONST_NAME_UQ
JOIN RDB$INDEX_SEGMENTS fs ON fs.RDB$INDEX_NAME = rc.RDB$INDEX_NAME
JOIN RDB$INDEX_SEGMENTS ps ON ps.RDB$INDEX_NAME = pk.RDB$INDEX_NAME
  AND ps.RDB$FIELD_POSITION = fs.RDB$FIELD_POSITION
WHERE rc.RDB$CONSTRAINT_TYPE = 'FOREIGN KEY'
ORDER BY 6, 1, fs.RDB$FIELD_POSITION`,

	// inputs and outputs are numbered separately; outputs sort after inputs
	SprocParamsQuery: `SELECT TRIM(p.RDB$PARAMETER_NAME), ` + fieldType + `,
  CASE p.RDB$PARAMETER_TYPE WHEN 0 THEN 'IN' ELSE 'OUT' END,
  p.RDB$PARAMETER_TYPE * 1000 + p.RDB$PARAMETER_NUMBER + 1,
  f.RDB$CHARACTER_LENGTH
FROM RDB$PROCEDURE_PARAMETERS p
JOIN RDB$FIELDS f ON f.RDB$FIELD_NAME = p.RDB$FIELD_SOURCE
WHERE CAST(? AS VARCHAR(63)) IS NOT NULL
  AND COALESCE(TRIM(p.RDB$PACKAGE_NAME), '') = COALESCE(CAST(? AS VARCHAR(63)), '')
  AND p.RDB$PROCEDURE_NAME = ?
ORDER BY 4`,

	Types: types,
}

// fieldType renders the declared type of the RDB$FIELDS row aliased f.
const fieldType = `CASE
    WHEN f.RDB$FIELD_TYPE IN (7, 8, 16) AND f.RDB$FIELD_SCALE < 0 THEN 'NUMERIC'
    WHEN f.RDB$FIELD_TYPE = 7 THEN 'SMALLINT'
    WHEN f.RDB$FIELD_TYPE = 8 THEN 'INTEGER'
    WHEN f.RDB$FIELD_TYPE = 16 THEN 'BIGINT'
    WHEN f.RDB$FIELD_TYPE = 10 THEN 'FLOAT'
    WHEN f.RDB$FIELD_TYPE = 27 THEN 'DOUBLE PRECISION'
    WHEN f.RDB$FIELD_TYPE = 12 THEN 'DATE'
    WHEN f.RDB$FIELD_TYPE = 13 THEN 'TIME'
    WHEN f.RDB$FIELD_TYPE = 35 THEN 'TIMESTAMP'
    WHEN f.RDB$FIELD_TYPE = 14 THEN 'CHAR'
    WHEN f.RDB$FIELD_TYPE = 37 THEN 'VARCHAR'
    WHEN f.RDB$FIELD_TYPE = 23 THEN 'BOOLEAN'
    WHEN f.RDB$FIELD_TYPE = 261 AND f.RDB$FIELD_SUB_TYPE = 1 THEN 'BLOB SUB_TYPE TEXT'
    WHEN f.RDB$FIELD_TYPE = 261 THEN 'BLOB'
    ELSE 'UNKNOWN'
  END`

// sprocCall runs executable procedures with EXECUTE PROCEDURE and
// selectable ones, those declaring result sets, with SELECT.
func sprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	if len(def.ResultSets) > 0 {
		return provider.SelectSprocCall(def, q, binds)
	}
	text := "EXECUTE PROCEDURE " + def.Name.QuotedFullName(q)
	if len(binds) > 0 {
		text += "(" + strings.Join(binds, ", ") + ")"
	}
	return text
}

var types = map[string]core.PortableType{
	"smallint":           core.PortableInt64,
	"integer":            core.PortableInt64,
	"bigint":             core.PortableInt64,
	"float":              core.PortableFloat64,
	"double precision":   core.PortableFloat64,
	"numeric":            core.PortableDecimal,
	"decimal":            core.PortableDecimal,
	"date":               core.PortableTime,
	"time":               core.PortableTime,
	"timestamp":          core.PortableTime,
	"char":               core.PortableString,
	"varchar":            core.PortableString,
	"boolean":            core.PortableBool,
	"blob sub_type text": core.PortableString,
	"blob":               core.PortableBytes,

	// names the driver reports for result columns
	"short":   core.PortableInt64,
	"long":    core.PortableInt64,
	"int64":   core.PortableInt64,
	"double":  core.PortableFloat64,
	"varying": core.PortableString,
	"text":    core.PortableString,
}
