package oracle

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes Oracle. An empty schema means the session's current
// schema; catalog names are reported upper case.
var Dialect = &provider.Dialect{
	Name:         "oracle",
	DriverName:   "godror",
	Quoting:      core.Quoting{Start: `"`, End: `"`},
	Placeholder:  provider.PlaceholderColon,
	Returning:    provider.ReturnNone,
	NamedInputs:  true,
	NamedOutputs: true,
	SprocCall:    provider.BlockSprocCall,
	EmptyInsert:  "VALUES (DEFAULT)",

	TablesQuery: `SELECT NULLIF(owner, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')), table_name
FROM all_tables
WHERE owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')
ORDER BY table_name`,

	ColumnsQuery: `SELECT c.column_name, c.data_type,
  CASE WHEN c.nullable = 'Y' THEN 1 ELSE 0 END,
  c.column_id,
  CASE WHEN EXISTS (
    SELECT 1
    FROM all_constraints k
    JOIN all_cons_columns kc ON kc.owner = k.owner AND kc.constraint_name = k.constraint_name
    WHERE k.constraint_type = 'P' AND k.owner = c.owner AND k.table_name = c.table_name
      AND kc.column_name = c.column_name
  ) THEN 1 ELSE 0 END,
  CASE WHEN c.identity_column = 'YES' THEN 1 ELSE 0 END,
  CASE WHEN c.default_length > 0 THEN 1 ELSE 0 END,
  CASE WHEN c.virtual_column = 'YES' THEN 1 ELSE 0 END
FROM all_tab_cols c
WHERE c.owner = NVL(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
  AND c.table_name = :2
  AND c.hidden_column = 'NO'
ORDER BY c.column_id`,

	RelationshipsQuery: `SELECT fk.constraint_name,
  NULLIF(pk.owner, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')), pk.table_name, pc.column_name,
  NULLIF(fk.owner, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')), fk.table_name, fc.column_name
FROM all_constraints fk
JOIN all_constraints pk ON pk.owner = fk.r_owner AND pk.constraint_name = fk.r_constraint_name
JOIN all_cons_columns fc ON fc.owner = fk.owner AND fc.constraint_name = fk.constraint_name
JOIN all_cons_columns pc ON pc.owner = pk.owner AND pc.constraint_name = pk.constraint_name
  AND pc.position = fc.position
WHERE fk.constraint_type = 'R' AND fk.owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')
ORDER BY fk.table_name, fk.constraint_name, fc.position`,

	// position 0 is a function result, which a procedure call cannot bind
	SprocParamsQuery: `SELECT a.argument_name, a.data_type, a.in_out, a.position, a.data_length
FROM all_arguments a
WHERE a.owner = NVL(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
  AND NVL(a.package_name, ' ') = NVL(:2, ' ')
  AND a.object_name = :3
  AND a.data_level = 0
  AND a.position > 0
  AND a.argument_name IS NOT NULL
ORDER BY a.position`,

	Types:      types,
	CursorDest: func() any { return new(driver.Rows) },
	ReadCursor: readCursor,
}

var types = map[string]core.PortableType{
	"number":                         core.PortableDecimal,
	"integer":                        core.PortableInt64,
	"pls_integer":                    core.PortableInt64,
	"binary_integer":                 core.PortableInt64,
	"float":                          core.PortableFloat64,
	"binary_float":                   core.PortableFloat64,
	"binary_double":                  core.PortableFloat64,
	"varchar2":                       core.PortableString,
	"nvarchar2":                      core.PortableString,
	"char":                           core.PortableString,
	"nchar":                          core.PortableString,
	"clob":                           core.PortableString,
	"nclob":                          core.PortableString,
	"long":                           core.PortableString,
	"rowid":                          core.PortableString,
	"urowid":                         core.PortableString,
	"date":                           core.PortableTime,
	"timestamp":                      core.PortableTime,
	"timestamp with time zone":       core.PortableTime,
	"timestamp with local time zone": core.PortableTime,
	"raw":                            core.PortableBytes,
	"long raw":                       core.PortableBytes,
	"blob":                           core.PortableBytes,
	"pl/sql boolean":                 core.PortableBool,
	"boolean":                        core.PortableBool,
	"ref cursor":                     core.PortableRows,
}

// cursorMapping maps a cursor column type through the package type table.
// It cannot go through Dialect, whose ReadCursor field refers back here.
func cursorMapping(typeName string) core.TypeMapping {
	portable, ok := types[provider.NormalizeTypeName(typeName)]
	if !ok {
		portable = core.PortableAny
	}
	return core.TypeMapping{BackendName: typeName, Portable: portable}
}

// readCursor drains a REF CURSOR output bound with CursorDest.
func readCursor(dest any) (*provider.RowSet, error) {
	rp, ok := dest.(*driver.Rows)
	if !ok {
		return nil, fmt.Errorf("unexpected cursor destination %T", dest)
	}
	set := &provider.RowSet{}
	if rp == nil || *rp == nil {
		return set, nil
	}
	rows := *rp
	defer func() { _ = rows.Close() }()

	names := rows.Columns()
	typed, _ := rows.(driver.RowsColumnTypeDatabaseTypeName)
	for i, name := range names {
		typeName := ""
		if typed != nil {
			typeName = typed.ColumnTypeDatabaseTypeName(i)
		}
		set.Columns = append(set.Columns, core.Column{
			Name:     name,
			Mapping:  cursorMapping(typeName),
			Position: i + 1,
			Nullable: true,
		})
	}

	for {
		values := make([]driver.Value, len(names))
		if err := rows.Next(values); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read cursor row: %w", err)
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		set.Rows = append(set.Rows, row)
	}
	return set, nil
}
