package sqlserver

import (
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes SQL Server.
var Dialect = &provider.Dialect{
	Name:          "sqlserver",
	DriverName:    "sqlserver",
	Quoting:       core.Quoting{Start: "[", End: "]"},
	Placeholder:   provider.PlaceholderAtP,
	DefaultSchema: "dbo",
	Returning:     provider.ReturnOutputInserted,
	NamedInputs:   true,
	NamedOutputs:  true,
	SprocCall:     provider.NameOnlySprocCall,

	TypesQuery: `SELECT name, CAST(user_type_id AS bigint) FROM sys.types ORDER BY name`,

	TablesQuery: `SELECT s.name, t.name
FROM sys.tables AS t
JOIN sys.schemas AS s ON s.schema_id = t.schema_id
WHERE t.is_ms_shipped = 0
ORDER BY s.name, t.name`,

	ColumnsQuery: `SELECT c.name, ty.name,
  c.is_nullable,
  c.column_id,
  CASE WHEN EXISTS (
    SELECT 1
    FROM sys.indexes AS i
    JOIN sys.index_columns AS ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
    WHERE i.object_id = c.object_id AND i.is_primary_key = 1 AND ic.column_id = c.column_id
  ) THEN 1 ELSE 0 END,
  c.is_identity,
  CASE WHEN c.default_object_id <> 0 THEN 1 ELSE 0 END,
  CASE WHEN c.is_computed = 1 OR ty.name IN ('timestamp', 'rowversion') THEN 1 ELSE 0 END
FROM sys.columns AS c
JOIN sys.types AS ty ON ty.user_type_id = c.user_type_id
JOIN sys.tables AS t ON t.object_id = c.object_id
JOIN sys.schemas AS s ON s.schema_id = t.schema_id
WHERE s.name = @p1 AND t.name = @p2
ORDER BY c.column_id`,

	RelationshipsQuery: `SELECT fk.name, ps.name, pt.name, pc.name, fs.name, ft.name, fc.name
FROM sys.foreign_keys AS fk
JOIN sys.foreign_key_columns AS fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.tables AS pt ON pt.object_id = fkc.referenced_object_id
JOIN sys.schemas AS ps ON ps.schema_id = pt.schema_id
JOIN sys.columns AS pc ON pc.object_id = fkc.referenced_object_id AND pc.column_id = fkc.referenced_column_id
JOIN sys.tables AS ft ON ft.object_id = fkc.parent_object_id
JOIN sys.schemas AS fs ON fs.schema_id = ft.schema_id
JOIN sys.columns AS fc ON fc.object_id = fkc.parent_object_id AND fc.column_id = fkc.parent_column_id
ORDER BY fs.name, ft.name, fk.name, fkc.constraint_column_id`,

	// SQL Server has no procedure packages; @p2 is accepted and ignored
	SprocParamsQuery: `SELECT p.name, ty.name,
  CASE WHEN p.is_output = 1 THEN 'OUT' ELSE 'IN' END,
  p.parameter_id,
  p.max_length
FROM sys.procedures AS pr
JOIN sys.schemas AS s ON s.schema_id = pr.schema_id
JOIN sys.parameters AS p ON p.object_id = pr.object_id
JOIN sys.types AS ty ON ty.user_type_id = p.user_type_id
WHERE s.name = @p1 AND @p2 IS NOT NULL AND pr.name = @p3
ORDER BY p.parameter_id`,

	Types: types,
}

var types = map[string]core.PortableType{
	"tinyint":          core.PortableInt64,
	"smallint":         core.PortableInt64,
	"int":              core.PortableInt64,
	"bigint":           core.PortableInt64,
	"real":             core.PortableFloat64,
	"float":            core.PortableFloat64,
	"decimal":          core.PortableDecimal,
	"numeric":          core.PortableDecimal,
	"money":            core.PortableDecimal,
	"smallmoney":       core.PortableDecimal,
	"bit":              core.PortableBool,
	"char":             core.PortableString,
	"varchar":          core.PortableString,
	"nchar":            core.PortableString,
	"nvarchar":         core.PortableString,
	"text":             core.PortableString,
	"ntext":            core.PortableString,
	"xml":              core.PortableString,
	"sysname":          core.PortableString,
	"uniqueidentifier": core.PortableGUID,
	"date":             core.PortableTime,
	"time":             core.PortableTime,
	"datetime":         core.PortableTime,
	"datetime2":        core.PortableTime,
	"smalldatetime":    core.PortableTime,
	"datetimeoffset":   core.PortableTime,
	"binary":           core.PortableBytes,
	"varbinary":        core.PortableBytes,
	"image":            core.PortableBytes,
	"timestamp":        core.PortableBytes,
	"rowversion":       core.PortableBytes,
	"sql_variant":      core.PortableAny,
}
